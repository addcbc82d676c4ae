package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexdatas/nxstools/internal/models"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// ErrUsage is returned when nxscollect is started without a command. The
// help text has already been printed.
var ErrUsage = errors.New("no command given")

// NewRootCommand creates and returns the root cobra command for nxscollect
func NewRootCommand() *cobra.Command {
	var execute, test bool

	cmd := &cobra.Command{
		Use:   "nxscollect [command] <file>",
		Short: "Collect external detector frames into NeXus master files",
		Long: `nxscollect appends frames that detectors wrote to separate files into the
datasets of a NeXus master file.

Every "postrun" field inside an NXcollection group names its files with a
placeholder such as "img_%05d.tif:0:99". nxscollect resolves the names, decodes
each file that exists (TIFF, CBF, raw or nested NeXus files) and appends its
frame to the "data" dataset of the detector group. Re-running a collection
resumes after the last collected frame.

Configuration is loaded from .nxstools/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  nxscollect execute scan_001.nxs           # collect into the file
  nxscollect test scan_001.nxs              # show what would be collected
  nxscollect -x scan_001.nxs -s             # execute, skipping missing files
  nxscollect -x scan_001.nxs -r --report scan_001.md`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if execute && test {
				return fmt.Errorf("-x/--execute and -t/--test cannot be combined")
			}
			if !execute && !test {
				if len(args) > 0 {
					return fmt.Errorf("unknown command %q, use execute or test", args[0])
				}
				if err := cmd.Help(); err != nil {
					return err
				}
				return ErrUsage
			}
			if len(args) != 1 {
				return fmt.Errorf("missing master file argument")
			}
			mode := models.ModeExecute
			if test {
				mode = models.ModeTest
			}
			return runCollect(cmd, args[0], mode)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "Shortcut for the execute command")
	cmd.Flags().BoolVarP(&test, "test", "t", false, "Shortcut for the test command")
	addCollectFlags(cmd)

	cmd.AddCommand(NewExecuteCommand())
	cmd.AddCommand(NewTestCommand())

	return cmd
}
