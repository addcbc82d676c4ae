package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexdatas/nxstools/internal/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the process exit status.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(append([]string{}, args...))

	c, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		if errors.Is(err, cmd.ErrUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	// help output counts as a usage exit
	if help, _ := c.Flags().GetBool("help"); help {
		return 2
	}
	return 0
}
