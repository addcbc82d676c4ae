package collect

import (
	"fmt"
	"os"

	"github.com/nexdatas/nxstools/internal/filelock"
)

// BackupSuffix is appended to the master file name for its backup.
const BackupSuffix = ".__nxscollect_old__"

// BackupPath returns the backup location of a master file.
func BackupPath(master string) string {
	return master + BackupSuffix
}

// Backup is a byte-identical copy of a master file taken before a run
// mutates it. It is never restored automatically.
type Backup struct {
	Path string
	Size int64
}

// CreateBackup copies master to its backup path, replacing an older backup.
func CreateBackup(master string) (*Backup, error) {
	path := BackupPath(master)
	n, err := filelock.AtomicCopy(master, path)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", master, err)
	}
	return &Backup{Path: path, Size: n}, nil
}

// Remove deletes the backup; a backup already gone is not an error.
func (b *Backup) Remove() error {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove backup: %w", err)
	}
	return nil
}
