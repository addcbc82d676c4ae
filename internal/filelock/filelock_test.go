package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "scan.nxs")

	lock := NewFileLock(lockPath)
	if lock == nil {
		t.Fatal("NewFileLock should not return nil")
	}
	if lock.Path() != lockPath {
		t.Errorf("Expected lock path %s, got %s", lockPath, lock.Path())
	}
}

func TestLockUnlock(t *testing.T) {
	lock := NewFileLock(filepath.Join(t.TempDir(), "scan.nxs"))

	if err := lock.Acquire(false); err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}
}

func TestTryLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "scan.nxs")

	lock1 := NewFileLock(lockPath)
	lock2 := NewFileLock(lockPath)

	acquired, err := lock1.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("First TryLock should succeed")
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if acquired {
		t.Error("Second TryLock should fail when lock is held")
	}

	if err := lock1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = lock2.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Error("TryLock should succeed after unlock")
	}
	lock2.Unlock()
}

func TestSharedLocks(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "scan.nxs")

	reader1 := NewFileLock(lockPath)
	reader2 := NewFileLock(lockPath)
	writer := NewFileLock(lockPath)

	if err := reader1.Acquire(true); err != nil {
		t.Fatalf("first shared lock: %v", err)
	}
	if err := reader2.Acquire(true); err != nil {
		t.Fatalf("second shared lock: %v", err)
	}

	err := writer.Acquire(false)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("exclusive lock over readers: got %v, want ErrLocked", err)
	}

	reader1.Unlock()
	reader2.Unlock()

	if err := writer.Acquire(false); err != nil {
		t.Fatalf("exclusive lock after readers left: %v", err)
	}
	defer writer.Unlock()

	if err := NewFileLock(lockPath).Acquire(true); !errors.Is(err, ErrLocked) {
		t.Errorf("shared lock over writer: got %v, want ErrLocked", err)
	}
}

func TestLockDoesNotChangeContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.nxs")
	if err := os.WriteFile(path, []byte("master"), 0644); err != nil {
		t.Fatal(err)
	}

	lock := NewFileLock(path)
	if err := lock.Acquire(false); err != nil {
		t.Fatal(err)
	}
	lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "master" {
		t.Errorf("content changed to %q", data)
	}
}

func TestAtomicWrite(t *testing.T) {
	targetPath := filepath.Join(t.TempDir(), "reports", "run.md")

	content := []byte("# run\n")
	if err := AtomicWrite(targetPath, content); err != nil {
		t.Fatalf("AtomicWrite failed: %v", err)
	}

	readContent, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(readContent) != string(content) {
		t.Errorf("Expected content %q, got %q", content, readContent)
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected permissions 0644, got %v", info.Mode().Perm())
	}
}

func TestAtomicCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.nxs")
	dst := filepath.Join(dir, "scan.nxs.__nxscollect_old__")

	content := []byte(strings.Repeat("frame-bytes", 10000))
	if err := os.WriteFile(src, content, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale backup"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := AtomicCopy(src, dst)
	if err != nil {
		t.Fatalf("AtomicCopy failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("copied %d bytes, want %d", n, len(content))
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Error("copy differs from source")
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %v", info.Mode().Perm())
	}

	if _, err := AtomicCopy(filepath.Join(dir, "absent.nxs"), dst); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestAtomicWriteNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	if err := AtomicWrite(filepath.Join(dir, "a.json"), []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if _, err := AtomicCopy(filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 files, got %d", len(entries))
	}
}
