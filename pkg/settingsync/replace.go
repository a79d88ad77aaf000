package settingsync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/msettings/msettings/pkg/logger"
	"github.com/spf13/afero"
)

// BackupSuffix is appended to the target path to form the backup path.
const BackupSuffix = ".backup"

const defaultFileMode os.FileMode = 0644

// BackupPath returns the backup location for target, e.g.
// settings.xml becomes settings.xml.backup.
func BackupPath(target string) string {
	return target + BackupSuffix
}

// Replacer writes fetched documents over the target file. The previous
// contents are copied to BackupPath first and the new contents land via a
// sibling temp file and a rename, so the target is never observed absent
// or partially written.
type Replacer struct {
	fs  afero.Fs
	log logger.Logger
}

// NewReplacer creates a Replacer on fs. A nil fs selects the OS filesystem
// and a nil logger discards backup warnings.
func NewReplacer(fs afero.Fs, l logger.Logger) *Replacer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Replacer{fs: fs, log: l}
}

// Replace backs up target (when it exists) and atomically replaces it with
// data. A failed backup is logged as a warning and does not abort the write.
// Any other failure is returned as a *ReplaceError and leaves the target
// untouched.
func (r *Replacer) Replace(target string, data []byte) error {
	dir := filepath.Dir(target)
	if _, err := r.fs.Stat(dir); err != nil {
		if err := r.fs.MkdirAll(dir, 0755); err != nil {
			return &ReplaceError{Op: "mkdir", Path: dir, Cause: err}
		}
	}

	mode := defaultFileMode
	if info, err := r.fs.Stat(target); err == nil && info.Mode().IsRegular() {
		mode = info.Mode().Perm()
		if err := r.backup(target, BackupPath(target), mode); err != nil {
			r.log.Warning("Failed to create backup of %s: %v", target, err)
		}
	}

	return r.writeAtomic(target, data, mode)
}

// backup copies src to dst, syncing before close. A partially written
// backup is removed on error.
func (r *Replacer) backup(src, dst string, mode os.FileMode) error {
	in, err := r.fs.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := r.fs.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	copySucceeded := false
	defer func() {
		out.Close()
		if !copySucceeded {
			_ = r.fs.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy content: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	copySucceeded = true
	return nil
}

func (r *Replacer) writeAtomic(target string, data []byte, mode os.FileMode) error {
	tmp, err := afero.TempFile(r.fs, filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return &ReplaceError{Op: "create temp", Path: target, Cause: err}
	}
	tmpName := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			tmp.Close()
			_ = r.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &ReplaceError{Op: "write", Path: tmpName, Cause: err}
	}
	if err := tmp.Sync(); err != nil {
		return &ReplaceError{Op: "sync", Path: tmpName, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &ReplaceError{Op: "close", Path: tmpName, Cause: err}
	}
	_ = r.fs.Chmod(tmpName, mode)
	if err := r.fs.Rename(tmpName, target); err != nil {
		return &ReplaceError{Op: "rename", Path: target, Cause: err}
	}
	renamed = true
	return nil
}
