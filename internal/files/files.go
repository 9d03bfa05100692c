// Package files implements generic file tools missing from the standard library.
package files

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// DefaultDirCreationPerm is used when creating parent directories of written files.
	DefaultDirCreationPerm = os.FileMode(0755)

	// DefaultFileCreationPerm is used when creating files.
	DefaultFileCreationPerm = os.FileMode(0644)
)

// Exists returns true if file or directory exists.
func Exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// IsDir returns true if filePath exists and is a directory.
func IsDir(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && info.IsDir()
}

// ReplaceTildeInDir by the user's home directory. Returns dir if it doesn't start with "~".
//
// It returns an error if `dir` has an unknown user (e.g: `~unknown/...`)
func ReplaceTildeInDir(dir string) (string, error) {
	if len(dir) == 0 || dir[0] != '~' {
		return dir, nil
	}
	var userName string
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		userName, _, _ = strings.Cut(dir[1:], "/")
	}
	var usr *user.User
	var err error
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return dir, errors.Wrapf(err, "failed to lookup home directory for user in path %q", dir)
	}
	return filepath.Join(usr.HomeDir, dir[1+len(userName):]), nil
}

// WriteFileAtomic writes content to filePath, creating the parent directories if needed.
//
// Content is first written to a uniquely named temporary file in the same directory, which is then
// renamed to filePath. Readers never observe a partially written file.
func WriteFileAtomic(filePath string, content []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory %q", dir)
	}
	tmpPath := filepath.Join(dir, "."+filepath.Base(filePath)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, content, DefaultFileCreationPerm); err != nil {
		removeTmp(tmpPath)
		return errors.Wrapf(err, "failed to write temporary file %q", tmpPath)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		removeTmp(tmpPath)
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, filePath)
	}
	return nil
}

func removeTmp(tmpPath string) {
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		klog.Warningf("Failed removing temporary file %q: %v", tmpPath, err)
	}
}
