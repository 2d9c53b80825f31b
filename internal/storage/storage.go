// Package storage copies finished backups to local destinations and
// provides simulated cloud uploaders.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"

	"github.com/secbak/secbak/internal/fileutil"
)

// Local stores backup artifacts on a local (possibly external) disk.
type Local struct {
	Logger *logrus.Logger
}

func (l *Local) logger() *logrus.Logger {
	if l.Logger == nil {
		return logrus.New()
	}

	return l.Logger
}

// Store copies src to destination, verifying the copy with an MD5
// comparison. When destination is a directory (or has no extension)
// the source base name is appended. Free space is checked before the
// copy starts.
func (l *Local) Store(src, destination string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source %q: %w", src, err)
	}

	dest := destination
	if destInfo, err := os.Stat(dest); (err == nil && destInfo.IsDir()) || filepath.Ext(dest) == "" {
		dest = filepath.Join(dest, filepath.Base(src))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	usage, err := disk.Usage(filepath.Dir(dest))
	if err != nil {
		return "", fmt.Errorf("checking free space: %w", err)
	}

	if uint64(info.Size()) > usage.Free {
		return "", fmt.Errorf("insufficient space at %q: need %s, have %s",
			dest, humanize.IBytes(uint64(info.Size())), humanize.IBytes(usage.Free))
	}

	l.logger().WithFields(logrus.Fields{
		"source":      src,
		"destination": dest,
		"size":        humanize.IBytes(uint64(info.Size())),
	}).Info("storing backup locally")

	if err := copyFile(src, dest); err != nil {
		return "", err
	}

	srcSum, err := fileutil.FileMD5(src)
	if err != nil {
		return "", err
	}

	destSum, err := fileutil.FileMD5(dest)
	if err != nil {
		return "", err
	}

	if srcSum != destSum {
		os.Remove(dest) //nolint:gosec // corrupted copy must not survive

		return "", fmt.Errorf("integrity check failed copying to %q: checksum %s, expected %s", dest, destSum, srcSum)
	}

	l.logger().WithField("destination", dest).Info("backup stored and verified")

	return dest, nil
}

func copyFile(src, dest string) (err error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	tc, err := fileutil.NewTempContext(dest)
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}

	defer tc.CleanupOnError(&err)

	if _, err := io.Copy(tc.TmpFile, in); err != nil {
		return fmt.Errorf("copying: %w", err)
	}

	return tc.Commit(dest)
}
