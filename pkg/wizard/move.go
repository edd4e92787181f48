package wizard

import (
	"io"
	"os"
	"path/filepath"
)

// Move relocates a freshly plotted file from its scratch directory to its
// final plot directory, preferring a rename (same filesystem) and falling
// back to copy-then-remove across a filesystem boundary, per §4.9's move
// activity.
func Move(srcPath, dstDir string) (string, error) {

	dstPath := filepath.Join(dstDir, filepath.Base(srcPath))

	if err := os.Rename(srcPath, dstPath); err == nil {
		return dstPath, nil
	}

	if err := copyFile(srcPath, dstPath); err != nil {
		return "", err
	}

	if err := os.Remove(srcPath); err != nil {
		return "", err
	}

	return dstPath, nil
}

func copyFile(srcPath, dstPath string) error {

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	return dst.Close()
}
