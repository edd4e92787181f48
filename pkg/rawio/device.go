// Package rawio provides positioned read/write access to BFS devices and
// plain host files through one abstraction, plus block-device size
// discovery. It deliberately avoids any host filesystem semantics beyond
// "open a path, read/write at an offset": BFS devices are whole block
// devices with no partition table and no directory structure.
package rawio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Device is a positioned-I/O handle over a block device or a regular file.
// The scoop reorderer and the shuffle both operate through this interface
// so the same traversal code works whether the backing store is a BFS
// device or a host file holding one plot.
type Device struct {
	f    *os.File
	path string
}

// Open opens path for positioned read/write access. Devices are opened
// O_SYNC so every Write flushes through to the block device before
// returning, since the TOC-write-is-atomic guarantee (§5) depends on
// writes actually reaching the disk in the order issued.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// Create opens path for positioned read/write access, creating it (and any
// sparse extension up to a given size, via Truncate) if it does not exist.
// Used for host-file-backed plots and in tests against sparse files
// standing in for a real block device.
func Create(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &Device{f: f, path: path}, nil
}

// Path returns the path this Device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Close closes the underlying file.
func (d *Device) Close() error {
	return d.f.Close()
}

// ReadAt reads len(p) bytes starting at off, matching io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	n, err := d.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("reading %s at %d: %w", d.path, off, err)
	}
	return n, err
}

// WriteAt writes p starting at off, matching io.WriterAt.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("writing %s at %d: %w", d.path, off, err)
	}
	return n, nil
}

// Truncate sets the size of a regular file backing this Device. Devices
// opened against an actual block device must never call this: block
// devices report their size through Size, not through file length.
func (d *Device) Truncate(size int64) error {
	return d.f.Truncate(size)
}

// Size reports the usable size in bytes of the block device or file this
// Device wraps. For a regular file this is its stat size; for a block
// device, host filesystems report a file size of zero, so the size is
// instead read from the sysfs pseudo-file exposing the device's 512-byte
// sector count (the only signal the kernel publishes for a raw device
// without issuing an ioctl).
func (d *Device) Size() (int64, error) {

	fi, err := d.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", d.path, err)
	}

	if fi.Mode()&os.ModeDevice == 0 {
		return fi.Size(), nil
	}

	return BlockDeviceSize(d.path)
}

// BlockDeviceSize reads the total byte size of the block device at path
// from /sys/block/<dev>/size, the kernel's published 512-byte sector
// count for the whole disk. path may be any of: /dev/<name>,
// /dev/disk/by-id/<name>, or /dev/disk/by-uuid/<name>; symlinks are
// resolved to the underlying /dev/<name> before the sysfs lookup.
func BlockDeviceSize(path string) (int64, error) {

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}

	name := filepath.Base(resolved)

	sizePath := filepath.Join("/sys/block", name, "size")
	raw, err := os.ReadFile(sizePath)
	if err != nil {
		// Partitions and some device-mapper nodes publish their size
		// under /sys/class/block instead of /sys/block.
		sizePath = filepath.Join("/sys/class/block", name, "size")
		raw, err = os.ReadFile(sizePath)
		if err != nil {
			return 0, fmt.Errorf("discovering size of %s: %w", path, err)
		}
	}

	sectors, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing sector count for %s: %w", path, err)
	}

	return sectors * 512, nil
}

// ResolveDevicePath expands a short device name into an absolute path,
// trying /dev/<name> first, then the by-id and by-uuid symlink
// directories, matching §6's "accepts either an absolute device path under
// /dev/ or a short name resolved against /dev/disk/by-id/ and
// /dev/disk/by-uuid/".
func ResolveDevicePath(name string) (string, error) {

	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	candidates := []string{
		filepath.Join("/dev", name),
		filepath.Join("/dev/disk/by-id", name),
		filepath.Join("/dev/disk/by-uuid", name),
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("device not found: %s", name)
}
