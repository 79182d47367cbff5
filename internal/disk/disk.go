package disk

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrStale is returned when a path does not answer a stat in time
var ErrStale = errors.New("filesystem not responding")

// Usage describes the capacity of the filesystem holding a path
type Usage struct {
	TotalBytes  int64
	FreeBytes   int64
	UsedPercent float64
}

// FreePercent returns the percentage of free space
func (u Usage) FreePercent() float64 {
	return 100.0 - u.UsedPercent
}

// GetUsage returns capacity figures for the filesystem containing path
func GetUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	u := Usage{
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}
	if u.TotalBytes > 0 {
		u.UsedPercent = float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
	}
	return u, nil
}

// CheckResponsive stats path with a timeout so a job never hangs on a dead
// network mount. It returns ErrStale on timeout or an NFS-style failure.
func CheckResponsive(path string, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if os.IsTimeout(err) ||
			errors.Is(err, syscall.EIO) ||
			errors.Is(err, syscall.ESTALE) ||
			errors.Is(err, syscall.ENXIO) {
			return fmt.Errorf("%w: %s: %w", ErrStale, path, err)
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: %s: no answer after %s", ErrStale, path, timeout)
	}
}
