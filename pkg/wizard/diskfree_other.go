// +build !linux

package wizard

import "fmt"

func diskFree(path string) (int64, error) {
	return 0, fmt.Errorf("disk-free probing is only implemented for linux targets")
}
