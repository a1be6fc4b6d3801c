//go:build !linux

package gpio

import "errors"

// CdevDriver is unavailable outside Linux.
type CdevDriver struct {
	MockDriver
}

// NewCdevDriver always fails on non-Linux platforms.
func NewCdevDriver(chip string) (*CdevDriver, error) {
	return nil, errors.New("gpio character device is only supported on linux")
}
