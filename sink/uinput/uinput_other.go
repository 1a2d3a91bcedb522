//go:build !linux

package uinput

import (
	"errors"

	"github.com/cvuchener/steamctl"
)

// Factory is only available on Linux.
func Factory(info steamctl.SinkInfo) (steamctl.Sink, error) {
	return nil, errors.New("uinput sink requires linux")
}
