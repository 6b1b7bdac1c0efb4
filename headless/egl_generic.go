//go:build !linux

package headless

import (
	"fmt"

	"github.com/richinsley/lightv/graphics"
)

const AnyDevice = -1

func NewHeadless(width, height int) (graphics.Context, error) {
	return NewHeadlessDevice(width, height, AnyDevice)
}

func NewHeadlessDevice(width, height, device int) (graphics.Context, error) {
	return nil, fmt.Errorf("egl headless rendering is not supported on this platform")
}
