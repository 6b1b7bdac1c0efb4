//go:build !linux

package framerelay

import (
	"errors"
	"fmt"
)

const DefaultSHMDir = ""

var errSHMUnsupported = errors.New("shared memory relay is only supported on linux")

// SHM is unavailable on this platform; every call fails.
type SHM struct{}

func NewSHM(dir, prefix string) *SHM { return &SHM{} }

func (s *SHM) Start() error      { return errSHMUnsupported }
func (s *SHM) Stop() error       { return nil }
func (s *SHM) Servers() []Server { return nil }
func (s *SHM) OnServersChanged(func([]Server)) {}
func (s *SHM) CreateClient(int) (string, error)    { return "", errSHMUnsupported }
func (s *SHM) DestroyClient(id string) error       { return fmt.Errorf("%w: %s", ErrUnknownClient, id) }
func (s *SHM) PullFrame(id string) (*Frame, error) { return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id) }

type SHMPublisher struct{}

func NewSHMPublisher(dir, prefix, name string, width, height int) (*SHMPublisher, error) {
	return nil, errSHMUnsupported
}

func (p *SHMPublisher) Publish(pix []byte, width, height int) error { return errSHMUnsupported }
func (p *SHMPublisher) Close() error                                { return nil }
