//go:build !linux

package epoll

import (
	"github.com/joeycumines/go-mainloop"
)

// New always fails with [mainloop.ErrUnsupported] on this platform.
func New(*mainloop.Boundary) (mainloop.Backend, mainloop.Injector, error) {
	return nil, nil, mainloop.ErrUnsupported
}
