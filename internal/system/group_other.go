//go:build !windows && !linux

package system

import "github.com/ivlev/scene2video/internal/console"

func NewProcessGroup(console.Sink) ProcessGroup {
	return noopGroup{}
}
