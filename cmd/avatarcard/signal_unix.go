//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// signalChannel delivers SIGINT and SIGTERM so `avatarcard watch` can finish
// the current job and release its lock under systemd or a container runtime.
func signalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
