// Package tty arbitrates ownership of the shell's controlling terminal.
package tty

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal is the controlling terminal device.
type Terminal interface {
	// Fd returns the terminal's descriptor, or -1 when detached.
	Fd() int
	// Interactive reports whether the terminal is a real TTY.
	Interactive() bool
	// Foreground returns the terminal's foreground process group.
	Foreground() (int, error)
	// SetForeground gives the terminal to process group pgid.
	SetForeground(pgid int) error
	// Attr reads the line discipline settings.
	Attr() (*unix.Termios, error)
	// SetAttr applies line discipline settings once pending output drains.
	SetAttr(attr *unix.Termios) error
}

// Open returns the terminal attached to f, or a detached terminal if f isn't
// a TTY.
func Open(f *os.File) Terminal {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return Detached{}
	}
	return &Device{fd: fd}
}

// Device is a real terminal.
type Device struct {
	fd int
}

var _ Terminal = (*Device)(nil)

func (d *Device) Fd() int {
	return d.fd
}

func (d *Device) Interactive() bool {
	return true
}

func (d *Device) Foreground() (int, error) {
	return unix.IoctlGetInt(d.fd, unix.TIOCGPGRP)
}

func (d *Device) SetForeground(pgid int) error {
	return unix.IoctlSetPointerInt(d.fd, unix.TIOCSPGRP, pgid)
}

func (d *Device) Attr() (*unix.Termios, error) {
	return unix.IoctlGetTermios(d.fd, ioctlGetTermios)
}

func (d *Device) SetAttr(attr *unix.Termios) error {
	return unix.IoctlSetTermios(d.fd, ioctlSetTermiosDrain, attr)
}

// Detached stands in for a terminal when input isn't interactive; there's
// nothing to hand off.
type Detached struct{}

var _ Terminal = Detached{}

func (Detached) Fd() int                          { return -1 }
func (Detached) Interactive() bool                { return false }
func (Detached) Foreground() (int, error)         { return unix.Getpgrp(), nil }
func (Detached) SetForeground(int) error          { return nil }
func (Detached) Attr() (*unix.Termios, error)     { return nil, nil }
func (Detached) SetAttr(attr *unix.Termios) error { return nil }
