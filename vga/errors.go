package vga

import "errors"

// ErrChain4 and ErrMonochromeAperture are the two genuine programmer
// errors this pipeline treats as Fatal, per the error taxonomy: they
// signal an impossible VGA write path rather than a recoverable guest
// mistake.
var (
	ErrChain4             = errors.New("vga: chain-4 addressing asserted")
	ErrMonochromeAperture = errors.New("vga: monochrome text aperture selected")
)

// ErrUnhandledPort is returned (not fatal) for ports outside the
// recognized legacy VGA set; callers log a diagnostic and continue.
var ErrUnhandledPort = errors.New("vga: unhandled port")

// ErrBadMode is returned by SwitchMode for any mode other than
// 03h/12h/13h.
var ErrBadMode = errors.New("vga: unsupported mode")
