package textcons

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// LocalMirror puts the controlling terminal into raw mode and wires it
// up as a second textcons client: stdin keystrokes are injected the
// same way a network client's are, and screen pushes are written to
// stdout. This has no equivalent in the original, which only ever
// serves the TCP scraper; it exists for interactive development
// without a separate TCP client.
type LocalMirror struct {
	Screen Screen
	Keys   KeyInjector
	Page   int

	restore func() error
}

// Start switches the terminal into raw mode and begins the periodic
// screen push. It returns an error when stdin isn't a terminal, or the
// error from term.MakeRaw when raw mode cannot be set.
func (m *LocalMirror) Start() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("textcons: stdin is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	m.restore = func() error { return term.Restore(fd, state) }

	go m.pushLoop()
	go m.readLoop()
	return nil
}

// Stop restores the terminal's original mode.
func (m *LocalMirror) Stop() error {
	if m.restore == nil {
		return nil
	}
	return m.restore()
}

func (m *LocalMirror) pushLoop() {
	s := &Server{Screen: m.Screen, Page: m.Page}
	for range time.NewTicker(pushInterval).C {
		if err := s.sendScreen(os.Stdout); err != nil {
			return
		}
	}
}

func (m *LocalMirror) readLoop() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			if err != io.EOF {
				return
			}
			return
		}
		if n > 0 {
			(&Server{Keys: m.Keys}).injectKey(buf[0])
		}
	}
}
