// Package textcons implements the text-console scraper: a TCP listener
// that pushes a 25x80 screen dump at ~2 Hz and turns single-byte
// keystrokes from the client into guest key press/release events.
// Grounded on original_source/bios/bhyve/textcons.c, with its
// pthread-per-connection model replaced by goroutines and its raw
// getaddrinfo/socket/bind/listen sequence replaced by net.Listen plus
// an explicit SO_REUSEADDR setsockopt for parity with the original's
// not-quite-default socket option.
package textcons

import (
	"context"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultAddr is the original's default bind address and port.
const DefaultAddr = "127.0.0.1:5900"

// pushInterval matches textcons_wr_thr's 500ms period (~2 Hz).
const pushInterval = 500 * time.Millisecond

// keyReleaseDelay matches textcons_recv_key_msg's usleep(50000) between
// the synthesized press and release.
const keyReleaseDelay = 50 * time.Millisecond

// Screen is the capability the scraper pulls its periodic dump from:
// 25x80 character bytes (attribute bytes already stripped) for the
// active display page.
type Screen interface {
	TextChars(page int) []byte
}

// KeyInjector is the capability a received keystroke is forwarded to,
// as a synthesized press followed (after keyReleaseDelay) by a
// release, mirroring console_key_event(1, ch)/console_key_event(0, ch).
type KeyInjector interface {
	InjectKey(pressed bool, ch byte)
}

// Server owns the listening socket and the capabilities each
// connection scrapes from / injects into.
type Server struct {
	Screen Screen
	Keys   KeyInjector
	Page   int

	ln net.Listener
}

// Listen binds addr (DefaultAddr if empty) with SO_REUSEADDR set, the
// way textcons_init does before handing off to its accept loop.
func Listen(addr string, screen Screen, keys KeyInjector) (*Server, error) {
	if addr == "" {
		addr = DefaultAddr
	}

	ln, err := listenReuseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("textcons: listen %s: %w", addr, err)
	}

	return &Server{Screen: screen, Keys: keys, ln: ln}, nil
}

// listenReuseAddr opens a TCP listener with SO_REUSEADDR explicitly
// set on the raw fd, since Go's net.Listen doesn't expose the option
// directly the way the original's raw setsockopt(SO_REUSEADDR) call
// does.
func listenReuseAddr(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}

// Serve accepts connections forever, handling each on its own
// goroutine (one textcons_thr equivalent), until the listener is
// closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// handle runs one client connection: a screen-push goroutine
// (textcons_wr_thr) alongside a blocking keystroke-read loop
// (textcons_handle's recv loop), tearing both down when either side
// closes.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)

	go s.pushScreen(conn, done)

	buf := make([]byte, 16)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		s.injectKey(buf[0])
	}
}

// pushScreen writes the ANSI-clear-prefixed, row-numbered screen dump
// every pushInterval, mirroring textcons_send_screen/textcons_wr_thr.
func (s *Server) pushScreen(conn net.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.sendScreen(conn); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendScreen(w io.Writer) error {
	if _, err := w.Write([]byte("\033[2J\n")); err != nil {
		return err
	}
	chars := s.Screen.TextChars(s.Page)
	for row := 0; row < 25; row++ {
		if _, err := fmt.Fprintf(w, "[%02d] ", row); err != nil {
			return err
		}
		start := row * 80
		end := start + 80
		if end > len(chars) {
			end = len(chars)
		}
		if start < end {
			if _, err := w.Write(chars[start:end]); err != nil {
				return err
			}
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return err
		}
	}
	return nil
}

// injectKey synthesizes a press followed by a delayed release,
// mirroring textcons_recv_key_msg's console_key_event(1,ch) / sleep /
// console_key_event(0,ch) sequence.
func (s *Server) injectKey(ch byte) {
	s.Keys.InjectKey(true, ch)
	go func() {
		time.Sleep(keyReleaseDelay)
		s.Keys.InjectKey(false, ch)
	}()
}
