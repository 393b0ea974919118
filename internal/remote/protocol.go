// Package remote implements the host-side control wire protocol (spec
// §6): a USB "remote control" surface used by development test tooling.
// The display, keyboard, and script VM it drives are explicitly out of
// scope (spec.md §1); this package only implements the narrow framing and
// command dispatch contract the core exposes around them.
package remote

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Commands (spec §6).
const (
	CmdPing             = 0x01
	CmdScreenshot       = 0x02
	CmdKeyChar          = 0x03
	CmdKeySpecial       = 0x04
	CmdScreenInfo       = 0x05
	CmdWaitForFrameText = 0x06
	CmdLuaExec          = 0x07
	CmdWaitForFramePrim = 0x08
)

// Status bytes.
const (
	StatusOK    = 0x00
	StatusError = 0x01
)

// Modifier bits for KEY_CHAR / KEY_SPECIAL.
const (
	ModShift = 1
	ModCtrl  = 2
	ModAlt   = 4
	ModFn    = 8
)

// Special key codes for KEY_SPECIAL.
const (
	KeyUp        = 1
	KeyDown      = 2
	KeyLeft      = 3
	KeyRight     = 4
	KeyEnter     = 5
	KeyEscape    = 6
	KeyTab       = 7
	KeyBackspace = 8
	KeyDelete    = 9
	KeyHome      = 10
	KeyEnd       = 11
)

// InterByteTimeout resets the parser if a frame stalls mid-read.
const InterByteTimeout = 100 * time.Millisecond

// deadliner is implemented by net.Conn; ReadRequest uses it to enforce
// InterByteTimeout when available, and degrades to a plain read otherwise.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// ReadRequest reads one cmd(1)|len(2,LE)|payload[len] frame from r.
func ReadRequest(r io.Reader) (cmd byte, payload []byte, err error) {
	if d, ok := r.(deadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(InterByteTimeout))
	}
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("remote: reading request header: %w", err)
	}
	cmd = header[0]
	n := binary.LittleEndian.Uint16(header[1:3])
	payload = make([]byte, n)
	if n > 0 {
		if d, ok := r.(deadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(InterByteTimeout))
		}
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("remote: reading request payload: %w", err)
		}
	}
	return cmd, payload, nil
}

// WriteResponse writes a status(1)|len(2,LE)|data[len] frame to w.
func WriteResponse(w io.Writer, status byte, data []byte) error {
	header := make([]byte, 3)
	header[0] = status
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(data)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("remote: writing response header: %w", err)
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("remote: writing response payload: %w", err)
		}
	}
	return nil
}
