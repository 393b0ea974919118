package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
)

// ScreenInfo is the JSON object returned by CmdScreenInfo.
type ScreenInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Cols   int `json:"cols"`
	Rows   int `json:"rows"`
}

// Handler supplies the narrow contract this package dispatches into; the
// display, keyboard, and script VM it drives live entirely outside the
// core (spec.md §1). A method that returns an error yields a StatusError
// response carrying the error text.
type Handler interface {
	Screenshot() ([]byte, error)
	KeyChar(ch byte, mods byte) error
	KeySpecial(code byte, mods byte) error
	ScreenInfo() (ScreenInfo, error)
	WaitForFrameText(needle string) (bool, error)
	WaitForFramePrimitives(spec []byte) (bool, error)
	LuaExec(src string) (any, error)
}

// Server dispatches frames read via ReadRequest to a Handler and writes
// responses via WriteResponse.
type Server struct {
	h Handler
}

// NewServer constructs a Server around h.
func NewServer(h Handler) *Server {
	return &Server{h: h}
}

// ServeConn handles one connection until ReadRequest returns an error
// (connection closed or inter-byte timeout).
func (s *Server) ServeConn(rw io.ReadWriter) {
	for {
		cmd, payload, err := ReadRequest(rw)
		if err != nil {
			return
		}
		status, data := s.dispatch(cmd, payload)
		if err := WriteResponse(rw, status, data); err != nil {
			log.Printf("remote: writing response: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(cmd byte, payload []byte) (byte, []byte) {
	switch cmd {
	case CmdPing:
		return StatusOK, []byte("PONG")

	case CmdScreenshot:
		data, err := s.h.Screenshot()
		return statusFor(err, data)

	case CmdKeyChar:
		if len(payload) < 2 {
			return StatusError, errBytes("key_char payload too short")
		}
		err := s.h.KeyChar(payload[0], payload[1])
		return statusFor(err, nil)

	case CmdKeySpecial:
		if len(payload) < 2 {
			return StatusError, errBytes("key_special payload too short")
		}
		err := s.h.KeySpecial(payload[0], payload[1])
		return statusFor(err, nil)

	case CmdScreenInfo:
		info, err := s.h.ScreenInfo()
		if err != nil {
			return StatusError, errBytes(err.Error())
		}
		data, err := json.Marshal(info)
		return statusFor(err, data)

	case CmdWaitForFrameText:
		ok, err := s.h.WaitForFrameText(string(payload))
		return boolStatus(ok, err)

	case CmdWaitForFramePrim:
		ok, err := s.h.WaitForFramePrimitives(payload)
		return boolStatus(ok, err)

	case CmdLuaExec:
		result, err := s.h.LuaExec(string(payload))
		if err != nil {
			return StatusError, errBytes(err.Error())
		}
		data, err := json.Marshal(result)
		return statusFor(err, data)

	default:
		return StatusError, errBytes(fmt.Sprintf("unknown command 0x%02x", cmd))
	}
}

func statusFor(err error, data []byte) (byte, []byte) {
	if err != nil {
		return StatusError, errBytes(err.Error())
	}
	return StatusOK, data
}

func boolStatus(ok bool, err error) (byte, []byte) {
	if err != nil {
		return StatusError, errBytes(err.Error())
	}
	if !ok {
		return StatusError, errBytes("condition not met")
	}
	return StatusOK, nil
}

func errBytes(msg string) []byte {
	return []byte(msg)
}
