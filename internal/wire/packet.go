// Package wire implements the MeshCore over-the-air packet envelope:
// header byte, optional transport codes, hop path, and payload.
package wire

import "fmt"

// Route occupies bits 0-1 of the header byte.
type Route uint8

const (
	RouteTransportFlood Route = 0
	RouteFlood          Route = 1
	RouteDirect         Route = 2
	RouteTransportDirect Route = 3
)

// PayloadType occupies bits 2-5 of the header byte.
type PayloadType uint8

const (
	PayloadReq       PayloadType = 0
	PayloadResponse  PayloadType = 1
	PayloadTxtMsg    PayloadType = 2
	PayloadAck       PayloadType = 3
	PayloadAdvert    PayloadType = 4
	PayloadGrpTxt    PayloadType = 5
	PayloadGrpData   PayloadType = 6
	PayloadAnonReq   PayloadType = 7
	PayloadPath      PayloadType = 8
	PayloadTrace     PayloadType = 9
	PayloadMultipart PayloadType = 10
	PayloadControl   PayloadType = 11
	PayloadRawCustom PayloadType = 15
)

const (
	MaxPathSize       = 64
	MaxPacketPayload  = 184
	PathHashSize      = 1
	transportCodeSize = 4
	headerSize        = 1
	pathLenSize       = 1

	// MaxSize bounds the encoded wire form: header + transport codes +
	// path-length byte + path + payload.
	MaxSize = headerSize + transportCodeSize + pathLenSize + MaxPathSize + MaxPacketPayload
)

// Packet is the decoded, in-memory representation of a MeshCore frame.
type Packet struct {
	Route          Route
	PayloadType    PayloadType
	PayloadVersion uint8
	TransportCodes uint32 // only meaningful when Route carries transport variant
	Path           []byte // originator first, forwarders appended in order
	Payload        []byte
}

func hasTransportCodes(r Route) bool {
	return r == RouteTransportFlood || r == RouteTransportDirect
}

func packHeader(p *Packet) (byte, error) {
	if p.Route > 3 {
		return 0, fmt.Errorf("wire: route %d out of range: %w", p.Route, ErrOverflow)
	}
	if p.PayloadType > 15 {
		return 0, fmt.Errorf("wire: payload type %d out of range: %w", p.PayloadType, ErrOverflow)
	}
	if p.PayloadVersion > 3 {
		return 0, fmt.Errorf("wire: payload version %d out of range: %w", p.PayloadVersion, ErrOverflow)
	}
	h := byte(p.Route) | byte(p.PayloadType)<<2 | p.PayloadVersion<<6
	return h, nil
}

func unpackHeader(h byte) (Route, PayloadType, uint8) {
	return Route(h & 0x03), PayloadType((h >> 2) & 0x0F), (h >> 6) & 0x03
}

// Encode writes the wire form of p into out and returns the number of bytes
// written. out must be at least MaxSize bytes; Encode never allocates.
func Encode(p *Packet, out []byte) (int, error) {
	if len(p.Path) > MaxPathSize {
		return 0, fmt.Errorf("wire: path length %d exceeds %d: %w", len(p.Path), MaxPathSize, ErrOverflow)
	}
	if len(p.Payload) > MaxPacketPayload {
		return 0, fmt.Errorf("wire: payload length %d exceeds %d: %w", len(p.Payload), MaxPacketPayload, ErrOverflow)
	}
	need := headerSize + pathLenSize + len(p.Path) + len(p.Payload)
	if hasTransportCodes(p.Route) {
		need += transportCodeSize
	}
	if need > len(out) {
		return 0, fmt.Errorf("wire: output buffer too small (%d < %d): %w", len(out), need, ErrOverflow)
	}

	h, err := packHeader(p)
	if err != nil {
		return 0, err
	}
	n := 0
	out[n] = h
	n++
	if hasTransportCodes(p.Route) {
		out[n] = byte(p.TransportCodes)
		out[n+1] = byte(p.TransportCodes >> 8)
		out[n+2] = byte(p.TransportCodes >> 16)
		out[n+3] = byte(p.TransportCodes >> 24)
		n += transportCodeSize
	}
	out[n] = byte(len(p.Path))
	n++
	n += copy(out[n:], p.Path)
	n += copy(out[n:], p.Payload)
	return n, nil
}

// Decode parses a wire-form packet. It returns ErrMalformed if the bytes
// violate any bound or are incomplete.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerSize+pathLenSize {
		return Packet{}, fmt.Errorf("wire: short frame (%d bytes): %w", len(data), ErrMalformed)
	}
	route, ptype, pver := unpackHeader(data[0])
	n := headerSize

	var transportCodes uint32
	if hasTransportCodes(route) {
		if len(data) < n+transportCodeSize+pathLenSize {
			return Packet{}, fmt.Errorf("wire: short transport frame: %w", ErrMalformed)
		}
		transportCodes = uint32(data[n]) | uint32(data[n+1])<<8 | uint32(data[n+2])<<16 | uint32(data[n+3])<<24
		n += transportCodeSize
	}

	pathLen := int(data[n])
	n++
	if pathLen > MaxPathSize {
		return Packet{}, fmt.Errorf("wire: path length %d exceeds %d: %w", pathLen, MaxPathSize, ErrMalformed)
	}
	if len(data) < n+pathLen {
		return Packet{}, fmt.Errorf("wire: truncated path: %w", ErrMalformed)
	}
	path := make([]byte, pathLen)
	copy(path, data[n:n+pathLen])
	n += pathLen

	payload := data[n:]
	if len(payload) > MaxPacketPayload {
		return Packet{}, fmt.Errorf("wire: payload length %d exceeds %d: %w", len(payload), MaxPacketPayload, ErrMalformed)
	}

	out := make([]byte, len(payload))
	copy(out, payload)

	return Packet{
		Route:          route,
		PayloadType:    ptype,
		PayloadVersion: pver,
		TransportCodes: transportCodes,
		Path:           path,
		Payload:        out,
	}, nil
}

// AddToPath appends hash to the path, preserving order. It fails once the
// path has reached MaxPathSize entries.
func (p *Packet) AddToPath(hash byte) error {
	if len(p.Path) >= MaxPathSize {
		return fmt.Errorf("wire: path full at %d entries: %w", MaxPathSize, ErrPathFull)
	}
	p.Path = append(p.Path, hash)
	return nil
}

// IsInPath reports whether hash already appears anywhere in the path.
func (p *Packet) IsInPath(hash byte) bool {
	for _, h := range p.Path {
		if h == hash {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p so callers may mutate the path (e.g. for
// rebroadcast) without aliasing the original buffers.
func (p *Packet) Clone() Packet {
	path := make([]byte, len(p.Path))
	copy(path, p.Path)
	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)
	return Packet{
		Route:          p.Route,
		PayloadType:    p.PayloadType,
		PayloadVersion: p.PayloadVersion,
		TransportCodes: p.TransportCodes,
		Path:           path,
		Payload:        payload,
	}
}
