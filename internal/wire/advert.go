package wire

import "fmt"

const (
	PubKeySize     = 32
	SignatureSize  = 64
	advertTSSize   = 4
	MaxAdvertData  = 32
	advertMinSize  = PubKeySize + advertTSSize + SignatureSize // 100, app_data may be empty
)

// Role is the low two bits of an ADVERT's app-data flag byte.
type Role uint8

const (
	RoleNone     Role = 0
	RoleChat     Role = 1
	RoleRepeater Role = 2
	RoleRoom     Role = 3
)

const (
	flagSensor      = 1 << 2
	flagHasLocation = 1 << 4
	flagFeaturesLo  = 1 << 5
	flagFeaturesHi  = 1 << 6
	flagHasName     = 1 << 7
)

// AdvertAppData is the parsed form of an ADVERT's variable app_data tail.
type AdvertAppData struct {
	Role        Role
	Sensor      bool
	HasLocation bool
	LatE6       int32
	LonE6       int32
	Features    uint16
	HasFeatures bool
	Name        string
}

// Encode renders the flag byte plus optional fields, in spec order:
// flags, [lat,lon if HasLocation], [features if HasFeatures], [name bytes if non-empty].
func (a AdvertAppData) Encode() ([]byte, error) {
	nameBytes := []byte(a.Name)
	if len(nameBytes) > 16 {
		return nil, fmt.Errorf("wire: advert name %q exceeds 16 bytes: %w", a.Name, ErrOverflow)
	}
	flags := byte(a.Role & 0x03)
	if a.Sensor {
		flags |= flagSensor
	}
	if a.HasLocation {
		flags |= flagHasLocation
	}
	if a.HasFeatures {
		flags |= flagFeaturesLo
	}
	hasName := len(nameBytes) > 0
	if hasName {
		flags |= flagHasName
	}

	out := make([]byte, 0, MaxAdvertData)
	out = append(out, flags)
	if a.HasLocation {
		out = appendInt32(out, a.LatE6)
		out = appendInt32(out, a.LonE6)
	}
	if a.HasFeatures {
		out = append(out, byte(a.Features), byte(a.Features>>8))
	}
	if hasName {
		out = append(out, nameBytes...)
	}
	if len(out) > MaxAdvertData {
		return nil, fmt.Errorf("wire: advert app_data %d bytes exceeds %d: %w", len(out), MaxAdvertData, ErrOverflow)
	}
	return out, nil
}

// DecodeAdvertAppData parses app_data built by Encode. An empty slice
// decodes to the zero value (RoleNone, no location, no name).
func DecodeAdvertAppData(data []byte) (AdvertAppData, error) {
	if len(data) == 0 {
		return AdvertAppData{}, nil
	}
	flags := data[0]
	a := AdvertAppData{
		Role:        Role(flags & 0x03),
		Sensor:      flags&flagSensor != 0,
		HasLocation: flags&flagHasLocation != 0,
		HasFeatures: flags&flagFeaturesLo != 0,
	}
	n := 1
	if a.HasLocation {
		if len(data) < n+8 {
			return AdvertAppData{}, fmt.Errorf("wire: truncated advert location: %w", ErrMalformed)
		}
		a.LatE6 = readInt32(data[n:])
		a.LonE6 = readInt32(data[n+4:])
		n += 8
	}
	if a.HasFeatures {
		if len(data) < n+2 {
			return AdvertAppData{}, fmt.Errorf("wire: truncated advert features: %w", ErrMalformed)
		}
		a.Features = uint16(data[n]) | uint16(data[n+1])<<8
		n += 2
	}
	if flags&flagHasName != 0 && n < len(data) {
		a.Name = string(data[n:])
	}
	return a, nil
}

// AdvertPayload is the fully assembled ADVERT payload: pubkey, timestamp,
// signature, and app_data.
type AdvertPayload struct {
	PubKey    [PubKeySize]byte
	Timestamp uint32
	Signature [SignatureSize]byte
	AppData   []byte
}

// SignedMessage returns the canonical bytes an ADVERT signature covers:
// pubkey || timestamp || app_data.
func (p AdvertPayload) SignedMessage() []byte {
	out := make([]byte, 0, PubKeySize+advertTSSize+len(p.AppData))
	out = append(out, p.PubKey[:]...)
	out = appendUint32(out, p.Timestamp)
	out = append(out, p.AppData...)
	return out
}

func (p AdvertPayload) Encode() ([]byte, error) {
	if len(p.AppData) > MaxAdvertData {
		return nil, fmt.Errorf("wire: advert app_data %d bytes exceeds %d: %w", len(p.AppData), MaxAdvertData, ErrOverflow)
	}
	out := make([]byte, 0, advertMinSize+len(p.AppData))
	out = append(out, p.PubKey[:]...)
	out = appendUint32(out, p.Timestamp)
	out = append(out, p.Signature[:]...)
	out = append(out, p.AppData...)
	return out, nil
}

// DecodeAdvertPayload requires at least advertMinSize (100) bytes.
func DecodeAdvertPayload(data []byte) (AdvertPayload, error) {
	if len(data) < advertMinSize {
		return AdvertPayload{}, fmt.Errorf("wire: advert payload %d bytes below minimum %d: %w", len(data), advertMinSize, ErrMalformed)
	}
	var p AdvertPayload
	copy(p.PubKey[:], data[0:PubKeySize])
	p.Timestamp = readUint32(data[PubKeySize:])
	copy(p.Signature[:], data[PubKeySize+advertTSSize:PubKeySize+advertTSSize+SignatureSize])
	rest := data[PubKeySize+advertTSSize+SignatureSize:]
	if len(rest) > MaxAdvertData {
		return AdvertPayload{}, fmt.Errorf("wire: advert app_data %d bytes exceeds %d: %w", len(rest), MaxAdvertData, ErrMalformed)
	}
	p.AppData = append([]byte(nil), rest...)
	return p, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendInt32(b []byte, v int32) []byte {
	return appendUint32(b, uint32(v))
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readInt32(b []byte) int32 {
	return int32(readUint32(b))
}
