package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{
			name: "flood advert, no transport codes",
			pkt: Packet{
				Route:          RouteFlood,
				PayloadType:    PayloadAdvert,
				PayloadVersion: 1,
				Path:           []byte{0x42},
				Payload:        bytes.Repeat([]byte{0xAB}, 100),
			},
		},
		{
			name: "direct with empty path",
			pkt: Packet{
				Route:       RouteDirect,
				PayloadType: PayloadTxtMsg,
				Payload:     []byte("hi"),
			},
		},
		{
			name: "transport flood with codes",
			pkt: Packet{
				Route:          RouteTransportFlood,
				PayloadType:    PayloadGrpTxt,
				TransportCodes: 0xDEADBEEF,
				Path:           []byte{1, 2, 3},
				Payload:        []byte{9, 9, 9},
			},
		},
		{
			name: "max path and payload",
			pkt: Packet{
				Route:       RouteFlood,
				PayloadType: PayloadRawCustom,
				Path:        bytes.Repeat([]byte{0x01}, MaxPathSize),
				Payload:     bytes.Repeat([]byte{0x02}, MaxPacketPayload),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, MaxSize)
			n, err := Encode(&tt.pkt, buf)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(buf[:n])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Route != tt.pkt.Route || got.PayloadType != tt.pkt.PayloadType || got.PayloadVersion != tt.pkt.PayloadVersion {
				t.Fatalf("header mismatch: got %+v want %+v", got, tt.pkt)
			}
			if got.TransportCodes != tt.pkt.TransportCodes {
				t.Fatalf("transport codes mismatch: got %x want %x", got.TransportCodes, tt.pkt.TransportCodes)
			}
			if !bytes.Equal(got.Path, tt.pkt.Path) && !(len(got.Path) == 0 && len(tt.pkt.Path) == 0) {
				t.Fatalf("path mismatch: got %v want %v", got.Path, tt.pkt.Path)
			}
			if !bytes.Equal(got.Payload, tt.pkt.Payload) {
				t.Fatalf("payload mismatch: got %v want %v", got.Payload, tt.pkt.Payload)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header only", []byte{0x01}},
		{"path len exceeds max", []byte{0x01, 0xFF}},
		{"truncated path", []byte{0x01, 0x05, 0x01, 0x02}},
		{"truncated transport codes", []byte{0x00, 0x01, 0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("want ErrMalformed, got %v", err)
			}
		})
	}
}

func TestEncodeOverflow(t *testing.T) {
	pkt := Packet{
		Route:   RouteFlood,
		Payload: bytes.Repeat([]byte{0}, MaxPacketPayload+1),
	}
	buf := make([]byte, MaxSize)
	if _, err := Encode(&pkt, buf); !errors.Is(err, ErrOverflow) {
		t.Fatalf("want ErrOverflow, got %v", err)
	}
}

func TestAddToPathAndIsInPath(t *testing.T) {
	var p Packet
	for i := 0; i < MaxPathSize; i++ {
		if err := p.AddToPath(byte(i)); err != nil {
			t.Fatalf("AddToPath(%d): unexpected error %v", i, err)
		}
	}
	if !p.IsInPath(0x05) {
		t.Fatal("expected 0x05 to be in path")
	}
	if p.IsInPath(0xFE) {
		t.Fatal("did not expect 0xFE to be in path")
	}
	if err := p.AddToPath(0xFF); !errors.Is(err, ErrPathFull) {
		t.Fatalf("want ErrPathFull at capacity, got %v", err)
	}
}

func TestAdvertAppDataRoundTrip(t *testing.T) {
	a := AdvertAppData{
		Role:        RoleChat,
		HasLocation: true,
		LatE6:       37774900,
		LonE6:       -122419400,
		Name:        "Alice",
	}
	enc, err := a.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeAdvertAppData(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Role != a.Role || got.HasLocation != a.HasLocation || got.LatE6 != a.LatE6 || got.LonE6 != a.LonE6 || got.Name != a.Name {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, a)
	}
}

func TestGroupPayloadMinSize(t *testing.T) {
	if _, err := DecodeGroupPayload(make([]byte, 18)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("want ErrMalformed for 18-byte payload, got %v", err)
	}
	g := GroupPayload{ChannelHash: 0x8F, Ciphertext: make([]byte, 16)}
	g.Mac = [2]byte{0x01, 0x02}
	decoded, err := DecodeGroupPayload(g.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ChannelHash != g.ChannelHash || decoded.Mac != g.Mac {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, g)
	}
}
