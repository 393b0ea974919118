package wire

import "fmt"

const (
	ChannelHashSize = 1
	MacSize         = 2
	groupHeaderSize = ChannelHashSize + MacSize
)

// GroupPayload is the wire framing of a GRP_TXT payload: channel_hash, mac,
// and opaque ciphertext. Encryption and authentication live in the channel
// package; this type only knows how to frame and split the bytes.
type GroupPayload struct {
	ChannelHash byte
	Mac         [MacSize]byte
	Ciphertext  []byte
}

func (g GroupPayload) Encode() []byte {
	out := make([]byte, 0, groupHeaderSize+len(g.Ciphertext))
	out = append(out, g.ChannelHash)
	out = append(out, g.Mac[:]...)
	out = append(out, g.Ciphertext...)
	return out
}

// DecodeGroupPayload requires at least 1+2+16=19 bytes per spec.
func DecodeGroupPayload(data []byte) (GroupPayload, error) {
	if len(data) < groupHeaderSize+16 {
		return GroupPayload{}, fmt.Errorf("wire: grp_txt payload %d bytes below minimum %d: %w", len(data), groupHeaderSize+16, ErrMalformed)
	}
	var g GroupPayload
	g.ChannelHash = data[0]
	copy(g.Mac[:], data[1:groupHeaderSize])
	g.Ciphertext = append([]byte(nil), data[groupHeaderSize:]...)
	return g, nil
}
