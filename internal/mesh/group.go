package mesh

import (
	"fmt"
	"time"

	"github.com/meshcore/meshcore-go/internal/channel"
	"github.com/meshcore/meshcore-go/internal/wire"
)

// LocalGroupMessage is the record the engine keeps of a message it
// originated itself, surfaced back to the UI as already verified and read
// (spec §4.6 "Sending a group message").
type LocalGroupMessage struct {
	ChannelName string
	Text        string
	Verified    bool
	IsRead      bool
}

// SendGroupMessage encrypts text for channelName, wraps it as a flood
// GRP_TXT packet, and enqueues it. It returns the local echo record the
// caller should surface to the UI immediately.
func (e *Engine) SendGroupMessage(channelName, text string, now time.Time) (LocalGroupMessage, error) {
	jc, ok := e.channels.byName[channelName]
	if !ok || !jc.Joined {
		return LocalGroupMessage{}, fmt.Errorf("mesh: channel %q is not joined", channelName)
	}

	plaintext := channel.EncodePlaintext(uint32(now.Unix()), 0, e.id.Name(), text)
	mac, ciphertext, err := channel.Encrypt(jc.Key, plaintext)
	if err != nil {
		return LocalGroupMessage{}, fmt.Errorf("mesh: encrypting group message: %w", err)
	}

	group := wire.GroupPayload{
		ChannelHash: channel.Hash(jc.Key),
		Mac:         mac,
		Ciphertext:  ciphertext,
	}

	pkt := &wire.Packet{
		Route:          wire.RouteFlood,
		PayloadType:    wire.PayloadGrpTxt,
		PayloadVersion: 1,
		Payload:        group.Encode(),
	}
	if err := e.send(pkt); err != nil {
		return LocalGroupMessage{}, err
	}

	return LocalGroupMessage{ChannelName: channelName, Text: text, Verified: true, IsRead: true}, nil
}

// SendRawGroupPacket wraps caller-supplied mac+ciphertext bytes under
// channelHash and sends them as a flood GRP_TXT packet without performing
// any encryption itself (the script API's mesh.send_group_packet).
func (e *Engine) SendRawGroupPacket(channelHash byte, macAndCiphertext []byte) error {
	payload := append([]byte{channelHash}, macAndCiphertext...)
	pkt := &wire.Packet{
		Route:          wire.RouteFlood,
		PayloadType:    wire.PayloadGrpTxt,
		PayloadVersion: 1,
		Payload:        payload,
	}
	return e.send(pkt)
}
