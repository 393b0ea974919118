package mesh

import (
	"fmt"
	"time"

	"github.com/meshcore/meshcore-go/internal/wire"
)

const advertAppDataFlagByte = 0x81 // RoleChat (0b01) | HasName (bit 7)

// SendAdvert builds and enqueues a flood ADVERT announcing this node's
// identity and name, per spec §4.6 "Sending ADVERT".
func (e *Engine) SendAdvert(now time.Time) error {
	name := e.id.Name()
	appData, err := wire.AdvertAppData{Role: wire.RoleChat, Name: name}.Encode()
	if err != nil {
		return fmt.Errorf("mesh: encoding advert app_data: %w", err)
	}

	payload := wire.AdvertPayload{
		PubKey:    e.id.PublicKey(),
		Timestamp: uint32(now.Unix()),
		AppData:   appData,
	}
	payload.Signature = e.id.Sign(payload.SignedMessage())

	encoded, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("mesh: encoding advert payload: %w", err)
	}

	pkt := &wire.Packet{
		Route:          wire.RouteFlood,
		PayloadType:    wire.PayloadAdvert,
		PayloadVersion: 1,
		Payload:        encoded,
	}
	return e.send(pkt)
}
