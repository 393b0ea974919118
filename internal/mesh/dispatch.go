package mesh

import (
	"log"
	"time"

	"github.com/meshcore/meshcore-go/internal/channel"
	"github.com/meshcore/meshcore-go/internal/identity"
	"github.com/meshcore/meshcore-go/internal/radio"
	"github.com/meshcore/meshcore-go/internal/wire"
)

// dispatch implements the dispatch order from spec §4.6: an optional
// packet hook runs first and may suppress default handling; otherwise the
// engine switches on payload type, then hands flood packets to the router
// for rebroadcast scheduling unless suppressed.
func (e *Engine) dispatch(pkt *wire.Packet, meta radio.RxMetadata, now time.Time) {
	requestRebroadcast := true

	if e.onPacket != nil {
		handled, rebroadcast := e.onPacket(pkt, meta)
		requestRebroadcast = rebroadcast
		if handled {
			e.maybeRebroadcast(pkt, requestRebroadcast, now)
			return
		}
	}

	switch pkt.PayloadType {
	case wire.PayloadAdvert:
		e.handleAdvert(pkt, meta, now)
	case wire.PayloadGrpTxt:
		e.handleGroupText(pkt, now)
	case wire.PayloadTxtMsg:
		if e.onDirectMessage != nil {
			e.onDirectMessage(string(pkt.Payload), meta)
		}
	default:
		log.Printf("mesh: unhandled payload type %d from path %v", pkt.PayloadType, pkt.Path)
	}

	e.maybeRebroadcast(pkt, requestRebroadcast, now)
}

func (e *Engine) maybeRebroadcast(pkt *wire.Packet, requested bool, now time.Time) {
	if !requested {
		return
	}
	if pkt.Route != wire.RouteFlood && pkt.Route != wire.RouteTransportFlood {
		return
	}
	e.router.Accept(pkt, now)
}

func (e *Engine) handleAdvert(pkt *wire.Packet, meta radio.RxMetadata, now time.Time) {
	advert, err := wire.DecodeAdvertPayload(pkt.Payload)
	if err != nil {
		log.Printf("mesh: dropping malformed advert: %v", err)
		return
	}

	verified := identity.Verify(advert.SignedMessage(), advert.Signature, advert.PubKey)
	appData, err := wire.DecodeAdvertAppData(advert.AppData)
	if err != nil {
		log.Printf("mesh: advert from %x has malformed app_data: %v", advert.PubKey[0], err)
		appData = wire.AdvertAppData{}
	}

	pathHash := advert.PubKey[0]
	n, existed := e.nodes.get(pathHash)
	if !existed {
		n = &NodeInfo{}
	}
	n.PathHash = pathHash
	n.HasPubKey = true
	n.PubKey = advert.PubKey
	if appData.Name != "" {
		n.Name = appData.Name
	}
	n.LastSeenMs = now.UnixMilli()
	n.AdvertTimestamp = advert.Timestamp
	n.LastRSSI = meta.RSSI
	n.LastSNR = meta.SNR
	n.HopCount = len(pkt.Path)
	n.Role = appData.Role
	n.HasLocation = appData.HasLocation
	if appData.HasLocation {
		n.LatE6 = appData.LatE6
		n.LonE6 = appData.LonE6
	}
	n.Verified = verified

	e.nodes.upsert(n)
	if e.onNode != nil {
		e.onNode(n)
	}
}

func (e *Engine) handleGroupText(pkt *wire.Packet, now time.Time) {
	group, err := wire.DecodeGroupPayload(pkt.Payload)
	if err != nil {
		log.Printf("mesh: dropping malformed grp_txt: %v", err)
		return
	}

	if e.onGroupPacket != nil {
		e.onGroupPacket(group.ChannelHash, group.Mac, group.Ciphertext)
		return
	}

	for _, jc := range e.channels.byKeyHash(group.ChannelHash) {
		plaintext, err := channel.Decrypt(jc.Key, group.Mac, group.Ciphertext)
		if err != nil {
			continue
		}
		msg, err := channel.ParseMessage(plaintext)
		if err != nil {
			continue
		}
		if e.dedup.seenRecently(jc.Name, msg.Text, now) {
			return
		}
		if e.onDirectMessage != nil {
			e.onDirectMessage(msg.Text, radio.RxMetadata{})
		}
		return
	}
}
