// Package mesh implements the top-level Mesh Engine (C6): ADVERT/TXT_MSG/
// GRP_TXT dispatch, the node table, and the advertise timer, wired to the
// identity, channel, router, and radio transport packages.
package mesh

import (
	"fmt"
	"log"
	"time"

	"github.com/meshcore/meshcore-go/internal/channel"
	"github.com/meshcore/meshcore-go/internal/identity"
	"github.com/meshcore/meshcore-go/internal/radio"
	"github.com/meshcore/meshcore-go/internal/router"
	"github.com/meshcore/meshcore-go/internal/wire"
)

// Config tunes the mesh engine's advertise timer and node table.
type Config struct {
	AdvertIntervalMs  int64 // 0 disables periodic ADVERT
	PathCheckEnabled  bool
	NodeTableCapacity int
}

// DefaultConfig matches spec §4.5/§4.6 suggested defaults.
func DefaultConfig() Config {
	return Config{
		AdvertIntervalMs:  0,
		PathCheckEnabled:  true,
		NodeTableCapacity: 128,
	}
}

// PacketHook lets a script-registered handler intercept every packet
// before default dispatch. handled suppresses default dispatch;
// requestRebroadcast, if handled is true, still schedules a rebroadcast.
type PacketHook func(pkt *wire.Packet, meta radio.RxMetadata) (handled, requestRebroadcast bool)

// Engine is the process-scoped mesh service: it owns the node table and
// rebroadcast queue exclusively (spec §3 Ownership).
type Engine struct {
	cfg      Config
	id       *identity.Identity
	channels *channelTable
	dedup    *groupMessageDedup
	transport radio.Transport
	router   *router.Router
	nodes    *nodeTable

	txCount, rxCount uint64
	lastAdvertMs     int64

	onPacket          PacketHook
	onNode            func(*NodeInfo)
	onGroupPacket     func(channelHash byte, mac [channel.MacSize]byte, ciphertext []byte)
	onDirectMessage   func(text string, meta radio.RxMetadata)
	onNameChange      func(name string)
	onChannelsChanged func()
}

// New constructs a mesh Engine. The caller retains ownership of id and
// transport; the engine never closes them.
func New(cfg Config, id *identity.Identity, transport radio.Transport) *Engine {
	routerCfg := router.DefaultConfig(id.PathHash())
	routerCfg.PathCheckEnabled = cfg.PathCheckEnabled
	return &Engine{
		cfg:       cfg,
		id:        id,
		channels:  newChannelTable(),
		dedup:     newGroupMessageDedup(),
		transport: transport,
		router:    router.New(routerCfg),
		nodes:     newNodeTable(cfg.NodeTableCapacity),
	}
}

// OnPacket registers the single packet-intercept hook (spec §4.9).
func (e *Engine) OnPacket(fn PacketHook) { e.onPacket = fn }

// OnNode registers the single node-discovered/refreshed hook.
func (e *Engine) OnNode(fn func(*NodeInfo)) { e.onNode = fn }

// OnGroupPacket registers a hook that receives raw GRP_TXT bytes instead
// of default trial-decryption handling.
func (e *Engine) OnGroupPacket(fn func(channelHash byte, mac [channel.MacSize]byte, ciphertext []byte)) {
	e.onGroupPacket = fn
}

// OnDirectMessage registers the text surface hook: it receives TXT_MSG
// payloads and, when no OnGroupPacket hook is registered, the text of
// GRP_TXT messages recovered by trial decryption.
func (e *Engine) OnDirectMessage(fn func(text string, meta radio.RxMetadata)) {
	e.onDirectMessage = fn
}

// OnNameChange registers a hook invoked whenever SetNodeName assigns a new
// name, used by the composition root to persist it to the identity
// namespace (spec §4.8 persisted state: "nodename").
func (e *Engine) OnNameChange(fn func(name string)) {
	e.onNameChange = fn
}

// OnChannelsChanged registers a hook invoked whenever a channel is joined
// or re-joined, used by the composition root to persist the channel table
// to the channels namespace (spec §4.8 persisted state: "count", "name<i>",
// "enc<i>", "key<i>").
func (e *Engine) OnChannelsChanged(fn func()) {
	e.onChannelsChanged = fn
}

// JoinChannel adds or re-joins a channel by name, deriving its key from
// the name (spec §4.3 DeriveKey).
func (e *Engine) JoinChannel(name string) {
	e.channels.join(name)
	e.notifyChannelsChanged()
}

// JoinChannelWithKey adds or re-joins a channel using an explicit
// pre-shared key rather than the name-derived default.
func (e *Engine) JoinChannelWithKey(name string, key [channel.KeySize]byte) {
	e.channels.joinWithKey(name, key)
	e.notifyChannelsChanged()
}

func (e *Engine) notifyChannelsChanged() {
	if e.onChannelsChanged != nil {
		e.onChannelsChanged()
	}
}

// ChannelInfo is one entry of the engine's channel table, exposed read-only
// for the composition root to persist (spec §4.8).
type ChannelInfo struct {
	Name     string
	Key      [channel.KeySize]byte
	Explicit bool
}

// Channels returns every joined channel.
func (e *Engine) Channels() []ChannelInfo {
	joined := e.channels.all()
	out := make([]ChannelInfo, 0, len(joined))
	for _, jc := range joined {
		if !jc.Joined {
			continue
		}
		out = append(out, ChannelInfo{Name: jc.Name, Key: jc.Key, Explicit: jc.Explicit})
	}
	return out
}

// SetPathCheckEnabled toggles router path-check policy at runtime.
func (e *Engine) SetPathCheckEnabled(enabled bool) {
	e.cfg.PathCheckEnabled = enabled
	e.router.SetPathCheckEnabled(enabled)
}

// SetAdvertInterval changes the advertise timer period; 0 disables it.
func (e *Engine) SetAdvertInterval(ms int64) {
	e.cfg.AdvertIntervalMs = ms
}

// ShortID returns the node's path hash, the identifier surfaced to the
// script API as `mesh.get_short_id()`.
func (e *Engine) ShortID() byte { return e.id.PathHash() }

// SetNodeName updates the node's advertised display name and persists it
// via the registered OnNameChange hook, if any, so it survives restarts.
func (e *Engine) SetNodeName(name string) {
	e.id.SetName(name)
	if e.onNameChange != nil {
		e.onNameChange(name)
	}
}

// Stats exposes the tx/rx/duplicate/rebroadcast counters for observability.
type Stats struct {
	TX, RX               uint64
	Duplicates           uint64
	Rebroadcasts         uint64
	Dropped              uint64
	PendingRebroadcasts  int
	NodeCount            int
}

func (e *Engine) Stats() Stats {
	return Stats{
		TX:                  e.txCount,
		RX:                  e.rxCount,
		Duplicates:          e.router.DuplicateCount,
		Rebroadcasts:        e.router.RebroadcastCount,
		Dropped:             e.router.DroppedCount,
		PendingRebroadcasts: e.router.Pending(),
		NodeCount:           e.nodes.size(),
	}
}

// Tick runs one iteration of the update cycle described in spec §4.6:
// drain due rebroadcasts, read and dispatch one frame if available, and
// fire the advertise timer if due. Call at ~100 Hz.
func (e *Engine) Tick(now time.Time) error {
	for _, frame := range e.router.DrainDue(now) {
		if err := e.transport.QueueSend(frame); err != nil {
			log.Printf("mesh: rebroadcast send failed: %v", err)
		}
	}
	if err := e.transport.ProcessQueue(); err != nil {
		log.Printf("mesh: transport queue processing error: %v", err)
	}

	if e.transport.Available() {
		buf := make([]byte, wire.MaxSize)
		n, meta, ok := e.transport.Receive(buf)
		if ok {
			e.rxCount++
			e.receive(buf[:n], meta, now)
		}
	}

	if e.cfg.AdvertIntervalMs > 0 {
		nowMs := now.UnixMilli()
		if nowMs-e.lastAdvertMs >= e.cfg.AdvertIntervalMs {
			if err := e.SendAdvert(now); err != nil {
				log.Printf("mesh: periodic advert failed: %v", err)
			}
			e.lastAdvertMs = nowMs
		}
	}
	return nil
}

func (e *Engine) receive(data []byte, meta radio.RxMetadata, now time.Time) {
	pkt, err := wire.Decode(data)
	if err != nil {
		log.Printf("mesh: dropping malformed packet: %v", err)
		return
	}
	e.dispatch(&pkt, meta, now)
}

func (e *Engine) send(pkt *wire.Packet) error {
	if err := pkt.AddToPath(e.id.PathHash()); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	buf := make([]byte, wire.MaxSize)
	n, err := wire.Encode(pkt, buf)
	if err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	if err := e.transport.QueueSend(buf[:n]); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	e.txCount++
	return nil
}
