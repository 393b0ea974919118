// Package router implements flood-route deduplication, path extension,
// and randomized rebroadcast scheduling (C5). Direct routes are not
// deduplicated here: per spec, the destination's hash belongs in the
// path by construction, so the mesh engine handles direct delivery
// itself without consulting the router.
package router

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/meshcore/meshcore-go/internal/wire"
)

// Config tunes rebroadcast timing and the path-check policy flag.
type Config struct {
	SelfPathHash     byte
	PathCheckEnabled bool
	MinDelay         time.Duration
	MaxDelay         time.Duration
}

// DefaultConfig matches spec §4.5 and §6 defaults.
func DefaultConfig(selfPathHash byte) Config {
	return Config{
		SelfPathHash:     selfPathHash,
		PathCheckEnabled: true,
		MinDelay:         50 * time.Millisecond,
		MaxDelay:         200 * time.Millisecond,
	}
}

// pending is a scheduled rebroadcast awaiting its send-at time.
type pending struct {
	frame    []byte
	sendAt   time.Time
	sequence uint64 // FIFO tie-break for equal sendAt
}

// Router owns the rebroadcast queue and the duplicate/rebroadcast
// counters. It is not safe to share across goroutines without external
// synchronization beyond what its own mutex provides, but per spec §5 it
// is only ever touched by the main tick loop anyway.
type Router struct {
	cfg Config
	mu  sync.Mutex
	q   []pending
	seq uint64

	DuplicateCount    uint64
	RebroadcastCount  uint64
	DroppedCount      uint64
}

// New constructs a Router.
func New(cfg Config) *Router {
	return &Router{cfg: cfg}
}

// IsFloodCandidate reports whether pkt is eligible for rebroadcast: it
// must be a flood route, must not already carry our path hash (when path
// checking is enabled), and must have room left in its path.
func (r *Router) IsFloodCandidate(pkt *wire.Packet) bool {
	if pkt.Route != wire.RouteFlood && pkt.Route != wire.RouteTransportFlood {
		return false
	}
	if r.cfg.PathCheckEnabled && pkt.IsInPath(r.cfg.SelfPathHash) {
		return false
	}
	if len(pkt.Path) >= wire.MaxPathSize {
		return false
	}
	return true
}

// Accept evaluates pkt for rebroadcast and, if eligible, schedules it:
// clones the packet, appends our path hash, re-encodes, and enqueues with
// a randomized send-at in [now+MinDelay, now+MaxDelay). It returns true
// iff a rebroadcast was scheduled.
func (r *Router) Accept(pkt *wire.Packet, now time.Time) bool {
	if !r.IsFloodCandidate(pkt) {
		if pkt.Route == wire.RouteFlood || pkt.Route == wire.RouteTransportFlood {
			r.mu.Lock()
			r.DuplicateCount++
			r.mu.Unlock()
		}
		return false
	}

	clone := pkt.Clone()
	if err := clone.AddToPath(r.cfg.SelfPathHash); err != nil {
		r.mu.Lock()
		r.DroppedCount++
		r.mu.Unlock()
		log.Printf("router: dropping rebroadcast candidate: %v", err)
		return false
	}

	buf := make([]byte, wire.MaxSize)
	n, err := wire.Encode(&clone, buf)
	if err != nil {
		r.mu.Lock()
		r.DroppedCount++
		r.mu.Unlock()
		log.Printf("router: dropping rebroadcast candidate, re-encode failed: %v", err)
		return false
	}

	delay := r.randomDelay()
	r.mu.Lock()
	r.seq++
	r.q = append(r.q, pending{
		frame:    append([]byte(nil), buf[:n]...),
		sendAt:   now.Add(delay),
		sequence: r.seq,
	})
	r.RebroadcastCount++
	r.mu.Unlock()
	return true
}

func (r *Router) randomDelay() time.Duration {
	span := r.cfg.MaxDelay - r.cfg.MinDelay
	if span <= 0 {
		return r.cfg.MinDelay
	}
	return r.cfg.MinDelay + time.Duration(rand.Int63n(int64(span)))
}

// DrainDue pops every rebroadcast whose send-at is at or before now, in
// FIFO order (by send-at, tie-broken by submission order), and returns
// their encoded frames ready for the transport facade.
func (r *Router) DrainDue(now time.Time) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.q, func(i, j int) bool {
		if r.q[i].sendAt.Equal(r.q[j].sendAt) {
			return r.q[i].sequence < r.q[j].sequence
		}
		return r.q[i].sendAt.Before(r.q[j].sendAt)
	})

	var due [][]byte
	i := 0
	for ; i < len(r.q); i++ {
		if r.q[i].sendAt.After(now) {
			break
		}
		due = append(due, r.q[i].frame)
	}
	r.q = r.q[i:]
	return due
}

// Pending reports how many rebroadcasts are currently queued.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.q)
}

// SetPathCheckEnabled toggles the path_check_enabled policy flag at
// runtime (exposed via the script API, spec §4.9).
func (r *Router) SetPathCheckEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.PathCheckEnabled = enabled
}

func (r *Router) String() string {
	return fmt.Sprintf("router(dup=%d rebcast=%d dropped=%d pending=%d)",
		r.DuplicateCount, r.RebroadcastCount, r.DroppedCount, r.Pending())
}
