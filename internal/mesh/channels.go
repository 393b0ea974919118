package mesh

import (
	"fmt"
	"time"

	"github.com/meshcore/meshcore-go/internal/channel"
)

// joinedChannel is one entry in the channel table: the mesh engine's
// exclusive view of a channel's derived key and join state (spec §3
// Ownership: "the channel table exclusively owns derived keys").
type joinedChannel struct {
	Name     string
	Key      [channel.KeySize]byte
	Joined   bool
	Explicit bool // true if Key came from an out-of-band key_hex rather than DeriveKey(Name)
}

// channelTable holds every joined channel, including the always-present
// well-known "#Public" channel.
type channelTable struct {
	byName map[string]*joinedChannel
}

func newChannelTable() *channelTable {
	t := &channelTable{byName: make(map[string]*joinedChannel)}
	t.join("#Public")
	return t
}

func (t *channelTable) join(name string) *joinedChannel {
	return t.joinInternal(name, channel.DeriveKey(name), false)
}

// joinWithKey joins name with an explicit pre-shared key rather than the
// name-derived default, for channels provisioned out-of-band (spec §4
// channel table: "joined from config or API").
func (t *channelTable) joinWithKey(name string, key [channel.KeySize]byte) *joinedChannel {
	return t.joinInternal(name, key, true)
}

func (t *channelTable) joinInternal(name string, key [channel.KeySize]byte, explicit bool) *joinedChannel {
	if existing, ok := t.byName[name]; ok {
		existing.Joined = true
		existing.Key = key
		existing.Explicit = explicit
		return existing
	}
	jc := &joinedChannel{Name: name, Key: key, Joined: true, Explicit: explicit}
	t.byName[name] = jc
	return jc
}

func (t *channelTable) byKeyHash(hash byte) []*joinedChannel {
	var matches []*joinedChannel
	for _, jc := range t.byName {
		if !jc.Joined {
			continue
		}
		if channel.Hash(jc.Key) == hash {
			matches = append(matches, jc)
		}
	}
	return matches
}

func (t *channelTable) all() []*joinedChannel {
	out := make([]*joinedChannel, 0, len(t.byName))
	for _, jc := range t.byName {
		out = append(out, jc)
	}
	return out
}

// groupMessageDedup dedupes identical (channel, text) pairs seen via
// trial decryption within a 30s window, per spec §4.6.
type groupMessageDedup struct {
	window time.Duration
	seen   map[string]time.Time
}

func newGroupMessageDedup() *groupMessageDedup {
	return &groupMessageDedup{window: 30 * time.Second, seen: make(map[string]time.Time)}
}

func (d *groupMessageDedup) seenRecently(channelName, text string, now time.Time) bool {
	key := fmt.Sprintf("%s\x00%s", channelName, text)
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return true
	}
	d.seen[key] = now
	return false
}
