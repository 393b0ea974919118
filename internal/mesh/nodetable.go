package mesh

import "github.com/meshcore/meshcore-go/internal/wire"

// NodeInfo is a node table entry: what the mesh engine knows about a peer
// from its most recent ADVERT (spec §3).
type NodeInfo struct {
	PathHash       byte
	HasPubKey      bool
	PubKey         [32]byte
	Name           string
	LastSeenMs     int64
	AdvertTimestamp uint32
	LastRSSI       int16
	LastSNR        int16
	HopCount       int
	Role           wire.Role
	HasLocation    bool
	LatE6          int32
	LonE6          int32
	Verified       bool
}

// nodeTable indexes NodeInfo by path hash (primary) and by public key
// (secondary), with a capacity cap evicting the oldest last-seen entry.
type nodeTable struct {
	capacity int
	byHash   map[byte]*NodeInfo
}

func newNodeTable(capacity int) *nodeTable {
	return &nodeTable{capacity: capacity, byHash: make(map[byte]*NodeInfo)}
}

func (t *nodeTable) get(hash byte) (*NodeInfo, bool) {
	n, ok := t.byHash[hash]
	return n, ok
}

func (t *nodeTable) findByPubKey(pub [32]byte) (*NodeInfo, bool) {
	for _, n := range t.byHash {
		if n.HasPubKey && n.PubKey == pub {
			return n, true
		}
	}
	return nil, false
}

// upsert creates or refreshes a node entry, evicting the oldest entry by
// last-seen time if this would exceed capacity.
func (t *nodeTable) upsert(n *NodeInfo) {
	if _, exists := t.byHash[n.PathHash]; !exists && len(t.byHash) >= t.capacity {
		t.evictOldest()
	}
	t.byHash[n.PathHash] = n
}

func (t *nodeTable) evictOldest() {
	var oldestHash byte
	var oldestTime int64
	first := true
	for h, n := range t.byHash {
		if first || n.LastSeenMs < oldestTime {
			oldestHash = h
			oldestTime = n.LastSeenMs
			first = false
		}
	}
	if !first {
		delete(t.byHash, oldestHash)
	}
}

func (t *nodeTable) size() int {
	return len(t.byHash)
}

func (t *nodeTable) all() []*NodeInfo {
	out := make([]*NodeInfo, 0, len(t.byHash))
	for _, n := range t.byHash {
		out = append(out, n)
	}
	return out
}
