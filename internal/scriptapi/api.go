// Package scriptapi exposes the thin, language-neutral contract (C9) that
// the UI scripting layer consumes: mesh control, storage preferences,
// bulk crypto routed through the async worker, and a pub/sub bus. The
// engine, key-value store, and worker are referenced by handle, never
// owned, so the API never calls back into a table it does not itself own
// (spec §9 Design Notes).
package scriptapi

import (
	"fmt"
	"time"

	"github.com/meshcore/meshcore-go/internal/kvstore"
	"github.com/meshcore/meshcore-go/internal/mesh"
	"github.com/meshcore/meshcore-go/internal/worker"
)

// API is the script-facing facade. Construct one per running node.
type API struct {
	engine *mesh.Engine
	kv     *kvstore.Store
	wrk    *worker.Worker
	Bus    *Bus
	ready  bool
}

// New wires an API facade to an already-constructed engine, key-value
// store, and worker.
func New(engine *mesh.Engine, kv *kvstore.Store, wrk *worker.Worker) *API {
	return &API{engine: engine, kv: kv, wrk: wrk, Bus: NewBus(), ready: true}
}

// IsInitialized reports whether the underlying services are ready for use.
func (a *API) IsInitialized() bool { return a.ready }

// --- mesh.* ---

func (a *API) SendAdvert() error {
	return a.engine.SendAdvert(time.Now())
}

// SendGroupPacket wraps caller-supplied, already-encrypted bytes (mac +
// ciphertext) under channelHash and sends them as a flood GRP_TXT packet,
// bypassing the convenience encrypt-and-send path in SendGroupMessage.
func (a *API) SendGroupPacket(channelHash byte, macAndCiphertext []byte) error {
	return a.engine.SendRawGroupPacket(channelHash, macAndCiphertext)
}

func (a *API) SetAnnounceInterval(ms int64) { a.engine.SetAdvertInterval(ms) }
func (a *API) SetPathCheck(enabled bool)    { a.engine.SetPathCheckEnabled(enabled) }
func (a *API) GetShortID() byte             { return a.engine.ShortID() }
func (a *API) SetNodeName(name string)      { a.engine.SetNodeName(name) }

func (a *API) OnPacket(fn mesh.PacketHook)                  { a.engine.OnPacket(fn) }
func (a *API) OnNode(fn func(*mesh.NodeInfo))                { a.engine.OnNode(fn) }
func (a *API) OnGroupPacket(fn func(byte, [2]byte, []byte)) {
	a.engine.OnGroupPacket(func(hash byte, mac [2]byte, ciphertext []byte) {
		fn(hash, mac, ciphertext)
	})
}

// --- storage.* ---

// GetPref returns the stored preference value, or def if absent.
func (a *API) GetPref(key, def string) string {
	v, ok := a.kv.GetString(kvstore.NamespaceSettings, key)
	if !ok {
		return def
	}
	return v
}

// SetPref stores a preference value.
func (a *API) SetPref(key, value string) error {
	return a.kv.PutString(kvstore.NamespaceSettings, key, value)
}

// --- crypto.* (bulk ops routed through the async worker) ---

// SubmitCrypto routes a bulk crypto request through the worker and
// returns the continuation token the caller should correlate against
// worker.Result.Token when polling the result queue.
func (a *API) SubmitCrypto(op worker.Op, key, data []byte) (string, error) {
	if op != worker.OpAESEncrypt && op != worker.OpAESDecrypt && op != worker.OpHMACSHA256 {
		return "", fmt.Errorf("scriptapi: %s is not a crypto op", op)
	}
	token := worker.NewToken()
	if err := a.wrk.Submit(worker.Request{Token: token, Op: op, Key: key, Data: data}); err != nil {
		return "", err
	}
	return token, nil
}
