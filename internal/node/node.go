// Package node is the composition root: it wires identity, storage, radio
// transport, the mesh engine, the async worker, the script-facing API, and
// the optional remote control surface into one running process.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/meshcore/meshcore-go/internal/channel"
	"github.com/meshcore/meshcore-go/internal/config"
	"github.com/meshcore/meshcore-go/internal/identity"
	"github.com/meshcore/meshcore-go/internal/kvstore"
	"github.com/meshcore/meshcore-go/internal/mesh"
	"github.com/meshcore/meshcore-go/internal/radio"
	"github.com/meshcore/meshcore-go/internal/remote"
	"github.com/meshcore/meshcore-go/internal/scriptapi"
	"github.com/meshcore/meshcore-go/internal/worker"
)

// Node owns every long-lived subsystem of a running mesh participant.
type Node struct {
	cfg config.Config

	kv       *kvstore.Store
	id       *identity.Identity
	transport radio.Transport
	engine   *mesh.Engine
	wrk      *worker.Worker
	api      *scriptapi.API

	remoteSrv *http.Server
}

// New opens storage, loads or creates the node identity, dials the radio
// transport, and wires the mesh engine, worker, and script API around
// them. Nothing is started until Run is called.
func New(cfg config.Config) (*Node, error) {
	kv, err := kvstore.Open(cfg.Identity.KVPath)
	if err != nil {
		return nil, fmt.Errorf("node: opening kv store: %w", err)
	}

	id, err := loadOrCreateIdentity(kv, cfg.Identity.Name)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("node: loading identity: %w", err)
	}

	transport, err := dialRadio(cfg.Radio)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("node: dialing radio: %w", err)
	}

	meshCfg := mesh.DefaultConfig()
	meshCfg.AdvertIntervalMs = cfg.Mesh.AdvertIntervalMs
	meshCfg.PathCheckEnabled = cfg.Mesh.PathCheckEnabled
	meshCfg.NodeTableCapacity = cfg.Mesh.NodeTableCapacity

	engine := mesh.New(meshCfg, id, transport)
	engine.OnNameChange(func(name string) {
		if err := kv.PutString(kvstore.NamespaceIdentity, kvstore.KeyNodeName, name); err != nil {
			log.Printf("node: persisting node name: %v", err)
		}
	})
	engine.OnChannelsChanged(func() { persistChannels(kv, engine) })

	persisted, err := loadPersistedChannels(kv)
	if err != nil {
		transport.Close()
		kv.Close()
		return nil, fmt.Errorf("node: loading persisted channels: %w", err)
	}
	for _, ch := range persisted {
		if ch.Explicit {
			engine.JoinChannelWithKey(ch.Name, ch.Key)
		} else {
			engine.JoinChannel(ch.Name)
		}
	}

	for _, ch := range cfg.Mesh.Channels {
		if ch.KeyHex == "" {
			engine.JoinChannel(ch.Name)
			continue
		}
		key, err := hex.DecodeString(ch.KeyHex)
		if err != nil || len(key) != channel.KeySize {
			transport.Close()
			kv.Close()
			return nil, fmt.Errorf("node: channel %q: invalid key_hex", ch.Name)
		}
		var keyArr [channel.KeySize]byte
		copy(keyArr[:], key)
		engine.JoinChannelWithKey(ch.Name, keyArr)
	}

	wrk := worker.New(cfg.Worker.DataDir, cfg.Worker.SDDir)
	api := scriptapi.New(engine, kv, wrk)

	return &Node{
		cfg:       cfg,
		kv:        kv,
		id:        id,
		transport: transport,
		engine:    engine,
		wrk:       wrk,
		api:       api,
	}, nil
}

// Run starts the worker and remote control listener (if configured), then
// drives the mesh engine's tick loop until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	n.wrk.Start()
	defer n.wrk.Stop()

	if n.cfg.Remote.Enabled {
		n.startRemote()
		defer n.stopRemote()
	}

	log.Printf("node: started, id=%s name=%q", n.engine.ShortID(), n.id.Name())

	ticker := time.NewTicker(n.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("node: stopping")
			return nil
		case now := <-ticker.C:
			n.api.Bus.Pump()
			if err := n.engine.Tick(now); err != nil {
				log.Printf("node: tick error: %v", err)
			}
		}
	}
}

// Close releases storage and transport resources. Call after Run returns.
func (n *Node) Close() error {
	if err := n.transport.Close(); err != nil {
		log.Printf("node: closing transport: %v", err)
	}
	if err := n.kv.Close(); err != nil {
		return fmt.Errorf("node: closing kv store: %w", err)
	}
	return nil
}

// API exposes the script-facing surface for embedding Lua/script VMs
// outside this package's scope.
func (n *Node) API() *scriptapi.API {
	return n.api
}

func (n *Node) startRemote() {
	gw := remote.NewWebSocketGateway(noopRemoteHandler{})
	mux := http.NewServeMux()
	mux.HandleFunc("/control", gw.ServeHTTP)
	n.remoteSrv = &http.Server{Addr: n.cfg.Remote.ListenAddr, Handler: mux}

	go func() {
		if err := n.remoteSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("node: remote listener: %v", err)
		}
	}()
	log.Printf("node: remote control listening on %s", n.cfg.Remote.ListenAddr)
}

func (n *Node) stopRemote() {
	if n.remoteSrv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.remoteSrv.Shutdown(ctx); err != nil {
		log.Printf("node: remote shutdown: %v", err)
	}
}

func loadOrCreateIdentity(kv *kvstore.Store, cfgName string) (*identity.Identity, error) {
	seed, err := kv.GetBytes(kvstore.NamespaceIdentity, kvstore.KeyPrivKey)
	if err == nil {
		name, _ := kv.GetString(kvstore.NamespaceIdentity, kvstore.KeyNodeName)
		if name == "" {
			name = cfgName
		}
		id, err := identity.Load(seed, name)
		if err != nil {
			return nil, err
		}
		return finalizeNodeName(kv, id, name)
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return nil, err
	}

	id, err := identity.Generate(cfgName)
	if err != nil {
		return nil, fmt.Errorf("generating identity: %w", err)
	}
	genSeed := id.Seed()
	if err := kv.PutBytes(kvstore.NamespaceIdentity, kvstore.KeyPrivKey, genSeed[:]); err != nil {
		return nil, fmt.Errorf("persisting identity: %w", err)
	}
	pub := id.PublicKey()
	if err := kv.PutBytes(kvstore.NamespaceIdentity, kvstore.KeyPubKey, pub[:]); err != nil {
		return nil, fmt.Errorf("persisting public key: %w", err)
	}
	return finalizeNodeName(kv, id, cfgName)
}

// finalizeNodeName assigns the default "Node-<hex pubkey prefix>" name
// (spec.md:85) when name is empty, using the identity's own freshly
// generated or loaded public key, then persists whatever name is in effect
// so it survives restarts independent of config.
func finalizeNodeName(kv *kvstore.Store, id *identity.Identity, name string) (*identity.Identity, error) {
	if name == "" {
		pub := id.PublicKey()
		name = fmt.Sprintf("Node-%x", pub[:4])
		id.SetName(name)
	}
	if err := kv.PutString(kvstore.NamespaceIdentity, kvstore.KeyNodeName, name); err != nil {
		return nil, fmt.Errorf("persisting node name: %w", err)
	}
	return id, nil
}

// persistedChannel is one row of the channels namespace's "count"/"name<i>"/
// "enc<i>"/"key<i>" schema (spec §4.8).
type persistedChannel struct {
	Name     string
	Key      [channel.KeySize]byte
	Explicit bool
}

// loadPersistedChannels reads back channels joined in a previous run (e.g.
// via the script API) independent of the current config file.
func loadPersistedChannels(kv *kvstore.Store) ([]persistedChannel, error) {
	count, ok := kv.GetInt(kvstore.NamespaceChannels, "count")
	if !ok {
		return nil, nil
	}

	channels := make([]persistedChannel, 0, count)
	for i := int64(0); i < count; i++ {
		name, ok := kv.GetString(kvstore.NamespaceChannels, fmt.Sprintf("name%d", i))
		if !ok {
			continue
		}
		keyBytes, err := kv.GetBytes(kvstore.NamespaceChannels, fmt.Sprintf("key%d", i))
		if err != nil {
			if errors.Is(err, kvstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if len(keyBytes) != channel.KeySize {
			continue
		}
		explicit, _ := kv.GetBool(kvstore.NamespaceChannels, fmt.Sprintf("enc%d", i))

		var key [channel.KeySize]byte
		copy(key[:], keyBytes)
		channels = append(channels, persistedChannel{Name: name, Key: key, Explicit: explicit})
	}
	return channels, nil
}

// persistChannels rewrites the channels namespace from the engine's current
// channel table, so any channel joined through config or the script API
// survives a restart (spec §4.8).
func persistChannels(kv *kvstore.Store, engine *mesh.Engine) {
	channels := engine.Channels()
	if err := kv.Clear(kvstore.NamespaceChannels); err != nil {
		log.Printf("node: clearing persisted channels: %v", err)
		return
	}
	if err := kv.PutInt(kvstore.NamespaceChannels, "count", int64(len(channels))); err != nil {
		log.Printf("node: persisting channel count: %v", err)
		return
	}
	for i, ch := range channels {
		if err := kv.PutString(kvstore.NamespaceChannels, fmt.Sprintf("name%d", i), ch.Name); err != nil {
			log.Printf("node: persisting channel %d name: %v", i, err)
			continue
		}
		if err := kv.PutBool(kvstore.NamespaceChannels, fmt.Sprintf("enc%d", i), ch.Explicit); err != nil {
			log.Printf("node: persisting channel %d flag: %v", i, err)
			continue
		}
		if err := kv.PutBytes(kvstore.NamespaceChannels, fmt.Sprintf("key%d", i), ch.Key[:]); err != nil {
			log.Printf("node: persisting channel %d key: %v", i, err)
		}
	}
}

func dialRadio(cfg config.Radio) (radio.Transport, error) {
	switch cfg.Kind {
	case "", "loopback":
		return radio.NewLoopback(), nil
	case "zmq":
		zcfg := radio.DefaultZMQConfig()
		if cfg.EventEndpoint != "" {
			zcfg.EventEndpoint = cfg.EventEndpoint
		}
		if cfg.CommandEndpoint != "" {
			zcfg.CommandEndpoint = cfg.CommandEndpoint
		}
		return radio.Dial(zcfg)
	default:
		return nil, fmt.Errorf("unknown radio kind %q", cfg.Kind)
	}
}

// noopRemoteHandler satisfies remote.Handler for nodes that enable the
// control listener without attaching a display/keyboard/script VM; every
// call reports "not implemented" rather than panicking.
type noopRemoteHandler struct{}

func (noopRemoteHandler) Screenshot() ([]byte, error) { return nil, errNotImplemented }
func (noopRemoteHandler) KeyChar(ch, mods byte) error  { return errNotImplemented }
func (noopRemoteHandler) KeySpecial(code, mods byte) error {
	return errNotImplemented
}
func (noopRemoteHandler) ScreenInfo() (remote.ScreenInfo, error) {
	return remote.ScreenInfo{}, errNotImplemented
}
func (noopRemoteHandler) WaitForFrameText(needle string) (bool, error) {
	return false, errNotImplemented
}
func (noopRemoteHandler) WaitForFramePrimitives(spec []byte) (bool, error) {
	return false, errNotImplemented
}
func (noopRemoteHandler) LuaExec(src string) (any, error) { return nil, errNotImplemented }

var errNotImplemented = fmt.Errorf("node: remote surface not attached")
