package radio

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
)

// ZMQConfig configures the IPC link to an out-of-process modem gateway
// (the modem driver itself is out of scope; see spec.md §1/§4.4).
type ZMQConfig struct {
	EventEndpoint   string        // SUB socket dial address, e.g. ipc:///tmp/meshcore_event
	CommandEndpoint string        // REQ socket dial address, e.g. ipc:///tmp/meshcore_command
	DutyCycle       time.Duration // minimum spacing between transmissions
}

// DefaultZMQConfig mirrors the concentratord-style local IPC defaults.
func DefaultZMQConfig() ZMQConfig {
	return ZMQConfig{
		EventEndpoint:   "ipc:///tmp/meshcore_event",
		CommandEndpoint: "ipc:///tmp/meshcore_command",
		DutyCycle:       0,
	}
}

// ZMQTransport implements Transport over a pair of ZeroMQ IPC sockets to
// an external modem gateway process: a SUB socket for inbound frames and
// metadata, a REQ socket for outbound transmit commands.
type ZMQTransport struct {
	cfg   ZMQConfig
	queue *sendQueue

	ctx    context.Context
	cancel context.CancelFunc

	sub zmq4.Socket
	req zmq4.Socket

	mu      sync.Mutex
	pending [][]byte
}

// Dial connects to the modem gateway's event and command sockets.
func Dial(cfg ZMQConfig) (*ZMQTransport, error) {
	ctx, cancel := context.WithCancel(context.Background())

	sub := zmq4.NewSub(ctx)
	if err := sub.Dial(cfg.EventEndpoint); err != nil {
		cancel()
		return nil, fmt.Errorf("radio: dialing event socket %s: %w", cfg.EventEndpoint, err)
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		cancel()
		sub.Close()
		return nil, fmt.Errorf("radio: subscribing event socket: %w", err)
	}

	req := zmq4.NewReq(ctx)
	if err := req.Dial(cfg.CommandEndpoint); err != nil {
		cancel()
		sub.Close()
		return nil, fmt.Errorf("radio: dialing command socket %s: %w", cfg.CommandEndpoint, err)
	}

	t := &ZMQTransport{
		cfg:    cfg,
		queue:  newSendQueue(cfg.DutyCycle),
		ctx:    ctx,
		cancel: cancel,
		sub:    sub,
		req:    req,
	}
	go t.eventLoop()
	return t, nil
}

func (t *ZMQTransport) eventLoop() {
	for {
		msg, err := t.sub.Recv()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			log.Printf("radio: event recv error: %v", err)
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}
		frame := append([]byte(nil), msg.Frames[0]...)
		t.mu.Lock()
		t.pending = append(t.pending, frame)
		t.mu.Unlock()
	}
}

func (t *ZMQTransport) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

func (t *ZMQTransport) Receive(buf []byte) (int, RxMetadata, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return 0, RxMetadata{}, false
	}
	frame := t.pending[0]
	t.pending = t.pending[1:]
	n := copy(buf, frame)
	return n, RxMetadata{Timestamp: time.Now().UnixMilli()}, true
}

func (t *ZMQTransport) QueueSend(frame []byte) error {
	return t.queue.push(frame)
}

func (t *ZMQTransport) ProcessQueue() error {
	frame, ok := t.queue.pop()
	if !ok {
		return nil
	}
	if err := t.req.Send(zmq4.NewMsg(frame)); err != nil {
		return fmt.Errorf("radio: %w: sending frame: %v", ErrFatal, err)
	}
	if _, err := t.req.Recv(); err != nil {
		return fmt.Errorf("radio: %w: awaiting send ack: %v", ErrFatal, err)
	}
	return nil
}

func (t *ZMQTransport) Close() error {
	t.cancel()
	if err := t.sub.Close(); err != nil {
		log.Printf("radio: closing event socket: %v", err)
	}
	return t.req.Close()
}
