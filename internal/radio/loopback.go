package radio

// Loopback is a Transport that echoes every queued send back as a
// received frame with synthetic metadata. It backs dev/test configuration
// (radio.kind: loopback) and exercises the mesh engine without a modem
// process on the other end of a socket.
type Loopback struct {
	queue  *sendQueue
	rx     chan []byte
	closed bool
}

// NewLoopback constructs a Loopback transport with no duty-cycle pacing.
func NewLoopback() *Loopback {
	return &Loopback{
		queue: newSendQueue(0),
		rx:    make(chan []byte, QueueDepth),
	}
}

func (l *Loopback) Available() bool {
	return len(l.rx) > 0
}

func (l *Loopback) Receive(buf []byte) (int, RxMetadata, bool) {
	select {
	case frame := <-l.rx:
		n := copy(buf, frame)
		return n, RxMetadata{}, true
	default:
		return 0, RxMetadata{}, false
	}
}

func (l *Loopback) QueueSend(frame []byte) error {
	if l.closed {
		return ErrFatal
	}
	return l.queue.push(frame)
}

func (l *Loopback) ProcessQueue() error {
	frame, ok := l.queue.pop()
	if !ok {
		return nil
	}
	select {
	case l.rx <- frame:
	default:
		// Receive buffer full; drop rather than block the tick loop.
	}
	return nil
}

func (l *Loopback) Close() error {
	l.closed = true
	return nil
}
