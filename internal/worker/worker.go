// Package worker implements the async worker (C7): a single long-lived
// goroutine performing blocking file I/O and CPU-heavy transforms off the
// main tick loop, connected to it via bounded request/result queues.
package worker

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// QueueDepth bounds both the request and result queues (spec §4.7, §5).
const QueueDepth = 8

const (
	maxFileSize  = 512 * 1024
	maxPathLen   = 128
	maxJSONBytes = 16384
	maxInlineKey = 32
)

// Op identifies an async operation kind.
type Op string

const (
	OpRead           Op = "READ"
	OpReadBytes      Op = "READ_BYTES"
	OpWrite          Op = "WRITE"
	OpWriteBytes     Op = "WRITE_BYTES"
	OpAppend         Op = "APPEND"
	OpExists         Op = "EXISTS"
	OpJSONRead       Op = "JSON_READ"
	OpJSONWrite      Op = "JSON_WRITE"
	OpRLERead        Op = "RLE_READ"
	OpRLEReadRGB565  Op = "RLE_READ_RGB565"
	OpAESEncrypt     Op = "AES_ENCRYPT"
	OpAESDecrypt     Op = "AES_DECRYPT"
	OpHMACSHA256     Op = "HMAC_SHA256"
)

// ErrBackpressured is returned by Submit when the request queue is full.
var ErrBackpressured = errors.New("worker: backpressured")

// ErrRetired names the retired-continuation condition. The worker never
// sets it on a Result: a request whose token was retired before the worker
// picks it up is skipped and produces no Result at all (see Retire).
var ErrRetired = errors.New("worker: continuation retired")

// Request is an AsyncRequest: an owned, self-contained description of one
// operation. Offset/Length/Data/Key/Palette are interpreted according to
// Op; unused fields are left zero.
type Request struct {
	Token   string
	Op      Op
	Path    string
	Offset  int
	Length  int
	Data    []byte
	Key     []byte
	Palette [8]uint16
}

// Result is an AsyncResult: the worker's response to exactly one Request,
// matched by Token.
type Result struct {
	Token   string
	Success bool
	Data    []byte
	Err     error
}

// Worker owns the request/result queues and the single goroutine that
// drains the request side. All file I/O and bulk crypto happen in that
// goroutine; nothing here touches node-table, router, or identity state,
// which remain exclusively owned by the main tick loop per spec §5.
type Worker struct {
	dataDir string
	sdDir   string

	reqCh chan Request
	resCh chan Result
	stop  chan struct{}
	wg    sync.WaitGroup

	retiredMu sync.Mutex
	retired   map[string]bool
}

// New constructs a Worker rooted at dataDir (internal flash) and sdDir
// (removable storage, paths prefixed "/sd/").
func New(dataDir, sdDir string) *Worker {
	return &Worker{
		dataDir: dataDir,
		sdDir:   sdDir,
		reqCh:   make(chan Request, QueueDepth),
		resCh:   make(chan Result, QueueDepth),
		stop:    make(chan struct{}),
		retired: make(map[string]bool),
	}
}

// NewToken returns a fresh continuation token identifying one logical
// in-flight request.
func NewToken() string {
	return uuid.New().String()
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker goroutine to exit and waits for it.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// Submit enqueues req for processing. It returns ErrBackpressured
// immediately rather than blocking if the request queue is full, per the
// error-handling policy in spec §7.
func (w *Worker) Submit(req Request) error {
	if len(req.Path) > maxPathLen {
		return fmt.Errorf("worker: path %q exceeds %d bytes", req.Path, maxPathLen)
	}
	select {
	case w.reqCh <- req:
		return nil
	default:
		return ErrBackpressured
	}
}

// Results exposes the result queue for the main loop to drain once per
// tick.
func (w *Worker) Results() <-chan Result {
	return w.resCh
}

// Retire marks token as belonging to a logical task that has died. A
// request with that token that the worker has not yet picked up is skipped
// and produces no Result. A Result already produced for the token is not
// removed from the result queue and is still returned by Results.
func (w *Worker) Retire(token string) {
	w.retiredMu.Lock()
	w.retired[token] = true
	w.retiredMu.Unlock()
}

func (w *Worker) consumeRetired(token string) bool {
	w.retiredMu.Lock()
	defer w.retiredMu.Unlock()
	if w.retired[token] {
		delete(w.retired, token)
		return true
	}
	return false
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case req := <-w.reqCh:
			if w.consumeRetired(req.Token) {
				continue
			}
			res := w.handle(req)
			select {
			case w.resCh <- res:
			case <-w.stop:
				return
			}
		}
	}
}

func (w *Worker) handle(req Request) Result {
	data, err := w.dispatch(req)
	if err != nil {
		log.Printf("worker: %s %s failed: %v", req.Op, req.Path, err)
		return Result{Token: req.Token, Success: false, Err: err}
	}
	return Result{Token: req.Token, Success: true, Data: data}
}

func (w *Worker) dispatch(req Request) ([]byte, error) {
	switch req.Op {
	case OpRead:
		return w.read(req.Path)
	case OpReadBytes:
		return w.readBytes(req.Path, req.Offset, req.Length)
	case OpWrite:
		return nil, w.write(req.Path, req.Data)
	case OpWriteBytes:
		return nil, w.writeBytes(req.Path, req.Offset, req.Data)
	case OpAppend:
		return nil, w.append(req.Path, req.Data)
	case OpExists:
		if w.exists(req.Path) {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case OpJSONRead:
		return w.jsonRead(req.Path)
	case OpJSONWrite:
		return nil, w.jsonWrite(req.Path, req.Data)
	case OpRLERead:
		raw, err := w.readBytes(req.Path, req.Offset, req.Length)
		if err != nil {
			return nil, err
		}
		return RLEDecode(raw), nil
	case OpRLEReadRGB565:
		raw, err := w.readBytes(req.Path, req.Offset, req.Length)
		if err != nil {
			return nil, err
		}
		indexed := RLEDecode(raw)
		return UnpackRGB565(indexed, req.Palette)
	case OpAESEncrypt:
		if err := checkInlineKey(req.Key); err != nil {
			return nil, err
		}
		return aesECBEncrypt(req.Key, req.Data)
	case OpAESDecrypt:
		if err := checkInlineKey(req.Key); err != nil {
			return nil, err
		}
		return aesECBDecrypt(req.Key, req.Data)
	case OpHMACSHA256:
		if err := checkInlineKey(req.Key); err != nil {
			return nil, err
		}
		return hmacSHA256(req.Key, req.Data)
	default:
		return nil, fmt.Errorf("worker: unknown op %q", req.Op)
	}
}
