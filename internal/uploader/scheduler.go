package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calmwave/calmwave/internal/chunkstore"
)

const (
	defaultTick      = 1 * time.Second
	defaultThreshold = 5 * time.Second
)

// Transport is the subset of the API client the scheduler needs.
type Transport interface {
	UploadChunk(ctx context.Context, sessionID string, seq int64, isFinal bool, data []byte) (*UploadResult, error)
}

// Scheduler slices a still-growing capture file into chunks and transfers
// them while the recording continues. Chunks are disjoint byte ranges, so
// concatenating them in sequence order reproduces the capture.
//
// At most one transfer is in flight at a time, enforced with a capacity-1
// channel. A failed transfer is not retried; its interval of audio is lost
// and the next slice proceeds from the advanced offset.
type Scheduler struct {
	transport Transport
	chunks    *chunkstore.Store
	log       *logrus.Logger

	source      string // the growing capture file
	provisional string // client-minted id, used until the server assigns one

	Tick      time.Duration
	Threshold time.Duration

	inflight chan struct{} // capacity 1

	mu        sync.Mutex
	sessionID string
	seq       int64
	offset    int64 // bytes already sliced
	lastSlice time.Time
}

func NewScheduler(t Transport, chunks *chunkstore.Store, source, provisionalID string, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		transport:   t,
		chunks:      chunks,
		log:         log,
		source:      source,
		provisional: provisionalID,
		sessionID:   provisionalID,
		Tick:        defaultTick,
		Threshold:   defaultThreshold,
		inflight:    make(chan struct{}, 1),
		lastSlice:   time.Now(),
	}
}

// SessionID returns the id currently in use: the provisional one until the
// first upload response, the server-assigned one after.
func (s *Scheduler) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Run drives the slicing loop until ctx is cancelled. Call Finalize after
// cancelling to transfer the closing chunk.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.Tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			due := time.Since(s.lastSlice) >= s.Threshold
			s.mu.Unlock()
			if due {
				s.trySlice(ctx)
			}
		}
	}
}

// trySlice snapshots the bytes appended since the last slice and starts a
// transfer, unless one is already in flight.
func (s *Scheduler) trySlice(ctx context.Context) {
	select {
	case s.inflight <- struct{}{}:
	default:
		// transfer in flight; slice again on a later tick
		return
	}

	delta, seq, err := s.nextDelta()
	if err != nil {
		<-s.inflight
		s.log.WithError(err).Warn("chunk snapshot failed")
		return
	}
	if len(delta) == 0 {
		<-s.inflight
		return
	}

	if _, err := s.chunks.Put(s.SessionID(), seq, delta); err != nil {
		<-s.inflight
		s.log.WithError(err).Warn("chunk write failed")
		return
	}

	go s.transfer(ctx, seq, delta)
}

// nextDelta reads [offset, EOF) of the capture file and advances the
// offset and sequence counter.
func (s *Scheduler) nextDelta() ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.source)
	if err != nil {
		return nil, 0, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat capture: %w", err)
	}
	if info.Size() <= s.offset {
		return nil, 0, nil
	}

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek capture: %w", err)
	}
	delta, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read capture: %w", err)
	}

	seq := s.seq
	s.seq++
	s.offset += int64(len(delta))
	s.lastSlice = time.Now()
	return delta, seq, nil
}

func (s *Scheduler) transfer(ctx context.Context, seq int64, data []byte) {
	defer func() { <-s.inflight }()

	res, err := s.transport.UploadChunk(ctx, s.SessionID(), seq, false, data)
	if err != nil {
		// no retry: the interval is lost, the recording continues
		s.log.WithError(err).WithField("seq", seq).Warn("chunk transfer failed")
		return
	}
	s.adopt(res.SessionID)
}

func (s *Scheduler) takeSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	s.seq++
	return seq
}

func (s *Scheduler) adopt(serverID string) {
	if serverID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID != serverID {
		s.log.WithFields(logrus.Fields{"provisional": s.sessionID, "assigned": serverID}).
			Info("adopted server session id")
		s.sessionID = serverID
	}
}

// Finalize waits for any in-flight transfer, sends the closing chunk with
// the remaining capture bytes, and reclaims local chunk storage. Local
// cleanup runs on every exit path.
func (s *Scheduler) Finalize(ctx context.Context) (*UploadResult, error) {
	s.inflight <- struct{}{}
	defer func() { <-s.inflight }()

	defer func() {
		s.chunks.Clear(s.provisional)
		s.chunks.Clear(s.SessionID())
	}()

	tail, seq, err := s.nextDelta()
	if err != nil {
		return nil, err
	}
	if len(tail) == 0 {
		// nothing appended since the last slice; the final chunk is an
		// empty end-of-capture marker
		seq = s.takeSeq()
	}

	res, err := s.transport.UploadChunk(ctx, s.SessionID(), seq, true, tail)
	if err != nil {
		return nil, fmt.Errorf("final transfer: %w", err)
	}
	s.adopt(res.SessionID)
	return res, nil
}
