package capture

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrPermissionDenied = errors.New("microphone permission not granted")
	ErrCaptureActive    = errors.New("a capture is already active")
	ErrNoActiveCapture  = errors.New("no active capture")
)

// PermissionProbe reports whether microphone access has been granted.
type PermissionProbe func() bool

// Backend starts the actual audio capture writing into path. Stop must
// flush and close the file; the file keeps growing until then.
type Backend interface {
	Start(ctx context.Context, path string) (Recording, error)
}

type Recording interface {
	Stop() error
}

// Recorded capture state handed to the upload scheduler.
type Capture struct {
	SessionID string // provisional, replaced by the server-assigned id on first upload
	Path      string
	StartedAt time.Time
}

// Controller owns the capture lifecycle. One capture at a time; the live
// handle is owned here and handed over on Stop, never aliased.
type Controller struct {
	probe   PermissionProbe
	backend Backend
	dir     string

	mu        sync.Mutex
	active    Recording
	current   *Capture
	samplerCh chan float64
	stopCh    chan struct{}
}

func NewController(probe PermissionProbe, backend Backend, dir string) *Controller {
	return &Controller{probe: probe, backend: backend, dir: dir}
}

// Start begins a new capture. The returned channel emits an amplitude sample
// roughly every 200ms while the capture is live; it is closed on Stop.
func (c *Controller) Start(ctx context.Context) (*Capture, <-chan float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return nil, nil, ErrCaptureActive
	}
	if c.probe != nil && !c.probe() {
		return nil, nil, ErrPermissionDenied
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create capture dir: %w", err)
	}

	now := time.Now()
	capt := &Capture{
		SessionID: fmt.Sprintf("rec-%d", now.UnixMilli()),
		Path:      filepath.Join(c.dir, fmt.Sprintf("capture_%d.wav", now.UnixMilli())),
		StartedAt: now,
	}

	rec, err := c.backend.Start(ctx, capt.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("start capture: %w", err)
	}

	c.active = rec
	c.current = capt
	c.samplerCh = make(chan float64, 1)
	c.stopCh = make(chan struct{})
	go c.runSampler(c.samplerCh, c.stopCh)

	return capt, c.samplerCh, nil
}

// Stop finalizes the capture and returns the completed recording.
func (c *Controller) Stop() (*Capture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil, ErrNoActiveCapture
	}

	close(c.stopCh)
	err := c.active.Stop()

	capt := c.current
	c.active = nil
	c.current = nil
	c.samplerCh = nil
	c.stopCh = nil

	if err != nil {
		return nil, fmt.Errorf("stop capture: %w", err)
	}
	return capt, nil
}

// runSampler emits decorative amplitude values for level meters. Values are
// pseudo-random; nothing downstream depends on them.
func (c *Controller) runSampler(out chan<- float64, stop <-chan struct{}) {
	defer close(out)

	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			select {
			case out <- 0.1 + rand.Float64()*0.8:
			default: // consumer lagging; drop the sample
			}
		}
	}
}
