package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sifan077/linkbot/internal/app/conversation"
	"go.uber.org/zap"
)

const (
	defaultLaneIdle   = 2 * time.Minute
	defaultLaneBuffer = 64
)

// Job is an update together with the surface to answer it on.
type Job struct {
	Update Update
	UI     conversation.Interaction
}

// HandlerFunc processes one job.
type HandlerFunc func(ctx context.Context, upd Update, ui conversation.Interaction) error

// Dispatcher runs one lane per user: jobs of a user are handled in arrival
// order by a single goroutine, different users run in parallel. A lane exits
// after being idle for a while.
type Dispatcher struct {
	handle HandlerFunc
	idle   time.Duration
	buffer int
	logger *zap.Logger

	mu     sync.Mutex
	lanes  map[int64]chan Job
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

// DispatcherConfig tunes lane behaviour; zero values use defaults.
type DispatcherConfig struct {
	IdleTimeout time.Duration
	Buffer      int
}

func NewDispatcher(handle HandlerFunc, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultLaneIdle
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultLaneBuffer
	}
	return &Dispatcher{
		handle: handle,
		idle:   cfg.IdleTimeout,
		buffer: cfg.Buffer,
		logger: logger,
		lanes:  make(map[int64]chan Job),
		quit:   make(chan struct{}),
	}
}

// Dispatch queues a job on its user's lane. It reports false when the
// dispatcher is closed or the lane is full.
func (d *Dispatcher) Dispatch(job Job) bool {
	userID := job.Update.UserID

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	lane, ok := d.lanes[userID]
	if !ok {
		lane = make(chan Job, d.buffer)
		d.lanes[userID] = lane
		d.wg.Add(1)
		go d.run(userID, lane)
	}

	select {
	case lane <- job:
		return true
	default:
		d.logger.Warn("user lane full, dropping update", zap.Int64("user_id", userID))
		return false
	}
}

// Lanes returns the number of running lanes.
func (d *Dispatcher) Lanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lanes)
}

// Close stops accepting jobs, lets every lane finish its queued jobs and
// waits for them or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.quit)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for lanes: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(userID int64, lane chan Job) {
	defer d.wg.Done()

	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case job := <-lane:
			d.safeHandle(job)
			timer.Reset(d.idle)

		case <-timer.C:
			d.mu.Lock()
			if len(lane) == 0 {
				delete(d.lanes, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			timer.Reset(d.idle)

		case <-d.quit:
			for {
				select {
				case job := <-lane:
					d.safeHandle(job)
				default:
					d.mu.Lock()
					delete(d.lanes, userID)
					d.mu.Unlock()
					return
				}
			}
		}
	}
}

func (d *Dispatcher) safeHandle(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered",
				zap.Error(fmt.Errorf("panic recovered: %v", r)),
				zap.ByteString("stack", debug.Stack()),
				zap.Int64("user_id", job.Update.UserID),
			)
		}
	}()

	// Queued jobs still run while the process drains on shutdown.
	if err := d.handle(context.Background(), job.Update, job.UI); err != nil {
		d.logger.Debug("job failed", zap.Int64("user_id", job.Update.UserID), zap.Error(err))
	}
}
