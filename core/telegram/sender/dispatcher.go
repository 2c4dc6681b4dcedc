package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize caps jobs waiting across all lanes.
	QueueSize int
	// Workers caps concurrent API calls. Delays do not occupy a worker.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is a single outbound call. Jobs sharing a Key run strictly in enqueue
// order; jobs with different keys run independently.
type Job struct {
	Key      int64
	Action   string
	Endpoint string
	// Delay postpones Run; cancelling the enqueue context aborts the wait.
	Delay time.Duration
	// Before runs once ahead of the delay, e.g. to show a chat action.
	Before func() error
	// Run performs the call. It must be idempotent if retries are desired.
	Run func() error
}

type queued struct {
	ctx context.Context
	job Job
}

type lane struct {
	queue []queued
}

// Dispatcher executes outbound Telegram calls asynchronously, one ordered lane per key.
type Dispatcher struct {
	opts  Options
	slots chan struct{}

	mu      sync.Mutex
	lanes   map[int64]*lane
	pending int
	closed  bool

	wg   sync.WaitGroup
	errs atomic.Uint64
}

// NewDispatcher builds a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{
		opts:  opts,
		slots: make(chan struct{}, opts.Workers),
		lanes: make(map[int64]*lane),
	}
}

// Enqueue schedules j on its lane. It never blocks.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrQueueClosed
	}
	if d.pending >= d.opts.QueueSize {
		return ErrQueueFull
	}
	l, ok := d.lanes[j.Key]
	if !ok {
		l = &lane{}
		d.lanes[j.Key] = l
		d.wg.Add(1)
		go d.drain(j.Key, l)
	}
	l.queue = append(l.queue, queued{ctx: ctx, job: j})
	d.pending++
	return nil
}

// Pending reports jobs accepted but not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close rejects new jobs and waits until every queued job has been handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	already := d.closed
	d.closed = true
	d.mu.Unlock()
	if !already {
		logger.Debug(context.Background(), "tg.sender", "queue.close",
			slog.Int("pending_count", d.Pending()),
		)
	}
	d.wg.Wait()
}

// drain runs the lane until its queue is empty. The lane is removed under the
// same lock Enqueue uses, so a job is never left without a goroutine.
func (d *Dispatcher) drain(key int64, l *lane) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(l.queue) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		next := l.queue[0]
		l.queue[0] = queued{}
		l.queue = l.queue[1:]
		d.pending--
		d.mu.Unlock()

		d.handleJob(next.ctx, next.job)
	}
}

func (d *Dispatcher) handleJob(ctx context.Context, j Job) {
	if err := ctx.Err(); err != nil {
		logSendCancelled(ctx, j, err)
		return
	}
	if j.Before != nil {
		if err := j.Before(); err != nil {
			logJob(ctx, slog.LevelDebug, "send.before.fail", j, slog.String("err", sanitizeErrorMessage(err)))
		}
	}
	if j.Delay > 0 {
		if err := sleepCtx(ctx, j.Delay); err != nil {
			logSendCancelled(ctx, j, err)
			return
		}
	}

	d.slots <- struct{}{}
	defer func() { <-d.slots }()
	d.send(ctx, j)
}

func (d *Dispatcher) send(ctx context.Context, j Job) {
	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logJob(ctx, slog.LevelDebug, "send.start", j)

	attempts := d.opts.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := j.Run()
		if err == nil {
			logSendSuccess(ctx, j, attempt, time.Since(start))
			return
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			d.fail(ctx, j, err, attempt, time.Since(start))
			return
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if waitErr := sleepCtx(deadlineCtx, delay); waitErr != nil {
			d.fail(ctx, j, errors.Join(err, waitErr), attempt, time.Since(start))
			return
		}
		logJob(ctx, slog.LevelDebug, "send.retry.backoff", j,
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
		)
	}
}

func (d *Dispatcher) fail(ctx context.Context, j Job, err error, attempts int, elapsed time.Duration) {
	d.errs.Add(1)
	logSendFailure(ctx, j, err, attempts, elapsed)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jobAttrs describes j together with the request metadata carried by ctx.
func jobAttrs(ctx context.Context, j Job, extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 8+len(extra))
	attrs = append(attrs, slog.String("action", j.Action), slog.Int64("lane", j.Key))
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	if j.Delay > 0 {
		attrs = append(attrs, slog.Duration("delay", j.Delay))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	attrs = appendID(attrs, "update_id", int64(logger.UpdateIDFrom(ctx)))
	attrs = appendID(attrs, "chat_id", logger.ChatIDFrom(ctx))
	attrs = appendID(attrs, "user_id", logger.UserIDFrom(ctx))
	return append(attrs, extra...)
}

func appendID(attrs []slog.Attr, key string, id int64) []slog.Attr {
	if id == 0 {
		return attrs
	}
	return append(attrs, slog.Int64(key, id))
}

func logJob(ctx context.Context, level slog.Level, event string, j Job, extra ...slog.Attr) {
	attrs := jobAttrs(ctx, j, extra...)
	if level >= slog.LevelError {
		logger.Error(ctx, "tg.sender", event, attrs...)
		return
	}
	logger.Debug(ctx, "tg.sender", event, attrs...)
}

func logSendSuccess(ctx context.Context, j Job, attempt int, elapsed time.Duration) {
	extra := []slog.Attr{slog.Duration("elapsed", logger.RoundMS(elapsed))}
	if attempt > 1 {
		extra = append(extra, slog.Int("attempts", attempt))
	}
	logJob(ctx, slog.LevelDebug, "send.success", j, extra...)
}

func logSendCancelled(ctx context.Context, j Job, err error) {
	logJob(ctx, slog.LevelDebug, "send.cancelled", j,
		slog.String("status", "cancelled"),
		slog.String("cause", err.Error()),
	)
}

func logSendFailure(ctx context.Context, j Job, err error, attempts int, elapsed time.Duration) {
	logJob(ctx, slog.LevelError, "send.fail", j,
		slog.String("status", "fail"),
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", logger.RoundMS(elapsed)),
	)
}
