package vectorindex

import (
	"context"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultRetireGrace = 30 * time.Second
	collectTimeout     = 30 * time.Second
)

// collector deletes retired generations once a grace period has passed, so a query
// that resolved the old pointer before a flip still finds its chunks.
type collector struct {
	grace time.Duration

	mu      sync.Mutex
	closed  bool
	pending map[string]*collectJob
	wg      sync.WaitGroup
}

type collectJob struct {
	key    string
	run    func(ctx context.Context) error
	logger *zap.Logger
	timer  *time.Timer
}

func newCollector(grace time.Duration) *collector {
	if grace <= 0 {
		grace = defaultRetireGrace
	}
	return &collector{
		grace:   grace,
		pending: make(map[string]*collectJob),
	}
}

// schedule runs the job after the grace period. A key that is already pending is ignored.
// The job logs through the logger carried by ctx.
func (c *collector) schedule(ctx context.Context, key string, run func(ctx context.Context) error) {
	job := &collectJob{key: key, run: run, logger: ctxzap.Extract(ctx)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		job.execute()
		return
	}
	if _, ok := c.pending[key]; ok {
		c.mu.Unlock()
		return
	}

	c.wg.Add(1)
	c.pending[key] = job
	job.timer = time.AfterFunc(c.grace, func() {
		defer c.wg.Done()
		if c.take(key) {
			job.execute()
		}
	})
	c.mu.Unlock()
}

func (c *collector) take(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[key]; !ok {
		return false
	}
	delete(c.pending, key)
	return true
}

// waiting reports how many jobs are still inside their grace period.
func (c *collector) waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close runs every waiting job immediately and waits for running ones.
func (c *collector) Close() {
	c.mu.Lock()
	c.closed = true
	var due []*collectJob
	for key, job := range c.pending {
		if job.timer.Stop() {
			delete(c.pending, key)
			due = append(due, job)
			c.wg.Done()
		}
	}
	c.mu.Unlock()

	for _, job := range due {
		job.execute()
	}
	c.wg.Wait()
}

func (j *collectJob) execute() {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		j.logger.Error("failed to collect retired generation",
			zap.String("generation_key", j.key),
			zap.Error(err),
		)
		return
	}
	j.logger.Debug("retired generation collected", zap.String("generation_key", j.key))
}
