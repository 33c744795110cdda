package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sitetrack/pkg/logger"
)

type runLog struct {
	mu   sync.Mutex
	runs map[string]int
	errs map[string]int
}

func (r *runLog) ObserveRun(job string, items int64, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[job]++
	if err != nil {
		r.errs[job]++
	}
}

func (r *runLog) count(job string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[job]
}

func TestScheduler_RunsJobsUntilCancelled(t *testing.T) {
	obs := &runLog{runs: map[string]int{}, errs: map[string]int{}}
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(logger.NewNop(), obs,
		Job{Name: "tokens", Interval: 5 * time.Millisecond, Run: func(context.Context) (int64, error) { return 3, nil }},
		Job{Name: "broken", Interval: 5 * time.Millisecond, Run: func(context.Context) (int64, error) { return 0, errors.New("db down") }},
		Job{Name: "off", Interval: 0, Run: func(context.Context) (int64, error) { t.Error("disabled job ran"); return 0, nil }},
	)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return obs.count("tokens") >= 2 && obs.count("broken") >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, obs.runs["broken"], obs.errs["broken"])
	assert.Zero(t, obs.errs["tokens"])
	assert.Zero(t, obs.runs["off"])
}

func TestScheduler_RunOnceWithoutObserver(t *testing.T) {
	s := NewScheduler(logger.NewNop(), nil)
	ran := false
	s.RunOnce(context.Background(), Job{Name: "x", Run: func(context.Context) (int64, error) {
		ran = true
		return 0, nil
	}})
	assert.True(t, ran)
}
