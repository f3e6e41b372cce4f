package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Sampler runs SGP4 over a time window with a fixed-size worker pool,
// producing samples in time order.
type Sampler struct {
	workers int
	logger  *slog.Logger
}

// NewSampler creates a sampler. workers <= 0 defaults to NumCPU.
func NewSampler(workers int, logger *slog.Logger) *Sampler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Sampler{workers: workers, logger: logger}
}

type sampleJob struct {
	idx int
	t   time.Time
}

// Range samples the satellite state from start to end inclusive at the
// given step. The end time is always sampled even when the window is not
// an exact multiple of step.
func (s *Sampler) Range(ctx context.Context, prop *Propagator, start, end time.Time, step time.Duration) ([]Sample, error) {
	if step <= 0 {
		return nil, errors.New("step must be positive")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var times []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		times = append(times, t)
	}
	if last := times[len(times)-1]; !last.Equal(end) {
		times = append(times, end)
	}

	samples := make([]Sample, len(times))
	errs := make([]error, len(times))

	jobs := make(chan sampleJob, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				samples[job.idx], errs[job.idx] = prop.At(job.t)
			}
		}()
	}

	// Feed jobs, stopping on cancellation.
	cancelled := false
feed:
	for idx, t := range times {
		select {
		case jobs <- sampleJob{idx: idx, t: t}:
		case <-ctx.Done():
			cancelled = true
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}
	for idx, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("sample %d at %s: %w", idx, times[idx].Format(time.RFC3339), err)
		}
	}

	s.logger.Debug("sampling complete",
		"samples", len(samples),
		"start", start.UTC().Format(time.RFC3339),
		"end", end.UTC().Format(time.RFC3339),
		"step", step.String(),
	)
	return samples, nil
}
