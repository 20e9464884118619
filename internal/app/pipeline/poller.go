package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// ErrPollTimeout matches every *PollTimeoutError.
var ErrPollTimeout = errors.New("catalog poll timed out")

// PollTimeoutError is returned when a job is still not ready after the
// configured timeout.
type PollTimeoutError struct {
	URL      string
	Elapsed  time.Duration
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("request timed out for %s after %s (%d attempts)", e.URL, e.Elapsed, e.Attempts)
}

func (e *PollTimeoutError) Is(target error) bool { return target == ErrPollTimeout }

// PollResult describes a job that became ready.
type PollResult struct {
	DatasetID string
	StatusURL string
	Attempts  int
	Elapsed   time.Duration
}

// Poller waits for an asynchronous job by probing its status file.
type Poller struct {
	status ports.StatusChecker
	clock  ports.Clock
	policy ports.PollPolicy
	obs    ports.Observability
}

func NewPoller(status ports.StatusChecker, clock ports.Clock, policy ports.PollPolicy, obs ports.Observability) *Poller {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollInterval
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPollTimeout
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &Poller{status: status, clock: clock, policy: policy, obs: obs}
}

// Wait probes the status URL until it answers 200. After each failed probe it
// gives up if more than the timeout has elapsed since the first probe, and
// otherwise sleeps one interval. Transport errors count as failed probes.
func (p *Poller) Wait(ctx context.Context, threddsURL string) (PollResult, error) {
	id, err := domain.DatasetID(threddsURL)
	if err != nil {
		return PollResult{}, err
	}
	statusURL := domain.StatusURL(threddsURL, id)

	start := p.clock.Now()
	attempts := 0
	for {
		attempts++
		code, err := p.status.CheckStatus(ctx, statusURL)
		p.obs.IncCounter("isaias_poll_attempts_total", 1)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return PollResult{}, ctx.Err()
			}
			p.obs.LogError("poll_attempt_failed", err,
				ports.Field{Key: "url", Value: statusURL},
				ports.Field{Key: "attempt", Value: attempts})
		case code == http.StatusOK:
			elapsed := p.clock.Now().Sub(start)
			p.obs.ObserveLatency("isaias_poll_wait_seconds", elapsed.Seconds())
			return PollResult{DatasetID: id, StatusURL: statusURL, Attempts: attempts, Elapsed: elapsed}, nil
		}

		elapsed := p.clock.Now().Sub(start)
		if elapsed > p.policy.Timeout {
			return PollResult{}, &PollTimeoutError{URL: threddsURL, Elapsed: elapsed, Attempts: attempts}
		}

		select {
		case <-p.clock.After(p.policy.Interval):
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		}
	}
}
