// Package jobs drives long-running remote generation jobs to a terminal state.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/media"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller submits video jobs and polls them at a fixed interval.
type Poller struct {
	Service  core.VideoJobs
	Interval time.Duration
	// Sleep defaults to a timer-based wait. Tests replace it.
	Sleep  SleepFunc
	Logger *slog.Logger
}

// NewPoller returns a poller using DefaultPollInterval.
func NewPoller(service core.VideoJobs) *Poller {
	return &Poller{Service: service, Interval: types.DefaultPollInterval}
}

// Submit starts a remote job and returns it in the Polling state.
func (p *Poller) Submit(ctx context.Context, req core.VideoRequest) (*types.Job, error) {
	if p.Service == nil {
		return nil, core.NewCapabilityUnavailableError("video generation is not configured", nil)
	}
	st, err := p.Service.SubmitVideo(ctx, req)
	if err != nil {
		return nil, err
	}
	if st == nil || st.Name == "" {
		return nil, core.NewNoResultError("submission returned no job handle")
	}

	job := &types.Job{
		Name:         st.Name,
		State:        types.JobSubmitted,
		PollInterval: p.interval(),
	}
	p.logger().Info("video job submitted", "job", job.Name)
	job.State = types.JobPolling
	if st.Done {
		p.settle(job, st)
	}
	return job, nil
}

// Poll performs one remote status check. It is a no-op on a terminal job.
func (p *Poller) Poll(ctx context.Context, job *types.Job) (*types.Job, error) {
	if job == nil {
		return nil, core.NewInvalidRequestError("job must not be nil")
	}
	if job.Terminal() {
		return job, nil
	}
	if p.Service == nil {
		return nil, core.NewCapabilityUnavailableError("video generation is not configured", nil)
	}

	st, err := p.Service.PollVideo(ctx, job.Name)
	job.Polls++
	if err != nil {
		job.State = types.JobFailed
		job.Err = err
		p.logger().Error("video job poll failed", "job", job.Name, "err", err)
		return job, nil
	}
	if st != nil && st.Done {
		p.settle(job, st)
	}
	return job, nil
}

// Run polls job until it reaches a terminal state or ctx is done. Each cycle
// checks ctx, waits one interval, checks ctx again, then polls. status is
// called after every cycle with an advisory progress string.
//
// A failed job is returned together with its reason. On cancellation the job
// is returned in its last state together with ctx.Err(); the remote job keeps
// running.
func (p *Poller) Run(ctx context.Context, job *types.Job, status func(string)) (*types.Job, error) {
	if job == nil {
		return nil, core.NewInvalidRequestError("job must not be nil")
	}
	for !job.Terminal() {
		if err := ctx.Err(); err != nil {
			return job, err
		}
		if err := p.sleep(ctx, p.interval()); err != nil {
			return job, err
		}
		if err := ctx.Err(); err != nil {
			return job, err
		}
		if _, err := p.Poll(ctx, job); err != nil {
			return job, err
		}
		if status != nil {
			status(describe(job))
		}
	}
	if job.State == types.JobFailed {
		return job, job.Err
	}
	return job, nil
}

func (p *Poller) settle(job *types.Job, st *core.JobStatus) {
	locator, mime := resultLocator(st.Result)
	if locator == "" {
		job.State = types.JobFailed
		job.Err = core.NewNoResultError("completed without output")
		p.logger().Warn("video job finished without output", "job", job.Name)
		return
	}
	job.State = types.JobSucceeded
	job.ResultLocator = locator
	job.ResultMIME = mime
	p.logger().Info("video job succeeded", "job", job.Name, "polls", job.Polls)
}

func resultLocator(m *core.GeneratedMedia) (string, string) {
	if m == nil {
		return "", ""
	}
	mime := m.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	if m.URL != "" {
		return m.URL, mime
	}
	if len(m.Data) > 0 {
		return media.DataURI(mime, m.Data), mime
	}
	return "", ""
}

func describe(job *types.Job) string {
	switch job.State {
	case types.JobSucceeded:
		return "Video ready."
	case types.JobFailed:
		return "Video generation failed."
	default:
		elapsed := time.Duration(job.Polls) * job.PollInterval
		return fmt.Sprintf("Generating video... (%s elapsed)", elapsed.Round(time.Second))
	}
}

func (p *Poller) interval() time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return types.DefaultPollInterval
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Poller) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
