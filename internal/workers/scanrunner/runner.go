// Package scanrunner claims queued scan jobs and runs the scan pipeline for
// each of them.
package scanrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/services/orchestrator"
)

// ScanProcessor performs the scan work for a job's scan id.
type ScanProcessor interface {
	Process(ctx context.Context, scanID string) error
}

// Pipeline runs one scan end to end.
type Pipeline interface {
	Run(ctx context.Context, req domain.ScanRequest, progress orchestrator.ProgressFunc) (*domain.ScanResult, error)
}

// Plans resolves the tier stored on a scan row.
type Plans interface {
	Plan(name string) domain.Plan
}

// PipelineProcessor loads the scan row, resolves its plan and runs the
// pipeline, persisting progress on the scan as phases advance.
type PipelineProcessor struct {
	Scans    ports.ScanRepository
	Jobs     ports.JobRepository
	Pipeline Pipeline
	Plans    Plans
	// Providers, when set, restricts plans to answer engines that are
	// actually configured.
	Providers []string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (p PipelineProcessor) Process(ctx context.Context, scanID string) error {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	scan, err := p.Scans.Get(ctx, scanID)
	if err != nil {
		return fmt.Errorf("load scan: %w", err)
	}
	plan := p.Plans.Plan(scan.Plan)
	if len(p.Providers) > 0 {
		plan.Providers = slices.DeleteFunc(slices.Clone(plan.Providers), func(name string) bool {
			return !slices.Contains(p.Providers, name)
		})
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req := domain.ScanRequest{ScanID: scan.ID, URL: scan.URL, Form: scan.Form, Plan: plan}
	progress := func(ctx context.Context, phase orchestrator.Phase, v float64) error {
		return p.Jobs.UpdateScanProgress(ctx, scanID, string(phase), v)
	}
	_, err = p.Pipeline.Run(ctx, req, progress)
	if err != nil {
		log.WarnContext(ctx, "scan pipeline failed", "scan_id", scanID, "error", err)
	}
	return err
}

// failure splits err into the phase that failed and a stored reason.
func failure(err error) (phase, reason string) {
	var pe *orchestrator.PhaseError
	if errors.As(err, &pe) {
		return string(pe.Phase), pe.Err.Error()
	}
	return "", err.Error()
}

// Run starts worker goroutines that claim jobs and process them. It returns
// once ctx is cancelled and in-flight jobs have finished.
func Run(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, concurrency int, pollInterval time.Duration, logger *slog.Logger) {
	if concurrency < 1 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	jobsCh := make(chan ports.ScanJob, concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for {
				job, found, err := repo.ClaimNext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						logger.ErrorContext(ctx, "job claim failed", "error", err)
					}
					break
				}
				if !found {
					break
				}
				select {
				case jobsCh <- job:
				case <-ctx.Done():
					// Claimed but never started; leave a trace on the row.
					_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "", "worker shut down before start")
					return
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for job := range jobsCh {
				handle(ctx, logger.With("worker", idx, "job_id", job.ID, "scan_id", job.ScanID), repo, processor, job)
			}
		}(i)
	}
	wg.Wait()
}

func handle(ctx context.Context, log *slog.Logger, repo ports.JobRepository, processor ScanProcessor, job ports.ScanJob) {
	err := processor.Process(ctx, job.ScanID)
	// Bookkeeping must land even when shutdown cancelled the scan.
	bg := context.WithoutCancel(ctx)
	if err != nil {
		phase, reason := failure(err)
		if markErr := repo.MarkFailed(bg, job.ID, phase, reason); markErr != nil {
			log.ErrorContext(ctx, "mark failed", "error", markErr)
		}
		log.WarnContext(ctx, "job failed", "phase", phase, "error", err)
		return
	}
	if err := repo.MarkCompleted(bg, job.ID); err != nil {
		log.ErrorContext(ctx, "mark completed", "error", err)
	}
}

// ProcessInline starts and processes a specific scan synchronously using the same processor logic
// as the background workers. It marks the job as running, calls processor.Process, and completes or fails.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor ScanProcessor, scanID string) error {
	jobID, err := repo.StartJobForScan(ctx, scanID)
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	if err := processor.Process(ctx, scanID); err != nil {
		phase, reason := failure(err)
		_ = repo.MarkFailed(bg, jobID, phase, reason)
		return err
	}
	return repo.MarkCompleted(bg, jobID)
}
