// Package backlog charges jurisdictions for issues left OPEN. Each issue
// incurs one penalty per elapsed 30-day month, posted through the ledger
// with a per-month idempotency key so repeated sweeps never double-charge.
package backlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/civic/internal/issues"
	"github.com/JaimeStill/civic/internal/ledger"
	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/pkg/lifecycle"
)

const month = 30 * 24 * time.Hour

// Source lists issues by status and age.
type Source interface {
	Aged(ctx context.Context, status issues.Status, cutoff time.Time) ([]issues.Issue, error)
}

// Scorer posts ledger events.
type Scorer interface {
	Post(ctx context.Context, cmd ledger.PostCommand) (*ledger.ScoreEvent, bool, error)
}

// Summary reports one sweep.
type Summary struct {
	Scanned int   `json:"scanned"`
	Posted  int   `json:"posted"`
	Points  int64 `json:"points"`
	Failed  int   `json:"failed"`
}

type Job struct {
	source  Source
	ledger  Scorer
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(source Source, scorer Scorer, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Job {
	return &Job{
		source:  source,
		ledger:  scorer,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("system", "backlog"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start runs a sweep every interval until the coordinator shuts down.
func (j *Job) Start(lc *lifecycle.Coordinator) {
	if !j.cfg.IsEnabled() {
		j.logger.Info("backlog sweep disabled")
		return
	}

	interval := j.cfg.IntervalDuration()
	lc.OnShutdown(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-lc.Context().Done():
				return
			case <-ticker.C:
				if _, err := j.Sweep(lc.Context()); err != nil {
					j.logger.Error("backlog sweep failed", "error", err)
				}
			}
		}
	})
	j.logger.Info("backlog sweep scheduled", "interval", interval)
}

// Sweep posts every penalty that has come due. A failed post is logged
// and retried on the next sweep.
func (j *Job) Sweep(ctx context.Context) (Summary, error) {
	var s Summary
	now := j.now()

	aged, err := j.source.Aged(ctx, issues.Open, now.Add(-month))
	if err != nil {
		return s, fmt.Errorf("list aged issues: %w", err)
	}

	for _, issue := range aged {
		s.Scanned++
		due := Due(issue.CreatedAt, now)

		for m := 1; m <= due; m++ {
			if err := ctx.Err(); err != nil {
				return s, err
			}

			posted, err := j.charge(ctx, issue, m)
			if err != nil {
				s.Failed++
				j.logger.Warn("backlog penalty failed", "issue", issue.ID, "month", m, "error", err)
				continue
			}
			if posted {
				s.Posted++
				s.Points += j.cfg.Penalty(m)
				j.metrics.BacklogPenalty()
			}
		}
	}

	if s.Posted > 0 || s.Failed > 0 {
		j.logger.Info("backlog sweep complete",
			"scanned", s.Scanned,
			"posted", s.Posted,
			"points", s.Points,
			"failed", s.Failed,
		)
	}
	return s, nil
}

func (j *Job) charge(ctx context.Context, issue issues.Issue, m int) (bool, error) {
	penalty := j.cfg.Penalty(m)
	if penalty == 0 {
		return false, nil
	}

	issueID := issue.ID
	_, posted, err := j.ledger.Post(ctx, ledger.PostCommand{
		JurisdictionID: issue.JurisdictionID,
		Delta:          -penalty,
		Reason:         ledger.ReasonStaleBacklog,
		IssueID:        &issueID,
		IdempotencyKey: ledger.StaleKey(issueID, m),
	})
	return posted, err
}

// Due reports how many penalties an issue created at created has accrued by now.
func Due(created, now time.Time) int {
	if now.Before(created) {
		return 0
	}
	return int(now.Sub(created) / month)
}
