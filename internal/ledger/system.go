package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/repository"
)

const (
	EventScorePosted   = "ledger.score_posted"
	EventInconsistency = "ledger.inconsistency"
	EventScoreRepaired = "ledger.score_repaired"
)

const reconcileConcurrency = 8

type System interface {
	Handler() *Handler

	// Post appends a score event and applies its delta. It reports false
	// when the idempotency key was already posted.
	Post(ctx context.Context, cmd PostCommand) (*ScoreEvent, bool, error)
	CurrentScore(ctx context.Context, jurisdictionID uuid.UUID) (int64, error)
	// RecomputeScore is base plus the sum of every event for the jurisdiction.
	RecomputeScore(ctx context.Context, jurisdictionID uuid.UUID) (int64, error)
	// Reconcile suspends the jurisdiction from ranking and returns
	// ErrLedgerInconsistency when the cached and recomputed scores differ.
	Reconcile(ctx context.Context, jurisdictionID uuid.UUID) (*Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]Reconciliation, error)
	// Repair overwrites the cached score with the recomputed one and lifts
	// the suspension.
	Repair(ctx context.Context, jurisdictionID uuid.UUID) (*Reconciliation, error)
	Events(ctx context.Context, jurisdictionID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[ScoreEvent], error)
	Leaderboard(ctx context.Context, page pagination.PageRequest, filters jurisdictions.Filters) (*pagination.PageResult[Entry], error)
}

type ledger struct {
	store         Store
	jurisdictions jurisdictions.Store
	tx            repository.Transactor
	publisher     events.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	pagination    pagination.Config
	baseScore     int64
}

type Deps struct {
	Store         Store
	Jurisdictions jurisdictions.Store
	Tx            repository.Transactor
	Publisher     events.Publisher
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	Pagination    pagination.Config
	BaseScore     int64
}

func New(d Deps) System {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &ledger{
		store:         d.Store,
		jurisdictions: d.Jurisdictions,
		tx:            d.Tx,
		publisher:     publisher,
		metrics:       d.Metrics,
		logger:        d.Logger.With("system", "ledger"),
		pagination:    d.Pagination,
		baseScore:     d.BaseScore,
	}
}

func (l *ledger) Handler() *Handler {
	return NewHandler(l, l.logger, l.pagination)
}

func (l *ledger) Post(ctx context.Context, cmd PostCommand) (*ScoreEvent, bool, error) {
	if err := cmd.Validate(); err != nil {
		return nil, false, err
	}

	ev := ScoreEvent{
		ID:             uuid.New(),
		JurisdictionID: cmd.JurisdictionID,
		Delta:          cmd.Delta,
		Reason:         cmd.Reason,
		IssueID:        cmd.IssueID,
		ResponseID:     cmd.ResponseID,
		IdempotencyKey: cmd.IdempotencyKey,
	}

	var posted bool
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := l.findJurisdiction(ctx, ev.JurisdictionID); err != nil {
			return err
		}

		inserted, err := l.store.Append(ctx, ev)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		resolved := ev.Reason == ReasonVerifiedResolution
		if err := l.jurisdictions.ApplyScore(ctx, ev.JurisdictionID, ev.Delta, resolved); err != nil {
			return l.mapJurisdictionErr(err, ev.JurisdictionID)
		}
		posted = true

		repository.AfterCommit(ctx, func() {
			l.metrics.ScoreEvent(string(ev.Reason))
			events.PublishAfter(context.WithoutCancel(ctx), l.publisher, l.logger, events.Event{
				Type:    EventScorePosted,
				Key:     ev.JurisdictionID.String(),
				Payload: ev,
			})
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !posted {
		l.logger.Debug("score event already posted", "key", ev.IdempotencyKey)
		return nil, false, nil
	}

	l.logger.Info("score event posted",
		"jurisdiction_id", ev.JurisdictionID,
		"delta", ev.Delta,
		"reason", ev.Reason,
		"key", ev.IdempotencyKey,
	)
	return &ev, true, nil
}

func (l *ledger) CurrentScore(ctx context.Context, jurisdictionID uuid.UUID) (int64, error) {
	j, err := l.findJurisdiction(ctx, jurisdictionID)
	if err != nil {
		return 0, err
	}
	return j.Score, nil
}

func (l *ledger) RecomputeScore(ctx context.Context, jurisdictionID uuid.UUID) (int64, error) {
	if _, err := l.findJurisdiction(ctx, jurisdictionID); err != nil {
		return 0, err
	}
	sum, err := l.store.Sum(ctx, jurisdictionID)
	if err != nil {
		return 0, err
	}
	return l.baseScore + sum, nil
}

func (l *ledger) Reconcile(ctx context.Context, jurisdictionID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.compare(ctx, jurisdictionID)
		if err != nil {
			return err
		}

		switch {
		case !rec.Consistent && !rec.Suspended:
			if err := l.jurisdictions.SetSuspended(ctx, jurisdictionID, true); err != nil {
				return l.mapJurisdictionErr(err, jurisdictionID)
			}
			rec.Suspended = true
			repository.AfterCommit(ctx, func() {
				l.metrics.LedgerInconsistency()
				events.PublishAfter(context.WithoutCancel(ctx), l.publisher, l.logger, events.Event{
					Type:    EventInconsistency,
					Key:     jurisdictionID.String(),
					Payload: *rec,
				})
			})
		case rec.Consistent && rec.Suspended:
			if err := l.jurisdictions.SetSuspended(ctx, jurisdictionID, false); err != nil {
				return l.mapJurisdictionErr(err, jurisdictionID)
			}
			rec.Suspended = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !rec.Consistent {
		l.logger.Error("ledger inconsistency",
			"jurisdiction_id", jurisdictionID,
			"cached", rec.Cached,
			"recomputed", rec.Recomputed,
		)
		return rec, fmt.Errorf("%w: jurisdiction %s cached %d recomputed %d",
			ErrLedgerInconsistency, jurisdictionID, rec.Cached, rec.Recomputed)
	}
	return rec, nil
}

func (l *ledger) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	catalog, err := l.jurisdictions.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results = make([]Reconciliation, 0, len(catalog))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)

	for _, j := range catalog {
		g.Go(func() error {
			rec, err := l.Reconcile(gctx, j.ID)
			if err != nil && !errors.Is(err, ErrLedgerInconsistency) {
				return err
			}
			mu.Lock()
			results = append(results, *rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	inconsistent := 0
	for _, r := range results {
		if !r.Consistent {
			inconsistent++
		}
	}
	l.logger.Info("ledger reconciled", "jurisdictions", len(results), "inconsistent", inconsistent)

	return results, nil
}

func (l *ledger) Repair(ctx context.Context, jurisdictionID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := l.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = l.compare(ctx, jurisdictionID)
		if err != nil {
			return err
		}

		if !rec.Consistent {
			if err := l.jurisdictions.SetScore(ctx, jurisdictionID, rec.Recomputed); err != nil {
				return l.mapJurisdictionErr(err, jurisdictionID)
			}
			previous := rec.Cached
			repository.AfterCommit(ctx, func() {
				events.PublishAfter(context.WithoutCancel(ctx), l.publisher, l.logger, events.Event{
					Type:    EventScoreRepaired,
					Key:     jurisdictionID.String(),
					Payload: map[string]any{"jurisdiction_id": jurisdictionID, "from": previous, "to": rec.Recomputed},
				})
			})
		}
		if rec.Suspended {
			if err := l.jurisdictions.SetSuspended(ctx, jurisdictionID, false); err != nil {
				return l.mapJurisdictionErr(err, jurisdictionID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !rec.Consistent {
		l.logger.Warn("ledger score repaired",
			"jurisdiction_id", jurisdictionID,
			"from", rec.Cached,
			"to", rec.Recomputed,
		)
	}

	return &Reconciliation{
		JurisdictionID: jurisdictionID,
		Cached:         rec.Recomputed,
		Recomputed:     rec.Recomputed,
		Consistent:     true,
	}, nil
}

func (l *ledger) Events(
	ctx context.Context,
	jurisdictionID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[ScoreEvent], error) {
	if _, err := l.findJurisdiction(ctx, jurisdictionID); err != nil {
		return nil, err
	}
	page.Normalize(l.pagination)
	return l.store.Events(ctx, jurisdictionID, page)
}

// Leaderboard ranks non-suspended jurisdictions by score descending, id
// ascending. Ranks are absolute across pages.
func (l *ledger) Leaderboard(
	ctx context.Context,
	page pagination.PageRequest,
	filters jurisdictions.Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(l.pagination)

	ranked, err := l.jurisdictions.Ranked(ctx, page, filters)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(ranked.Data))
	for i, j := range ranked.Data {
		entries[i] = Entry{
			Rank:           page.Offset() + i + 1,
			JurisdictionID: j.ID,
			Name:           j.Name,
			Type:           j.Type,
			State:          j.State,
			District:       j.District,
			Score:          j.Score,
			IssuesReceived: j.IssuesReceived,
			IssuesResolved: j.IssuesResolved,
			ResolutionRate: jurisdictions.ResolutionRate(j.IssuesResolved, j.IssuesReceived),
		}
	}

	result := pagination.NewPageResult(entries, ranked.Total, ranked.Page, ranked.PageSize)
	return &result, nil
}

// compare locks the jurisdiction row so no post can land between reading
// the cached score and summing the events.
func (l *ledger) compare(ctx context.Context, jurisdictionID uuid.UUID) (*Reconciliation, error) {
	j, err := l.jurisdictions.Lock(ctx, jurisdictionID)
	if err != nil {
		return nil, l.mapJurisdictionErr(err, jurisdictionID)
	}
	sum, err := l.store.Sum(ctx, jurisdictionID)
	if err != nil {
		return nil, err
	}

	recomputed := l.baseScore + sum
	return &Reconciliation{
		JurisdictionID: jurisdictionID,
		Cached:         j.Score,
		Recomputed:     recomputed,
		Consistent:     j.Score == recomputed,
		Suspended:      j.LedgerSuspended,
	}, nil
}

func (l *ledger) findJurisdiction(ctx context.Context, id uuid.UUID) (*jurisdictions.Jurisdiction, error) {
	j, err := l.jurisdictions.Find(ctx, id)
	if err != nil {
		return nil, l.mapJurisdictionErr(err, id)
	}
	return j, nil
}

func (l *ledger) mapJurisdictionErr(err error, id uuid.UUID) error {
	if errors.Is(err, jurisdictions.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
