package jurisdictions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/pkg/formatting"
	"github.com/JaimeStill/civic/pkg/pagination"
)

const trendMonths = 12

type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Jurisdiction], error)
	Find(ctx context.Context, id uuid.UUID) (*Jurisdiction, error)
	// Snapshot is the resolver's catalog view.
	Snapshot(ctx context.Context) ([]Jurisdiction, error)
	Create(ctx context.Context, cmd CreateCommand) (*Jurisdiction, error)
	Stats(ctx context.Context, id uuid.UUID) (*Stats, error)
}

type catalog struct {
	store      Store
	activity   ActivityReader
	logger     *slog.Logger
	pagination pagination.Config
	baseScore  int64
	now        func() time.Time
}

// New returns the catalog system. New jurisdictions start at baseScore.
func New(
	store Store,
	activity ActivityReader,
	logger *slog.Logger,
	pagination pagination.Config,
	baseScore int64,
) System {
	return &catalog{
		store:      store,
		activity:   activity,
		logger:     logger.With("system", "jurisdictions"),
		pagination: pagination,
		baseScore:  baseScore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (c *catalog) Handler() *Handler {
	return NewHandler(c, c.logger, c.pagination)
}

func (c *catalog) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Jurisdiction], error) {
	page.Normalize(c.pagination)
	return c.store.List(ctx, page, filters)
}

func (c *catalog) Find(ctx context.Context, id uuid.UUID) (*Jurisdiction, error) {
	return c.store.Find(ctx, id)
}

func (c *catalog) Snapshot(ctx context.Context) ([]Jurisdiction, error) {
	return c.store.Snapshot(ctx)
}

func (c *catalog) Create(ctx context.Context, cmd CreateCommand) (*Jurisdiction, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	j, err := c.store.Insert(ctx, Jurisdiction{
		ID:       uuid.New(),
		Name:     cmd.Name,
		Type:     cmd.Type,
		State:    cmd.State,
		District: cmd.District,
		City:     cmd.City,
		Bounds:   cmd.Bounds,
		Score:    c.baseScore,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("jurisdiction created", "id", j.ID, "name", j.Name, "state", j.State)
	return j, nil
}

func (c *catalog) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	j, err := c.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	months := trailingMonths(c.now(), trendMonths)
	since, _ := time.Parse("2006-01", months[0])

	activity, err := c.activity.Activity(ctx, id, since)
	if err != nil {
		return nil, fmt.Errorf("jurisdiction activity: %w", err)
	}

	stats := &Stats{
		JurisdictionID:  j.ID,
		Name:            j.Name,
		Type:            j.Type,
		State:           j.State,
		Score:           j.Score,
		IssuesReceived:  j.IssuesReceived,
		IssuesResolved:  j.IssuesResolved,
		OpenCount:       j.OpenCount,
		RespondedCount:  j.RespondedCount,
		VerifiedCount:   j.VerifiedCount,
		ReviewCount:     j.ReviewCount,
		DisputedCount:   j.DisputedCount,
		ResolutionRate:  ResolutionRate(j.IssuesResolved, j.IssuesReceived),
		IssuesByType:    activity.IssuesByType,
		LedgerSuspended: j.LedgerSuspended,
	}

	if !j.LedgerSuspended {
		rank, err := c.store.Rank(ctx, j)
		if err != nil {
			return nil, err
		}
		stats.Rank = &rank
	}

	if activity.ResolutionDuration != nil {
		h := formatting.Hours(*activity.ResolutionDuration)
		stats.AvgResolutionHours = &h
	}

	stats.MonthlyTrend = make([]MonthCount, len(months))
	for i, m := range months {
		stats.MonthlyTrend[i] = MonthCount{Month: m, Count: activity.Monthly[m]}
	}

	return stats, nil
}

// ResolutionRate is resolved/received as a percentage with two decimals.
func ResolutionRate(resolved, received int) float64 {
	return formatting.Round(formatting.Ratio(int64(resolved), int64(received))*100, 2)
}

// trailingMonths returns n YYYY-MM keys ending with the month of now, oldest first.
func trailingMonths(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := range n {
		out[i] = first.AddDate(0, i-(n-1), 0).Format("2006-01")
	}
	return out
}
