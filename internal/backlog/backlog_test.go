package backlog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/civic/internal/backlog"
	"github.com/JaimeStill/civic/internal/issues"
	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/internal/ledger"
	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/repository"
)

const base = 10000

const day = 24 * time.Hour

var kochi = uuid.MustParse("00000000-0000-0000-0000-00000000000a")

type source struct {
	issues []issues.Issue
	err    error
}

func (s *source) Aged(_ context.Context, status issues.Status, cutoff time.Time) ([]issues.Issue, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []issues.Issue
	for _, i := range s.issues {
		if i.Status == status && !i.CreatedAt.After(cutoff) {
			out = append(out, i)
		}
	}
	return out, nil
}

func openIssue(age time.Duration) issues.Issue {
	return issues.Issue{
		ID:             uuid.New(),
		JurisdictionID: kochi,
		Status:         issues.Open,
		CreatedAt:      time.Now().UTC().Add(-age),
	}
}

type fixture struct {
	job     *backlog.Job
	src     *source
	ledger  ledger.System
	catalog *jurisdictions.MemoryStore
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, aged ...issues.Issue) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		src:     &source{issues: aged},
		catalog: jurisdictions.NewMemoryStore(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	_, err := f.catalog.Insert(context.Background(), jurisdictions.Jurisdiction{
		ID:    kochi,
		Name:  "Kochi",
		Type:  jurisdictions.Municipality,
		State: "Kerala",
		Score: base,
	})
	require.NoError(t, err)

	f.ledger = ledger.New(ledger.Deps{
		Store:         ledger.NewMemoryStore(),
		Jurisdictions: f.catalog,
		Tx:            repository.Passthrough{},
		Publisher:     events.Noop{},
		Metrics:       f.metrics,
		Logger:        logger,
		Pagination:    pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		BaseScore:     base,
	})

	cfg := backlog.Config{}
	require.NoError(t, cfg.Finalize(nil))
	f.job = backlog.New(f.src, f.ledger, cfg, f.metrics, logger)
	return f
}

func (f *fixture) score(t *testing.T) int64 {
	t.Helper()
	j, err := f.catalog.Find(context.Background(), kochi)
	require.NoError(t, err)
	return j.Score
}

func TestSweepChargesEachElapsedMonth(t *testing.T) {
	f := newFixture(t,
		openIssue(10*day),
		openIssue(45*day),
		openIssue(100*day),
	)

	s, err := f.job.Sweep(context.Background())
	require.NoError(t, err)

	// 45 days: month 1. 100 days: months 1, 2, 3.
	assert.Equal(t, 2, s.Scanned)
	assert.Equal(t, 4, s.Posted)
	assert.Equal(t, int64(200+200+300+500), s.Points)
	assert.Equal(t, int64(base-1200), f.score(t))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.BacklogPenalties))
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t, openIssue(65*day))

	first, err := f.job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Posted)

	second, err := f.job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Posted)
	assert.Equal(t, 1, second.Scanned)

	assert.Equal(t, int64(base-500), f.score(t))
}

func TestSweepSkipsResolvedIssues(t *testing.T) {
	responded := openIssue(90 * day)
	responded.Status = issues.Responded

	f := newFixture(t, responded)

	s, err := f.job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.Scanned)
	assert.Equal(t, int64(base), f.score(t))
}

func TestSweepCountsUnknownJurisdictionAsFailed(t *testing.T) {
	orphan := openIssue(40 * day)
	orphan.JurisdictionID = uuid.New()

	f := newFixture(t, orphan, openIssue(40*day))

	s, err := f.job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Posted)
}

func TestSweepSourceError(t *testing.T) {
	f := newFixture(t)
	f.src.err = errors.New("connection refused")

	_, err := f.job.Sweep(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		age  time.Duration
		want int
	}{
		{0, 0},
		{29 * day, 0},
		{30 * day, 1},
		{59 * day, 1},
		{95 * day, 3},
		{-day, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backlog.Due(now.Add(-tt.age), now), "age %s", tt.age)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_BACKLOG_INTERVAL", "15m")
	t.Setenv("TEST_BACKLOG_LATER", "750")

	cfg := backlog.Config{}
	require.NoError(t, cfg.Finalize(&backlog.ConfigEnv{
		Interval: "TEST_BACKLOG_INTERVAL",
		Later:    "TEST_BACKLOG_LATER",
	}))

	assert.True(t, cfg.IsEnabled())
	assert.Equal(t, 15*time.Minute, cfg.IntervalDuration())
	assert.Equal(t, int64(200), cfg.Penalty(1))
	assert.Equal(t, int64(300), cfg.Penalty(2))
	assert.Equal(t, int64(750), cfg.Penalty(7))

	bad := backlog.Config{First: -1}
	assert.Error(t, bad.Finalize(nil))
}
