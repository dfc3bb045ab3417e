package issues

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/civic/internal/jurisdictions"
	"github.com/JaimeStill/civic/internal/ledger"
	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/internal/resolver"
	"github.com/JaimeStill/civic/internal/vision"
	"github.com/JaimeStill/civic/pkg/events"
	"github.com/JaimeStill/civic/pkg/pagination"
	"github.com/JaimeStill/civic/pkg/repository"
	"github.com/JaimeStill/civic/pkg/storage"
)

const (
	EventIssueCreated      = "issue.created"
	EventIssueTransitioned = "issue.transitioned"
)

// System defines the issue pipeline operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// Create stores the image, enriches the report through the geocoding
	// and classification collaborators, and assigns a jurisdiction. Only
	// an empty catalog prevents creation.
	Create(ctx context.Context, cmd CreateCommand) (*Issue, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Issue], error)
	// Find returns the issue with its responses.
	Find(ctx context.Context, id uuid.UUID) (*Issue, error)

	// SubmitResponse records a resolution claim and moves the issue to
	// RESPONDED. It does not call the verification collaborator.
	SubmitResponse(ctx context.Context, cmd SubmitCommand) (*Response, error)
	// Verify asks the verification collaborator to judge a pending response
	// and records the result. A collaborator failure flags the issue for
	// follow-up and leaves the response pending.
	Verify(ctx context.Context, responseID uuid.UUID) (*Response, error)
	// RecordVerification applies an outcome to a pending response.
	// Recording the same outcome again returns the stored response.
	RecordVerification(ctx context.Context, responseID uuid.UUID, o Outcome) (*Response, error)
	Dispute(ctx context.Context, issueID uuid.UUID) (*Issue, error)
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*resolver.Address, error)
}

type Classifier interface {
	Classify(ctx context.Context, imageURL, description string) (*vision.Classification, error)
}

type Verifier interface {
	VerifyResolution(ctx context.Context, beforeURL, afterURL, issueType string) (*vision.Verification, error)
}

// Catalog provides the resolver's jurisdiction snapshot.
type Catalog interface {
	Snapshot(ctx context.Context) ([]jurisdictions.Jurisdiction, error)
}

// Counters maintains per-jurisdiction status counters.
type Counters interface {
	AdjustCounts(ctx context.Context, id uuid.UUID, delta jurisdictions.Counts) error
}

// Scorer posts ledger events.
type Scorer interface {
	Post(ctx context.Context, cmd ledger.PostCommand) (*ledger.ScoreEvent, bool, error)
}

// TransitionEvent is the payload of EventIssueTransitioned.
type TransitionEvent struct {
	IssueID        uuid.UUID `json:"issue_id"`
	JurisdictionID uuid.UUID `json:"jurisdiction_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
}

type Deps struct {
	Store      Store
	Catalog    Catalog
	Counters   Counters
	Ledger     Scorer
	Geocoder   Geocoder
	Classifier Classifier
	Verifier   Verifier
	Storage    storage.System
	Tx         repository.Transactor
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Pagination pagination.Config
	Options    Options
}

type pipeline struct {
	store      Store
	catalog    Catalog
	counters   Counters
	ledger     Scorer
	geocoder   Geocoder
	classifier Classifier
	verifier   Verifier
	storage    storage.System
	tx         repository.Transactor
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	pagination pagination.Config
	opts       Options
}

func New(d Deps) System {
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &pipeline{
		store:      d.Store,
		catalog:    d.Catalog,
		counters:   d.Counters,
		ledger:     d.Ledger,
		geocoder:   d.Geocoder,
		classifier: d.Classifier,
		verifier:   d.Verifier,
		storage:    d.Storage,
		tx:         d.Tx,
		publisher:  publisher,
		metrics:    d.Metrics,
		logger:     d.Logger.With("system", "issues"),
		pagination: d.Pagination,
		opts:       d.Options,
	}
}

func (p *pipeline) Handler(maxUploadSize int64) *Handler {
	return NewHandler(p, p.logger, p.pagination, maxUploadSize)
}

func (p *pipeline) Create(ctx context.Context, cmd CreateCommand) (*Issue, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	issue := Issue{
		ID:          uuid.New(),
		Latitude:    cmd.Latitude,
		Longitude:   cmd.Longitude,
		Description: cmd.Description,
		IssueType:   Unclassified,
		Status:      Open,
	}
	issue.ImageKey = storageKey("issues", issue.ID, cmd.Filename)

	if err := p.upload(ctx, issue.ImageKey, cmd.Image, cmd.ContentType); err != nil {
		return nil, err
	}

	p.enrich(ctx, &issue)

	catalog, err := p.catalog.Snapshot(ctx)
	if err != nil {
		p.discard(ctx, issue.ImageKey)
		return nil, fmt.Errorf("catalog snapshot: %w", err)
	}

	coord := resolver.Coordinate{Latitude: issue.Latitude, Longitude: issue.Longitude}
	match, err := resolver.Resolve(coord, issue.Address, catalog)
	if err != nil {
		p.discard(ctx, issue.ImageKey)
		return nil, fmt.Errorf("%w: jurisdiction catalog is empty", ErrResolutionFailure)
	}
	issue.JurisdictionID = match.JurisdictionID
	issue.MatchType = match.MatchType
	issue.MatchConfidence = match.Confidence

	var created *Issue
	err = p.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if created, err = p.store.Insert(ctx, issue); err != nil {
			return err
		}
		if err := p.counters.AdjustCounts(ctx, created.JurisdictionID, jurisdictions.Counts{Received: 1, Open: 1}); err != nil {
			return fmt.Errorf("adjust counts: %w", err)
		}

		repository.AfterCommit(ctx, func() {
			p.metrics.IssueCreated(string(created.MatchType))
			events.PublishAfter(context.WithoutCancel(ctx), p.publisher, p.logger, events.Event{
				Type:    EventIssueCreated,
				Key:     created.JurisdictionID.String(),
				Payload: created,
			})
		})
		return nil
	})
	if err != nil {
		p.discard(ctx, issue.ImageKey)
		return nil, err
	}

	if created.LowConfidence() {
		p.logger.Warn("fallback jurisdiction assigned",
			"issue", created.ID,
			"jurisdiction", created.JurisdictionID,
			"latitude", created.Latitude,
			"longitude", created.Longitude,
		)
	}
	p.logger.Info("issue created",
		"id", created.ID,
		"jurisdiction", created.JurisdictionID,
		"match_type", created.MatchType,
		"issue_type", created.IssueType,
	)

	p.decorate(created)
	return created, nil
}

// enrich runs geocoding and classification concurrently. Either may fail
// without blocking intake.
func (p *pipeline) enrich(ctx context.Context, issue *Issue) {
	var g errgroup.Group

	if p.geocoder != nil {
		g.Go(func() error {
			ctx, cancel := withTimeout(ctx, p.opts.GeocodeTimeout)
			defer cancel()

			addr, err := p.geocoder.ReverseGeocode(ctx, issue.Latitude, issue.Longitude)
			if err != nil {
				p.logger.Warn("reverse geocode failed", "issue", issue.ID, "error", err)
				return nil
			}
			if addr.Empty() {
				return nil
			}
			issue.Address = addr
			return nil
		})
	}

	if p.classifier != nil {
		g.Go(func() error {
			ctx, cancel := withTimeout(ctx, p.opts.ClassifyTimeout)
			defer cancel()

			c, err := p.classifier.Classify(ctx, p.imageURL(issue.ImageKey), issue.Description)
			if err != nil {
				p.logger.Warn("classification failed", "issue", issue.ID, "error", err)
				return nil
			}
			if c.PredictedType == "" {
				return nil
			}
			issue.IssueType = ParseIssueType(c.PredictedType)
			issue.TypeConfidence = &c.Confidence
			issue.ClassifierModel = c.ModelVersion
			return nil
		})
	}

	g.Wait()
}

func (p *pipeline) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Issue], error) {
	page.Normalize(p.pagination)

	result, err := p.store.List(ctx, page, filters)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		p.decorate(&result.Data[i])
	}
	return result, nil
}

func (p *pipeline) Find(ctx context.Context, id uuid.UUID) (*Issue, error) {
	issue, err := p.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	responses, err := p.store.Responses(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.Responses = responses

	p.decorate(issue)
	return issue, nil
}

func (p *pipeline) SubmitResponse(ctx context.Context, cmd SubmitCommand) (*Response, error) {
	if err := cmd.Validate(p.opts.MinNoteLength); err != nil {
		return nil, err
	}

	issue, err := p.store.Find(ctx, cmd.IssueID)
	if err != nil {
		return nil, err
	}
	if issue.JurisdictionID != cmd.JurisdictionID {
		return nil, fmt.Errorf("%w: issue %s is assigned to jurisdiction %s",
			ErrJurisdictionMismatch, issue.ID, issue.JurisdictionID)
	}

	from := issue.Status
	to, err := Next(from, ActionRespond)
	if err != nil {
		return nil, err
	}

	response := Response{
		ID:             uuid.New(),
		IssueID:        issue.ID,
		JurisdictionID: issue.JurisdictionID,
		Note:           cmd.Note,
		Status:         VerificationPending,
	}
	response.ImageKey = storageKey("responses", response.ID, cmd.Filename)

	if err := p.upload(ctx, response.ImageKey, cmd.Image, cmd.ContentType); err != nil {
		return nil, err
	}

	var created *Response
	err = p.tx.InTx(ctx, func(ctx context.Context) error {
		updated, err := p.store.Transition(ctx, issue.ID, from, to)
		if err != nil {
			return err
		}
		if created, err = p.store.InsertResponse(ctx, response); err != nil {
			return err
		}
		if err := p.counters.AdjustCounts(ctx, issue.JurisdictionID, countsDelta(from, to)); err != nil {
			return fmt.Errorf("adjust counts: %w", err)
		}

		repository.AfterCommit(ctx, func() { p.transitioned(ctx, updated, from) })
		return nil
	})
	if err != nil {
		p.discard(ctx, response.ImageKey)
		return nil, err
	}

	p.logger.Info("response submitted", "id", created.ID, "issue", issue.ID, "jurisdiction", issue.JurisdictionID)
	p.decorateResponse(created)
	return created, nil
}

func (p *pipeline) Verify(ctx context.Context, responseID uuid.UUID) (*Response, error) {
	resp, err := p.store.FindResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if resp.Status != VerificationPending {
		p.decorateResponse(resp)
		return resp, nil
	}

	issue, err := p.store.Find(ctx, resp.IssueID)
	if err != nil {
		return nil, err
	}

	v, err := p.verify(ctx, issue, resp)
	if err != nil {
		p.logger.Warn("resolution verification failed",
			"response", resp.ID,
			"issue", issue.ID,
			"error", err,
		)
		if ferr := p.store.FlagFollowUp(ctx, issue.ID); ferr != nil {
			p.logger.Error("flag follow-up failed", "issue", issue.ID, "error", ferr)
		}
		return nil, fmt.Errorf("%w: resolution verification", ErrCollaboratorUnavailable)
	}

	return p.RecordVerification(ctx, resp.ID, Outcome{
		SimilarityScore: v.SimilarityScore,
		Confidence:      v.Confidence,
		ModelVersion:    v.ModelVersion,
	})
}

func (p *pipeline) verify(ctx context.Context, issue *Issue, resp *Response) (*vision.Verification, error) {
	if p.verifier == nil {
		return nil, errors.New("no verifier configured")
	}

	ctx, cancel := withTimeout(ctx, p.opts.VerifyTimeout)
	defer cancel()

	return p.verifier.VerifyResolution(ctx,
		p.imageURL(issue.ImageKey),
		p.imageURL(resp.ImageKey),
		string(issue.IssueType),
	)
}

func (p *pipeline) RecordVerification(ctx context.Context, responseID uuid.UUID, o Outcome) (*Response, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var result *Response
	err := p.tx.InTx(ctx, func(ctx context.Context) error {
		resp, err := p.store.FindResponse(ctx, responseID)
		if err != nil {
			return err
		}
		if resp.Status != VerificationPending {
			if resp.Outcome != nil && *resp.Outcome == o {
				result = resp
				return nil
			}
			return fmt.Errorf("%w: response %s already recorded as %s", ErrStateConflict, resp.ID, resp.Status)
		}

		status, action, points := VerificationNeedsReview, ActionReview, int64(0)
		if o.Confidence >= p.opts.VerificationThreshold {
			status, action, points = VerificationVerified, ActionVerify, p.opts.PointsPerResolution
		}

		to, err := Next(Responded, action)
		if err != nil {
			return err
		}

		if result, err = p.store.RecordOutcome(ctx, resp.ID, o, status, points); err != nil {
			return err
		}

		issue, err := p.store.Transition(ctx, resp.IssueID, Responded, to)
		if err != nil {
			return err
		}
		if err := p.counters.AdjustCounts(ctx, issue.JurisdictionID, countsDelta(Responded, to)); err != nil {
			return fmt.Errorf("adjust counts: %w", err)
		}

		if points > 0 {
			_, _, err := p.ledger.Post(ctx, ledger.PostCommand{
				JurisdictionID: resp.JurisdictionID,
				Delta:          points,
				Reason:         ledger.ReasonVerifiedResolution,
				IssueID:        &resp.IssueID,
				ResponseID:     &resp.ID,
				IdempotencyKey: ledger.ResponseKey(resp.ID),
			})
			if err != nil {
				return fmt.Errorf("post resolution score: %w", err)
			}
		}

		repository.AfterCommit(ctx, func() { p.transitioned(ctx, issue, Responded) })
		return nil
	})

	if errors.Is(err, ErrStateConflict) {
		if resp, ferr := p.store.FindResponse(ctx, responseID); ferr == nil &&
			resp.Outcome != nil && *resp.Outcome == o {
			result, err = resp, nil
		}
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("verification recorded",
		"response", result.ID,
		"issue", result.IssueID,
		"status", result.Status,
		"confidence", o.Confidence,
		"points", result.PointsAwarded,
	)
	p.decorateResponse(result)
	return result, nil
}

func (p *pipeline) Dispute(ctx context.Context, issueID uuid.UUID) (*Issue, error) {
	issue, err := p.store.Find(ctx, issueID)
	if err != nil {
		return nil, err
	}

	from := issue.Status
	to, err := Next(from, ActionDispute)
	if err != nil {
		return nil, err
	}

	var updated *Issue
	err = p.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = p.store.Transition(ctx, issue.ID, from, to); err != nil {
			return err
		}
		if err := p.counters.AdjustCounts(ctx, issue.JurisdictionID, countsDelta(from, to)); err != nil {
			return fmt.Errorf("adjust counts: %w", err)
		}

		repository.AfterCommit(ctx, func() { p.transitioned(ctx, updated, from) })
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("issue disputed", "id", updated.ID, "from", from)
	p.decorate(updated)
	return updated, nil
}

func (p *pipeline) transitioned(ctx context.Context, issue *Issue, from Status) {
	p.metrics.Transition(string(from), string(issue.Status))
	events.PublishAfter(context.WithoutCancel(ctx), p.publisher, p.logger, events.Event{
		Type: EventIssueTransitioned,
		Key:  issue.JurisdictionID.String(),
		Payload: TransitionEvent{
			IssueID:        issue.ID,
			JurisdictionID: issue.JurisdictionID,
			From:           from,
			To:             issue.Status,
		},
	})
}

func (p *pipeline) upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := p.storage.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		p.logger.Error("image upload failed", "key", key, "error", err)
		return fmt.Errorf("%w: image storage", ErrCollaboratorUnavailable)
	}
	return nil
}

// discard removes an uploaded image whose record was never committed.
func (p *pipeline) discard(ctx context.Context, key string) {
	if err := p.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		p.logger.Warn("compensating image delete failed", "key", key, "error", err)
	}
}

func (p *pipeline) imageURL(key string) string {
	if p.opts.ImageURL == nil {
		return key
	}
	return p.opts.ImageURL(key)
}

func (p *pipeline) decorate(issue *Issue) {
	issue.ImageURL = p.imageURL(issue.ImageKey)
	for i := range issue.Responses {
		p.decorateResponse(&issue.Responses[i])
	}
}

func (p *pipeline) decorateResponse(r *Response) {
	r.ImageURL = p.imageURL(r.ImageKey)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func storageKey(prefix string, id uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, id, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return url.PathEscape(name)
}
