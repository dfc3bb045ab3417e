// Package vision calls the image models: issue classification and
// before/after resolution verification. Both are black-box HTTP services
// that answer with a confidence.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/civic/internal/metrics"
)

var ErrUnavailable = errors.New("vision service unavailable")

var tracer = otel.Tracer("github.com/JaimeStill/civic/internal/vision")

type Prediction struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Classification is the classifier's answer. PredictedType is empty when
// the model could not place the image in any category.
type Classification struct {
	PredictedType  string       `json:"predicted_type"`
	Confidence     float64      `json:"confidence"`
	AllPredictions []Prediction `json:"all_predictions"`
	ModelVersion   string       `json:"model_version"`
}

type Verification struct {
	SimilarityScore float64 `json:"similarity_score"`
	Confidence      float64 `json:"confidence"`
	ModelVersion    string  `json:"model_version"`
}

type Client struct {
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cfg *Config, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    httpClient,
		metrics: m,
		logger:  logger.With("system", "vision"),
	}
}

type classifyRequest struct {
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description,omitempty"`
}

type classifyResponse struct {
	Success        bool    `json:"success"`
	IsValid        *bool   `json:"isValid"`
	IssueType      *string `json:"issueType"`
	Confidence     float64 `json:"confidence"`
	ModelVersion   string  `json:"modelVersion"`
	Error          string  `json:"error,omitempty"`
	AllPredictions []struct {
		ClassName   string  `json:"className"`
		Probability float64 `json:"probability"`
		IssueType   *string `json:"issueType"`
	} `json:"allPredictions"`
}

func (c *Client) Classify(ctx context.Context, imageURL, description string) (out *Classification, err error) {
	ctx, end := c.span(ctx, "vision.Classify", "classifier", attribute.String("image.url", imageURL))
	defer func() { end(err) }()

	var resp classifyResponse
	if err := c.post(ctx, "/classify", classifyRequest{ImageURL: imageURL, Description: description}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: classify: %s", ErrUnavailable, resp.Error)
	}

	out = &Classification{
		Confidence:   resp.Confidence,
		ModelVersion: resp.ModelVersion,
	}
	if resp.IssueType != nil && (resp.IsValid == nil || *resp.IsValid) {
		out.PredictedType = *resp.IssueType
	}
	for _, p := range resp.AllPredictions {
		typ := p.ClassName
		if p.IssueType != nil {
			typ = *p.IssueType
		}
		out.AllPredictions = append(out.AllPredictions, Prediction{Type: typ, Confidence: p.Probability})
	}
	return out, nil
}

type verifyRequest struct {
	BeforeImageURL string `json:"beforeImageUrl"`
	AfterImageURL  string `json:"afterImageUrl"`
	IssueType      string `json:"issueType"`
}

type verifyResponse struct {
	SimilarityScore *float64 `json:"similarityScore"`
	Confidence      *float64 `json:"confidence"`
	ModelVersion    string   `json:"modelVersion"`
}

// VerifyResolution compares the original report image with the claimed
// resolution image.
func (c *Client) VerifyResolution(ctx context.Context, beforeURL, afterURL, issueType string) (out *Verification, err error) {
	ctx, end := c.span(ctx, "vision.VerifyResolution", "verifier", attribute.String("issue.type", issueType))
	defer func() { end(err) }()

	var resp verifyResponse
	req := verifyRequest{BeforeImageURL: beforeURL, AfterImageURL: afterURL, IssueType: issueType}
	if err := c.post(ctx, "/verify", req, &resp); err != nil {
		return nil, err
	}
	if resp.Confidence == nil || resp.SimilarityScore == nil {
		return nil, fmt.Errorf("%w: verify: incomplete outcome", ErrUnavailable)
	}

	return &Verification{
		SimilarityScore: *resp.SimilarityScore,
		Confidence:      *resp.Confidence,
		ModelVersion:    resp.ModelVersion,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d", ErrUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUnavailable, path, err)
	}
	return nil
}

// span starts a client span and returns a func that records the call's
// outcome on the span and in metrics.
func (c *Client) span(ctx context.Context, name, collaborator string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()
	return ctx, func(err error) {
		c.metrics.ObserveCollaborator(collaborator, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Warn("vision call failed", "call", name, "error", err)
		}
		span.End()
	}
}
