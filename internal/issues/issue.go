// Package issues owns civic issue reports from intake through resolution.
// Every status change goes through the transition table in status.go and
// is persisted as a conditional write on the prior status.
package issues

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JaimeStill/civic/internal/resolver"
)

type IssueType string

const (
	Pothole      IssueType = "POTHOLE"
	Garbage      IssueType = "GARBAGE"
	Drainage     IssueType = "DRAINAGE"
	RoadDamage   IssueType = "ROAD_DAMAGE"
	Streetlight  IssueType = "STREETLIGHT"
	WaterSupply  IssueType = "WATER_SUPPLY"
	Sewage       IssueType = "SEWAGE"
	Encroachment IssueType = "ENCROACHMENT"
	Sanitation   IssueType = "SANITATION"
	Parks        IssueType = "PARKS"
	Other        IssueType = "OTHER"
	Unclassified IssueType = "UNCLASSIFIED"
)

var IssueTypes = []IssueType{
	Pothole, Garbage, Drainage, RoadDamage, Streetlight, WaterSupply,
	Sewage, Encroachment, Sanitation, Parks, Other, Unclassified,
}

func (t IssueType) Valid() bool {
	return slices.Contains(IssueTypes, t)
}

// typeAliases folds classifier labels that have no category of their own.
var typeAliases = map[string]IssueType{
	"ILLEGAL_DUMPING": Garbage,
	"LITTER":          Garbage,
	"BROKEN_FOOTPATH": RoadDamage,
	"CRACKS":          RoadDamage,
	"PUBLIC_TOILET":   Sanitation,
	"FLOODING":        Drainage,
	"TRAFFIC_SIGNAL":  Streetlight,
}

// ParseIssueType maps a classifier label onto the closed set. An empty label
// is UNCLASSIFIED; an unrecognised one is OTHER.
func ParseIssueType(label string) IssueType {
	norm := strings.ToUpper(strings.TrimSpace(label))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if norm == "" {
		return Unclassified
	}
	if t := IssueType(norm); t.Valid() {
		return t
	}
	if t, ok := typeAliases[norm]; ok {
		return t
	}
	return Other
}

// Issue is a citizen report. NeedsFollowUp marks a RESPONDED issue whose
// verification call failed.
type Issue struct {
	ID              uuid.UUID          `json:"id"`
	Latitude        float64            `json:"latitude"`
	Longitude       float64            `json:"longitude"`
	Address         *resolver.Address  `json:"address,omitempty"`
	JurisdictionID  uuid.UUID          `json:"jurisdiction_id"`
	MatchType       resolver.MatchType `json:"match_type"`
	MatchConfidence float64            `json:"match_confidence"`
	IssueType       IssueType          `json:"issue_type"`
	TypeConfidence  *float64           `json:"type_confidence,omitempty"`
	ClassifierModel string             `json:"classifier_model,omitempty"`
	Description     string             `json:"description"`
	ImageKey        string             `json:"image_key"`
	ImageURL        string             `json:"image_url,omitempty"`
	Status          Status             `json:"status"`
	NeedsFollowUp   bool               `json:"needs_follow_up"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	ResolvedAt      *time.Time         `json:"resolved_at,omitempty"`
	Responses       []Response         `json:"responses,omitempty"`
}

// LowConfidence reports a fallback jurisdiction assignment.
func (i *Issue) LowConfidence() bool {
	return i.MatchType == resolver.MatchFallback
}

type VerificationStatus string

const (
	VerificationPending     VerificationStatus = "PENDING"
	VerificationVerified    VerificationStatus = "VERIFIED"
	VerificationNeedsReview VerificationStatus = "NEEDS_MANUAL_REVIEW"
)

// Outcome is the verification model's judgement on a resolution claim.
type Outcome struct {
	SimilarityScore float64 `json:"similarity_score"`
	Confidence      float64 `json:"confidence"`
	ModelVersion    string  `json:"model_version"`
}

func (o Outcome) Validate() error {
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0, 1]", ErrValidation)
	}
	if o.SimilarityScore < 0 || o.SimilarityScore > 1 {
		return fmt.Errorf("%w: similarity_score must be within [0, 1]", ErrValidation)
	}
	return nil
}

// Response is a jurisdiction's resolution claim. It is immutable once its
// outcome is recorded.
type Response struct {
	ID             uuid.UUID          `json:"id"`
	IssueID        uuid.UUID          `json:"issue_id"`
	JurisdictionID uuid.UUID          `json:"jurisdiction_id"`
	Note           string             `json:"note"`
	ImageKey       string             `json:"image_key"`
	ImageURL       string             `json:"image_url,omitempty"`
	Status         VerificationStatus `json:"verification_status"`
	Outcome        *Outcome           `json:"outcome,omitempty"`
	PointsAwarded  int64              `json:"points_awarded"`
	CreatedAt      time.Time          `json:"created_at"`
	VerifiedAt     *time.Time         `json:"verified_at,omitempty"`
}

const maxDescription = 2000

type CreateCommand struct {
	Latitude    float64
	Longitude   float64
	Description string
	Image       []byte
	Filename    string
	ContentType string
}

func (c *CreateCommand) Validate() error {
	c.Description = strings.TrimSpace(c.Description)

	if !(resolver.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}).Valid() {
		return fmt.Errorf("%w: coordinate out of range", ErrValidation)
	}
	if utf8.RuneCountInString(c.Description) > maxDescription {
		return fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxDescription)
	}
	return validateImage(c.Image, c.ContentType)
}

type SubmitCommand struct {
	IssueID        uuid.UUID
	JurisdictionID uuid.UUID
	Note           string
	Image          []byte
	Filename       string
	ContentType    string
}

func (c *SubmitCommand) Validate(minNote int) error {
	c.Note = strings.TrimSpace(c.Note)

	if c.JurisdictionID == uuid.Nil {
		return fmt.Errorf("%w: jurisdiction_id required", ErrValidation)
	}
	if utf8.RuneCountInString(c.Note) < minNote {
		return fmt.Errorf("%w: note must be at least %d characters", ErrValidation, minNote)
	}
	return validateImage(c.Image, c.ContentType)
}

func validateImage(data []byte, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: image required", ErrValidation)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: unsupported image type %q", ErrValidation, contentType)
	}
	return nil
}

// Options tunes the pipeline.
type Options struct {
	// VerificationThreshold is inclusive: confidence at the threshold verifies.
	VerificationThreshold float64
	PointsPerResolution   int64
	MinNoteLength         int
	GeocodeTimeout        time.Duration
	ClassifyTimeout       time.Duration
	VerifyTimeout         time.Duration
	// ImageURL turns a storage key into a URL the vision service can fetch.
	ImageURL              func(key string) string
}
