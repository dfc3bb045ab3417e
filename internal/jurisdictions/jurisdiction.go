// Package jurisdictions holds the catalog of municipal authorities that
// issues are routed to, their incremental counters, and their stats.
package jurisdictions

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	MunicipalCorporation Type = "MUNICIPAL_CORPORATION"
	Municipality         Type = "MUNICIPALITY"
	NagarPanchayat       Type = "NAGAR_PANCHAYAT"
	GramPanchayat        Type = "GRAM_PANCHAYAT"
	CantonmentBoard      Type = "CANTONMENT_BOARD"
)

var Types = []Type{
	MunicipalCorporation,
	Municipality,
	NagarPanchayat,
	GramPanchayat,
	CantonmentBoard,
}

func (t Type) Valid() bool {
	return slices.Contains(Types, t)
}

// Bounds is a rectangular lat/lng region. It does not cross the antimeridian.
type Bounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

// Contains is inclusive on every edge.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

func (b Bounds) Area() float64 {
	return (b.North - b.South) * (b.East - b.West)
}

func (b Bounds) Validate() error {
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return fmt.Errorf("%w: bounds out of range", ErrInvalid)
	}
	if b.South > b.North {
		return fmt.Errorf("%w: bounds south exceeds north", ErrInvalid)
	}
	if b.West > b.East {
		return fmt.Errorf("%w: bounds west exceeds east", ErrInvalid)
	}
	return nil
}

type Jurisdiction struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Type            Type      `json:"type"`
	State           string    `json:"state"`
	District        string    `json:"district,omitempty"`
	City            string    `json:"city,omitempty"`
	Bounds          *Bounds   `json:"bounds,omitempty"`
	Score           int64     `json:"score"`
	IssuesReceived  int       `json:"issues_received"`
	IssuesResolved  int       `json:"issues_resolved"`
	OpenCount       int       `json:"open_count"`
	RespondedCount  int       `json:"responded_count"`
	VerifiedCount   int       `json:"verified_count"`
	ReviewCount     int       `json:"review_count"`
	DisputedCount   int       `json:"disputed_count"`
	LedgerSuspended bool      `json:"ledger_suspended"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateCommand struct {
	Name     string  `json:"name" yaml:"name"`
	Type     Type    `json:"type" yaml:"type"`
	State    string  `json:"state" yaml:"state"`
	District string  `json:"district" yaml:"district"`
	City     string  `json:"city" yaml:"city"`
	Bounds   *Bounds `json:"bounds,omitempty" yaml:"bounds"`
}

func (c *CreateCommand) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.State = strings.TrimSpace(c.State)
	c.District = strings.TrimSpace(c.District)
	c.City = strings.TrimSpace(c.City)

	if c.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	if c.State == "" {
		return fmt.Errorf("%w: state required", ErrInvalid)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, c.Type)
	}
	if c.Bounds != nil {
		return c.Bounds.Validate()
	}
	return nil
}

// Counts is a signed adjustment to a jurisdiction's incremental counters.
type Counts struct {
	Received  int
	Open      int
	Responded int
	Verified  int
	Review    int
	Disputed  int
}

func (c Counts) IsZero() bool {
	return c == Counts{}
}

// MonthCount is intake volume for one calendar month, formatted YYYY-MM.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Activity is issue-level aggregate data read from the issue store.
type Activity struct {
	IssuesByType       map[string]int
	ResolutionDuration *time.Duration
	Monthly            map[string]int
}

type Stats struct {
	JurisdictionID     uuid.UUID      `json:"jurisdiction_id"`
	Name               string         `json:"name"`
	Type               Type           `json:"type"`
	State              string         `json:"state"`
	Score              int64          `json:"score"`
	Rank               *int           `json:"rank"`
	IssuesReceived     int            `json:"issues_received"`
	IssuesResolved     int            `json:"issues_resolved"`
	OpenCount          int            `json:"open_count"`
	RespondedCount     int            `json:"responded_count"`
	VerifiedCount      int            `json:"verified_count"`
	ReviewCount        int            `json:"review_count"`
	DisputedCount      int            `json:"disputed_count"`
	ResolutionRate     float64        `json:"resolution_rate"`
	AvgResolutionHours *float64       `json:"avg_resolution_hours"`
	IssuesByType       map[string]int `json:"issues_by_type"`
	MonthlyTrend       []MonthCount   `json:"monthly_trend"`
	LedgerSuspended    bool           `json:"ledger_suspended"`
}
