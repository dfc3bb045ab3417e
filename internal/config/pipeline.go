package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/civic/internal/backlog"
	"github.com/JaimeStill/civic/internal/issues"
)

const (
	EnvPipelineVerificationThreshold = "CIVIC_PIPELINE_VERIFICATION_THRESHOLD"
	EnvPipelineResolutionPoints      = "CIVIC_PIPELINE_RESOLUTION_POINTS"
	EnvPipelineBaseScore             = "CIVIC_PIPELINE_BASE_SCORE"
	EnvPipelineMinNoteLength         = "CIVIC_PIPELINE_MIN_NOTE_LENGTH"
	EnvPipelineGeocodeTimeout        = "CIVIC_PIPELINE_GEOCODE_TIMEOUT"
	EnvPipelineClassifyTimeout       = "CIVIC_PIPELINE_CLASSIFY_TIMEOUT"
	EnvPipelineVerifyTimeout         = "CIVIC_PIPELINE_VERIFY_TIMEOUT"
)

var backlogEnv = &backlog.ConfigEnv{
	Enabled:  "CIVIC_BACKLOG_ENABLED",
	Interval: "CIVIC_BACKLOG_INTERVAL",
	First:    "CIVIC_BACKLOG_FIRST_MONTH_PENALTY",
	Second:   "CIVIC_BACKLOG_SECOND_MONTH_PENALTY",
	Later:    "CIVIC_BACKLOG_LATER_MONTH_PENALTY",
}

// PipelineConfig holds the scoring and verification policy.
type PipelineConfig struct {
	VerificationThreshold float64        `toml:"verification_threshold"`
	ResolutionPoints      int64          `toml:"resolution_points"`
	BaseScore             int64          `toml:"base_score"`
	MinNoteLength         int            `toml:"min_note_length"`
	GeocodeTimeout        string         `toml:"geocode_timeout"`
	ClassifyTimeout       string         `toml:"classify_timeout"`
	VerifyTimeout         string         `toml:"verify_timeout"`
	Backlog               backlog.Config `toml:"backlog"`
}

func (c *PipelineConfig) GeocodeTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.GeocodeTimeout)
	return d
}

func (c *PipelineConfig) ClassifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifyTimeout)
	return d
}

func (c *PipelineConfig) VerifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.VerifyTimeout)
	return d
}

// Options builds the issue pipeline options. imageURL links a storage key
// to a URL the vision service can fetch.
func (c *PipelineConfig) Options(imageURL func(string) string) issues.Options {
	return issues.Options{
		VerificationThreshold: c.VerificationThreshold,
		PointsPerResolution:   c.ResolutionPoints,
		MinNoteLength:         c.MinNoteLength,
		GeocodeTimeout:        c.GeocodeTimeoutDuration(),
		ClassifyTimeout:       c.ClassifyTimeoutDuration(),
		VerifyTimeout:         c.VerifyTimeoutDuration(),
		ImageURL:              imageURL,
	}
}

func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Backlog.Finalize(backlogEnv); err != nil {
		return fmt.Errorf("backlog: %w", err)
	}
	return nil
}

func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.VerificationThreshold != 0 {
		c.VerificationThreshold = overlay.VerificationThreshold
	}
	if overlay.ResolutionPoints != 0 {
		c.ResolutionPoints = overlay.ResolutionPoints
	}
	if overlay.BaseScore != 0 {
		c.BaseScore = overlay.BaseScore
	}
	if overlay.MinNoteLength != 0 {
		c.MinNoteLength = overlay.MinNoteLength
	}
	if overlay.GeocodeTimeout != "" {
		c.GeocodeTimeout = overlay.GeocodeTimeout
	}
	if overlay.ClassifyTimeout != "" {
		c.ClassifyTimeout = overlay.ClassifyTimeout
	}
	if overlay.VerifyTimeout != "" {
		c.VerifyTimeout = overlay.VerifyTimeout
	}
	c.Backlog.Merge(&overlay.Backlog)
}

func (c *PipelineConfig) loadDefaults() {
	if c.VerificationThreshold == 0 {
		c.VerificationThreshold = 0.75
	}
	if c.ResolutionPoints == 0 {
		c.ResolutionPoints = 10
	}
	if c.BaseScore == 0 {
		c.BaseScore = 10000
	}
	if c.MinNoteLength == 0 {
		c.MinNoteLength = 10
	}
	if c.GeocodeTimeout == "" {
		c.GeocodeTimeout = "5s"
	}
	if c.ClassifyTimeout == "" {
		c.ClassifyTimeout = "15s"
	}
	if c.VerifyTimeout == "" {
		c.VerifyTimeout = "30s"
	}
}

func (c *PipelineConfig) loadEnv() error {
	if v := os.Getenv(EnvPipelineVerificationThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPipelineVerificationThreshold, err)
		}
		c.VerificationThreshold = f
	}
	if v := os.Getenv(EnvPipelineResolutionPoints); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPipelineResolutionPoints, err)
		}
		c.ResolutionPoints = n
	}
	if v := os.Getenv(EnvPipelineBaseScore); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPipelineBaseScore, err)
		}
		c.BaseScore = n
	}
	if v := os.Getenv(EnvPipelineMinNoteLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPipelineMinNoteLength, err)
		}
		c.MinNoteLength = n
	}
	if v := os.Getenv(EnvPipelineGeocodeTimeout); v != "" {
		c.GeocodeTimeout = v
	}
	if v := os.Getenv(EnvPipelineClassifyTimeout); v != "" {
		c.ClassifyTimeout = v
	}
	if v := os.Getenv(EnvPipelineVerifyTimeout); v != "" {
		c.VerifyTimeout = v
	}
	return nil
}

func (c *PipelineConfig) validate() error {
	if c.VerificationThreshold <= 0 || c.VerificationThreshold > 1 {
		return fmt.Errorf("verification_threshold must be in (0, 1], got %v", c.VerificationThreshold)
	}
	if c.ResolutionPoints < 0 {
		return fmt.Errorf("resolution_points must not be negative")
	}
	if c.MinNoteLength < 0 {
		return fmt.Errorf("min_note_length must not be negative")
	}
	for name, v := range map[string]string{
		"geocode_timeout":  c.GeocodeTimeout,
		"classify_timeout": c.ClassifyTimeout,
		"verify_timeout":   c.VerifyTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
