package issues_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/civic/internal/issues"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   issues.Status
		action issues.Action
		want   issues.Status
		ok     bool
	}{
		{issues.Open, issues.ActionRespond, issues.Responded, true},
		{issues.Disputed, issues.ActionRespond, issues.Responded, true},
		{issues.Responded, issues.ActionRespond, "", false},
		{issues.Verified, issues.ActionRespond, "", false},
		{issues.NeedsManualReview, issues.ActionRespond, "", false},

		{issues.Responded, issues.ActionVerify, issues.Verified, true},
		{issues.Open, issues.ActionVerify, "", false},
		{issues.Disputed, issues.ActionVerify, "", false},

		{issues.Responded, issues.ActionReview, issues.NeedsManualReview, true},
		{issues.Verified, issues.ActionReview, "", false},

		{issues.Verified, issues.ActionDispute, issues.Disputed, true},
		{issues.NeedsManualReview, issues.ActionDispute, issues.Disputed, true},
		{issues.Open, issues.ActionDispute, "", false},
		{issues.Responded, issues.ActionDispute, "", false},
		{issues.Disputed, issues.ActionDispute, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := issues.Next(tt.from, tt.action)
			if !tt.ok {
				assert.ErrorIs(t, err, issues.ErrStateConflict)
				assert.Contains(t, err.Error(), string(tt.from))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextUnknownAction(t *testing.T) {
	_, err := issues.Next(issues.Open, issues.Action("close"))
	assert.ErrorIs(t, err, issues.ErrValidation)
}

// Only a dispute leaves VERIFIED.
func TestVerifiedOnlyLeavesByDispute(t *testing.T) {
	for _, a := range []issues.Action{issues.ActionRespond, issues.ActionVerify, issues.ActionReview} {
		_, err := issues.Next(issues.Verified, a)
		assert.ErrorIs(t, err, issues.ErrStateConflict, "action %s", a)
	}
}

func TestParseIssueType(t *testing.T) {
	tests := []struct {
		label string
		want  issues.IssueType
	}{
		{"pothole", issues.Pothole},
		{" Road Damage ", issues.RoadDamage},
		{"water-supply", issues.WaterSupply},
		{"illegal_dumping", issues.Garbage},
		{"graffiti", issues.Other},
		{"", issues.Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, issues.ParseIssueType(tt.label))
		})
	}
}

func TestOutcomeValidate(t *testing.T) {
	assert.NoError(t, issues.Outcome{SimilarityScore: 0, Confidence: 1}.Validate())
	assert.ErrorIs(t, issues.Outcome{Confidence: 1.2}.Validate(), issues.ErrValidation)
	assert.ErrorIs(t, issues.Outcome{Confidence: 0.5, SimilarityScore: -0.1}.Validate(), issues.ErrValidation)
}
