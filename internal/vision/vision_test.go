package vision_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/internal/vision"
)

func newClient(t *testing.T, m *metrics.Metrics, handler http.HandlerFunc) *vision.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &vision.Config{BaseURL: srv.URL}
	require.NoError(t, cfg.Finalize(nil))
	return vision.New(cfg, srv.Client(), m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClassify(t *testing.T) {
	client := newClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://img/issues/1/a.jpg", body["imageUrl"])
		assert.Equal(t, "deep pothole", body["description"])

		io.WriteString(w, `{
			"success": true, "isValid": true, "issueType": "pothole", "confidence": 0.91,
			"modelVersion": "cnn-v3",
			"allPredictions": [
				{"className": "Potholes", "probability": 0.91, "issueType": "pothole"},
				{"className": "Cracks", "probability": 0.05}
			]
		}`)
	})

	c, err := client.Classify(context.Background(), "http://img/issues/1/a.jpg", "deep pothole")
	require.NoError(t, err)

	assert.Equal(t, "pothole", c.PredictedType)
	assert.Equal(t, 0.91, c.Confidence)
	assert.Equal(t, "cnn-v3", c.ModelVersion)
	require.Len(t, c.AllPredictions, 2)
	assert.Equal(t, "Cracks", c.AllPredictions[1].Type)
}

func TestClassifyInvalidImageHasNoType(t *testing.T) {
	client := newClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": true, "isValid": false, "issueType": "garbage", "confidence": 0.2}`)
	})

	c, err := client.Classify(context.Background(), "u", "")
	require.NoError(t, err)
	assert.Empty(t, c.PredictedType)
	assert.Equal(t, 0.2, c.Confidence)
}

func TestVerifyResolution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := newClient(t, m, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "before", body["beforeImageUrl"])
		assert.Equal(t, "after", body["afterImageUrl"])
		assert.Equal(t, "POTHOLE", body["issueType"])

		io.WriteString(w, `{"similarityScore": 0.42, "confidence": 0.9, "modelVersion": "siamese-v1"}`)
	})

	v, err := client.VerifyResolution(context.Background(), "before", "after", "POTHOLE")
	require.NoError(t, err)
	assert.Equal(t, 0.42, v.SimilarityScore)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, "siamese-v1", v.ModelVersion)

	assert.Equal(t, 1, testutil.CollectAndCount(m.CollaboratorDuration))
}

func TestVerifyResolutionFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"missing confidence", http.StatusOK, `{"similarityScore": 0.5}`},
		{"malformed", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.VerifyResolution(context.Background(), "b", "a", "GARBAGE")
			assert.ErrorIs(t, err, vision.ErrUnavailable)
		})
	}
}

func TestClassifyReportedFailure(t *testing.T) {
	client := newClient(t, nil, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "error": "model not loaded"}`)
	})

	_, err := client.Classify(context.Background(), "u", "")
	assert.ErrorIs(t, err, vision.ErrUnavailable)
}
