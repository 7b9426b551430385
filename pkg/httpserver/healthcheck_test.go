package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingd/pkg/httpserver"
	"github.com/dmitrymomot/billingd/pkg/logger"
)

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpserver.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "postgres", Probe: func(context.Context) error { return nil }}
	down := httpserver.Check{Name: "redis", Probe: func(context.Context) error { return errors.New("refused") }}

	t.Run("all checks pass", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(logger.Discard(), ok)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, rec.Body.String())
	})

	t.Run("failing check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpserver.ReadinessHandler(logger.Discard(), ok, down)(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "failed", body.Checks["redis"])
		assert.Equal(t, "ok", body.Checks["postgres"])
	})
}
