package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postcontest/src/core/domain"
	"postcontest/src/core/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func respond(t *testing.T, report *usecase.Report, err error) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	respondReport(c, reportBody(report), err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestRespondReport(t *testing.T) {
	report := &usecase.Report{Operation: usecase.OpRebuild, CompetitionID: 3, Created: 2}
	partial := &domain.PartialFailureError{
		Operation: usecase.OpRebuild,
		Failures:  []domain.ParticipantFailure{{ParticipantID: 8, Err: domain.NewNotFoundError("post")}},
	}
	report.Failures = partial.Failures

	t.Run("clean run", func(t *testing.T) {
		code, body := respond(t, report, nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(2), body["data"].(map[string]any)["changes"])
	})

	t.Run("partial failure keeps the report", func(t *testing.T) {
		code, body := respond(t, report, partial)
		assert.Equal(t, http.StatusMultiStatus, code)
		failures := body["data"].(map[string]any)["failures"].([]any)
		require.Len(t, failures, 1)
		f := failures[0].(map[string]any)
		assert.Equal(t, float64(8), f["participant_id"])
		assert.Equal(t, "NOT_FOUND", f["code"])
	})

	t.Run("interrupted", func(t *testing.T) {
		interrupted := &usecase.Report{Operation: usecase.OpSync, Interrupted: true}
		code, body := respond(t, interrupted, context.Canceled)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "INTERRUPTED", body["error"].(map[string]any)["code"])
		assert.Equal(t, true, body["data"].(map[string]any)["interrupted"])
	})

	t.Run("no report", func(t *testing.T) {
		code, body := respond(t, nil, domain.NewError(domain.ErrReconciliationInProgress, "busy"))
		assert.Equal(t, http.StatusLocked, code)
		assert.Equal(t, "RECONCILIATION_IN_PROGRESS", body["error"].(map[string]any)["code"])
	})

	t.Run("unexpected error", func(t *testing.T) {
		code, body := respond(t, nil, errors.New("db down"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]any)["code"])
	})
}
