package dto

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-video-ai-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performError(t *testing.T, err error) (*httptest.ResponseRecorder, *ErrorResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	FromError(c, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, &body
}

func TestFromErrorMapsOrchestrationCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"entity busy", apperrors.ErrEntityBusy, http.StatusConflict, "4104"},
		{"ambiguous intent", apperrors.ErrAmbiguousIntent, http.StatusUnprocessableEntity, "4102"},
		{"no capability", apperrors.ErrNoCapabilityMatch, http.StatusUnprocessableEntity, "4103"},
		{"context unavailable", apperrors.ErrContextUnavailable, http.StatusServiceUnavailable, "4101"},
		{"scene missing", apperrors.ErrSceneNotFound, http.StatusNotFound, "3002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := performError(t, tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.ErrorCode)
		})
	}
}

func TestFromErrorHidesInternalDetail(t *testing.T) {
	w, body := performError(t, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body.Message, assert.AnError.Error())
}

func TestFromErrorCarriesDetail(t *testing.T) {
	_, body := performError(t, apperrors.ErrNoCapabilityMatch.WithDetail("intent classification timed out"))
	require.NotNil(t, body.Error)
	assert.Equal(t, "intent classification timed out", body.Error.Details)
}
