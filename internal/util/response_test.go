package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err        error
		wantStatus int
		wantReason string
	}{
		{fmt.Errorf("round 3: %w", ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("attempt already exists: %w", ErrConflict), http.StatusConflict, "conflict"},
		{fmt.Errorf("round is not active: %w", ErrInvalidState), http.StatusConflict, "invalid_state"},
		{fmt.Errorf("unknown violation: %w", ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{fmt.Errorf("not an event admin: %w", ErrForbidden), http.StatusForbidden, "forbidden"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.Equal(t, tt.wantReason, resp.Reason)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", resp.Message)
			}
		})
	}
}
