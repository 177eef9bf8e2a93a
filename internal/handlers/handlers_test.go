package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{fmt.Errorf("%w: title is required", domainerrors.ErrInvalidInput), http.StatusBadRequest, `{"error":"invalid input: title is required"}`},
		{domainerrors.ErrUnauthenticated, http.StatusUnauthorized, `{"error":"authentication required"}`},
		{domainerrors.ErrInvalidCredentials, http.StatusUnauthorized, `{"error":"invalid credentials"}`},
		{fmt.Errorf("accept: %w", domainerrors.ErrUnauthorized), http.StatusForbidden, `{"error":"accept: not authorized"}`},
		{fmt.Errorf("answer 3: %w", domainerrors.ErrNotFound), http.StatusNotFound, `{"error":"answer 3: not found"}`},
		{domainerrors.ErrConstraintViolation, http.StatusConflict, `{"error":"constraint violation"}`},
		{fmt.Errorf("sum votes: %w: dial tcp", domainerrors.ErrStoreUnavailable), http.StatusServiceUnavailable, `{"error":"Service temporarily unavailable, please retry"}`},
		{errors.New("pq: syntax error"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestPathID(t *testing.T) {
	for raw, want := range map[string]int{"12": 12, "0": 0, "-4": 0, "x": 0} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		got, ok := pathID(c, "id")
		assert.Equal(t, want, got, raw)
		assert.Equal(t, want != 0, ok, raw)
		if !ok {
			assert.Equal(t, http.StatusBadRequest, w.Code)
		}
	}
}
