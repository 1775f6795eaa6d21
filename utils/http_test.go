package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteOK(w, map[string]string{"text": "4"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "4", dataMap["text"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name        string
		write       func(w http.ResponseWriter) error
		wantStatus  int
		wantError   string
		wantMessage string
	}{
		{
			name:        "bad request",
			write:       func(w http.ResponseWriter) error { return WriteBadRequest(w, "Validation failed", nil) },
			wantStatus:  http.StatusBadRequest,
			wantError:   "bad_request",
			wantMessage: "Validation failed",
		},
		{
			name:        "unauthorized default message",
			write:       func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			wantStatus:  http.StatusUnauthorized,
			wantError:   "unauthorized",
			wantMessage: "Authentication required",
		},
		{
			name:        "not found",
			write:       func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantStatus:  http.StatusNotFound,
			wantError:   "not_found",
			wantMessage: "Resource not found",
		},
		{
			name:        "internal",
			write:       func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			wantStatus:  http.StatusInternalServerError,
			wantError:   "internal_error",
			wantMessage: "Internal server error",
		},
		{
			name:        "bad gateway",
			write:       func(w http.ResponseWriter) error { return WriteBadGateway(w, "", nil) },
			wantStatus:  http.StatusBadGateway,
			wantError:   "bad_gateway",
			wantMessage: "Upstream provider failed",
		},
		{
			name:        "service unavailable with code",
			write:       func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "no_candidates", "nothing to try", nil) },
			wantStatus:  http.StatusServiceUnavailable,
			wantError:   "no_candidates",
			wantMessage: "nothing to try",
		},
		{
			name:       "service unavailable default code",
			write:      func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "", "", nil) },
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "service_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantMessage, response.Message)
		})
	}
}

func TestWriteBadGateway_Details(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"last_provider": "gemini"}

	require.NoError(t, WriteBadGateway(w, "exhausted", details))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "gemini", response.Details["last_provider"])
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=0", 1},
		{"limit=1000", 100},
		{"limit=abc", 20},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
			assert.Equal(t, tt.want, QueryInt(r, "limit", 20, 1, 100))
		})
	}
}
