package webutil

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody ErrorBody
	}{
		{"http error", ErrConflict("Generation already in progress"), http.StatusConflict, ErrorBody{Error: "Generation already in progress"}},
		{"no rows", fmt.Errorf("project not found: %w", sql.ErrNoRows), http.StatusNotFound, ErrorBody{Error: "Resource not found"}},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrorBody{Error: "Internal Server Error"}},
		{
			"details",
			ErrInternalServerDetails("Generation failed", "chromium crashed", errors.New("chromium crashed")),
			http.StatusInternalServerError,
			ErrorBody{Error: "Generation failed", Details: "chromium crashed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := MakeHandler(func(http.ResponseWriter, *http.Request) error { return tt.err })
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, ContentTypeJSONUTF8, rec.Header().Get(HeaderContentType))
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestMakeHandler_ErrorAfterWrite(t *testing.T) {
	h := MakeHandler(func(w http.ResponseWriter, _ *http.Request) error {
		RespondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return errors.New("late failure")
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestMakeHandler_ContentTypeSetBeforeError(t *testing.T) {
	h := MakeHandler(func(w http.ResponseWriter, _ *http.Request) error {
		w.Header().Set(HeaderContentType, ContentTypeJSONUTF8)
		return ErrBadRequest("")
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Bad Request"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Format string `json:"format"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"format":"pdf"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "pdf", dst.Format)

	var httpErr *HTTPError
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &dst)
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{")), &dst)
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
