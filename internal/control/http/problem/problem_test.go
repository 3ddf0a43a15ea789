// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/timeshift/internal/log"
)

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v2/epg/ch-1/program", nil)
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusBadRequest, "exposure/bad_request", "Bad Request", "INVALID_TIME", "time must be an integer", map[string]any{
		"param":  "time",
		"status": 999,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TIME", body["code"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Equal(t, "time", body["param"])
	assert.Equal(t, "req-1", body[JSONKeyRequestID])
	assert.Equal(t, "/v2/epg/ch-1/program", body["instance"])
}

func TestWrite_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusNotFound, "exposure/not_found", "Not Found", "NOT_FOUND", "", nil)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	_, ok := body[JSONKeyRequestID]
	assert.False(t, ok)
	_, ok = body["detail"]
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, httptest.NewRequest(http.MethodGet, "/v2/x", nil), http.StatusBadRequest, "exposure/bad_request", "Bad Request", "INVALID_TIME", "nope", map[string]any{"param": "time"})

	p, ok := Parse(rec.Header().Get("Content-Type"), rec.Body.Bytes())
	require.True(t, ok)
	assert.Equal(t, "INVALID_TIME", p.Code)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "nope", p.Detail)
	assert.Equal(t, "/v2/x", p.Instance)
	assert.Equal(t, "time", p.Extensions["param"])
}

func TestParse_RejectsOtherContentTypes(t *testing.T) {
	_, ok := Parse("application/json", []byte(`{"code":"X"}`))
	assert.False(t, ok)
	_, ok = Parse(ContentType+"; charset=utf-8", []byte(`not json`))
	assert.False(t, ok)
	p, ok := Parse(ContentType+"; charset=utf-8", []byte(`{"code":"X","status":404}`))
	require.True(t, ok)
	assert.Equal(t, 404, p.Status)
}
