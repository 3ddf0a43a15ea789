// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package problem reads and writes RFC 7807 problem responses.
package problem

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/ManuGH/timeshift/internal/log"
)

const (
	HeaderRequestID  = "X-Request-ID"
	JSONKeyRequestID = "requestId"
	ContentType      = "application/problem+json"
)

// Problem is an RFC 7807 body. Code is a stable UPPER_SNAKE identifier
// (INVALID_TIME), Type a namespaced category (exposure/bad_request).
// Extensions are flattened into the top level of the JSON object.
type Problem struct {
	Type       string
	Title      string
	Status     int
	Code       string
	Detail     string
	Instance   string
	RequestID  string
	Extensions map[string]any
}

var reserved = map[string]bool{
	"type": true, "title": true, "status": true, "code": true,
	"detail": true, "instance": true, JSONKeyRequestID: true,
}

func (p Problem) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 8+len(p.Extensions))
	for k, v := range p.Extensions {
		if reserved[k] {
			log.L().Warn().Str("key", k).Str("problem_type", p.Type).Msg("ignoring reserved key in problem extensions")
			continue
		}
		m[k] = v
	}
	m["type"] = p.Type
	m["title"] = p.Title
	m["status"] = p.Status
	m["code"] = p.Code
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	if p.RequestID != "" {
		m[JSONKeyRequestID] = p.RequestID
	}
	return json.Marshal(m)
}

func (p *Problem) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	fields := map[string]any{
		"type": &p.Type, "title": &p.Title, "status": &p.Status, "code": &p.Code,
		"detail": &p.Detail, "instance": &p.Instance, JSONKeyRequestID: &p.RequestID,
	}
	for k, raw := range m {
		if dst, ok := fields[k]; ok {
			if err := json.Unmarshal(raw, dst); err != nil {
				return err
			}
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if p.Extensions == nil {
			p.Extensions = make(map[string]any)
		}
		p.Extensions[k] = v
	}
	return nil
}

// Write fills Instance and RequestID from r and sends a problem response.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, code, detail string, extra map[string]any) {
	p := Problem{Type: problemType, Title: title, Status: status, Code: code, Detail: detail, Extensions: extra}
	if r != nil {
		p.Instance = r.URL.EscapedPath()
		p.RequestID = log.RequestIDFromContext(r.Context())
	}
	if p.RequestID == "" {
		p.RequestID = w.Header().Get(HeaderRequestID)
	}
	Send(w, p)
}

func Send(w http.ResponseWriter, p Problem) {
	if p.RequestID != "" {
		w.Header().Set(HeaderRequestID, p.RequestID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)

	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.L().Error().
			Err(err).
			Str("type", p.Type).
			Int("status", p.Status).
			Msg("encode problem response")
	}
}

// Parse decodes body when contentType is a problem document.
func Parse(contentType string, body []byte) (*Problem, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != ContentType {
		return nil, false
	}
	var p Problem
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, false
	}
	return &p, true
}
