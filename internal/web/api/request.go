package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CreateScanRequest is the JSON body for POST /api/v1/scans.
type CreateScanRequest struct {
	Targets     []string          `json:"targets"`
	Target      string            `json:"target"`
	Tools       []string          `json:"tools"`
	Profile     string            `json:"profile"`
	CustomArgs  map[string]string `json:"custom_args"`
	Concurrency int               `json:"concurrency"`
	Timeout     string            `json:"timeout"`
}

// decodeCreateScanRequest reads and validates the request body. The single
// "target" field is folded into Targets.
func decodeCreateScanRequest(r *http.Request) (*CreateScanRequest, error) {
	var req CreateScanRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if t := strings.TrimSpace(req.Target); t != "" {
		req.Targets = append([]string{t}, req.Targets...)
	}
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("target is required")
	}

	if req.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be non-negative")
	}

	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", req.Timeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("timeout must be non-negative")
		}
	}

	return &req, nil
}

// allTools reports whether the request asks for every registered tool.
func (r *CreateScanRequest) allTools() bool {
	return len(r.Tools) == 0 || (len(r.Tools) == 1 && strings.EqualFold(r.Tools[0], "all"))
}
