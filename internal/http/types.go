package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Record is one received log entry, as rendered by the json format.
type Record map[string]any

const (
	recordLevel     = "level"
	recordMessage   = "message"
	recordTimestamp = "timestamp"

	// sourceTimestamp holds the sender's timestamp; the receiving
	// pipeline stamps its own.
	sourceTimestamp = "source_timestamp"

	defaultRecordLevel = "info"
)

// convert splits r into a level name, a message and the remaining fields
// in key order.
func (r Record) convert() (string, string, []zap.Field, error) {
	level := defaultRecordLevel
	if v, ok := r[recordLevel]; ok {
		s, ok := v.(string)
		if !ok {
			return "", "", nil, fmt.Errorf("level must be a string, got %T", v)
		}
		level = strings.ToLower(strings.TrimSpace(s))
	}

	var msg string
	switch v := r[recordMessage].(type) {
	case nil:
	case string:
		msg = v
	default:
		msg = fmt.Sprint(v)
	}

	keys := make([]string, 0, len(r))
	for k := range r {
		if k == recordLevel || k == recordMessage {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		key := k
		if k == recordTimestamp {
			key = sourceTimestamp
		}
		fields = append(fields, zap.Any(key, r[k]))
	}
	return level, msg, fields, nil
}

// decodeRecords reads a stream of JSON values, each a record or an array
// of records.
func decodeRecords(body io.Reader) ([]Record, error) {
	dec := json.NewDecoder(body)

	var records []Record
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var batch []Record
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, err
			}
			records = append(records, batch...)
			continue
		}
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
}

// IngestResponse is the response body for POST /api/v1/logs.
type IngestResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string `json:"content"`
	FindingsCount int    `json:"findings_count"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
