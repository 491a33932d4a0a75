package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/smsledger/internal/utils"
)

// Timestamp keeps a client-supplied time exactly as received. Clients send
// either epoch milliseconds (number or string) or ISO-8601.
type Timestamp struct {
	Raw string
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Raw: strconv.FormatInt(t.UnixMilli(), 10)}
}

// IsSet reports whether the client supplied any value.
func (ts Timestamp) IsSet() bool {
	return ts.Raw != ""
}

// Time resolves the timestamp, falling back to now when it cannot be parsed.
func (ts Timestamp) Time(now time.Time) time.Time {
	t, _ := utils.ParseTimestamp(ts.Raw, now)
	return t
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		ts.Raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		ts.Raw = s
		return nil
	}
	// numbers and anything else are kept verbatim and resolved leniently
	ts.Raw = string(data)
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Raw == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(ts.Raw, 10, 64); err == nil {
		return []byte(ts.Raw), nil
	}
	return json.Marshal(ts.Raw)
}

// BatchMessage is one raw SMS as uploaded by a device.
type BatchMessage struct {
	Body   string    `json:"body"`
	Sender string    `json:"sender"`
	Date   Timestamp `json:"date"`
}

type BatchRequest struct {
	DeviceName        string         `json:"deviceName"`
	LastSyncTimestamp Timestamp      `json:"lastSyncTimestamp"`
	Messages          []BatchMessage `json:"messages"`
}

type SuccessItem struct {
	Index         int               `json:"index"`
	ExtractedData ParsedTransaction `json:"extractedData"`
	StoredID      uuid.UUID         `json:"storedId"`
}

type FailedItem struct {
	Index        int          `json:"index"`
	OriginalItem BatchMessage `json:"originalItem"`
	Reason       string       `json:"reason"`
}

// BatchReport is the partial-success result of one sync request.
// Counts are always derived from the two lists.
type BatchReport struct {
	Successful []SuccessItem `json:"successful"`
	Failed     []FailedItem  `json:"failed"`
}

type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

func NewBatchReport() *BatchReport {
	return &BatchReport{
		Successful: []SuccessItem{},
		Failed:     []FailedItem{},
	}
}

func (r *BatchReport) Summary() BatchSummary {
	return BatchSummary{
		Total:      len(r.Successful) + len(r.Failed),
		Successful: len(r.Successful),
		Failed:     len(r.Failed),
	}
}

func (r *BatchReport) AddSuccess(index int, data ParsedTransaction, id uuid.UUID) {
	r.Successful = append(r.Successful, SuccessItem{Index: index, ExtractedData: data, StoredID: id})
}

func (r *BatchReport) AddFailure(index int, item BatchMessage, reason string) {
	r.Failed = append(r.Failed, FailedItem{Index: index, OriginalItem: item, Reason: reason})
}
