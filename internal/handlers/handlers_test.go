package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhvinik1/smsledger/internal/repositories"
	"github.com/prudhvinik1/smsledger/internal/services"
)

const testSecret = "handler-secret"

type testEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	return newLoggedTestServer(t, zerolog.Nop())
}

func newLoggedTestServer(t *testing.T, log zerolog.Logger) http.Handler {
	t.Helper()
	ledger := repositories.NewMemoryLedgerRepository(time.UTC)
	detector := services.NewDuplicateDetector(ledger, nil, zerolog.Nop())

	return NewRouter(RouterConfig{
		Log:      log,
		Verifier: services.NewTokenVerifier(testSecret),
		Ingest:   services.NewIngestService(ledger, detector, true, zerolog.Nop()),
		Ledger:   services.NewLedgerService(ledger, nil, 20, zerolog.Nop()),
		Stats:    services.NewStatsService(ledger),
		Location: time.UTC,
	})
}

func tokenFor(t *testing.T, owner, role string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": owner, "exp": time.Now().Add(time.Hour).Unix()}
	if role != "" {
		claims["role"] = role
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func batchBody(date time.Time) map[string]any {
	return map[string]any{
		"deviceName":        "pixel-7",
		"lastSyncTimestamp": time.Now().UnixMilli(),
		"messages": []map[string]any{
			{"body": "تم إضافة تحويل مبلغ 150.00 إلى حسابك", "sender": "AlRajhi", "date": date.UnixMilli()},
			{"body": "رصيدك الحالي 900", "sender": "AlRajhi", "date": date.UnixMilli()},
			{"body": "خصم مبلغ SAR 25.50 من بطاقتك", "sender": "STC", "date": date.Format(time.RFC3339)},
		},
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec, env := do(t, h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSuccess, env.Status)
}

func TestHealth_Unhealthy(t *testing.T) {
	h := NewRouter(RouterConfig{
		Log:         zerolog.Nop(),
		Verifier:    services.NewTokenVerifier(testSecret),
		HealthCheck: func(ctx context.Context) error { return errors.New("pool closed") },
	})

	rec, env := do(t, h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusFailed, env.Status)
}

func TestAuthentication(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "invalid", token: "abc.def.ghi"},
		{name: "unknown role", token: tokenFor(t, "owner-1", "root")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodGet, "/api/devices", tt.token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, StatusFailed, env.Status)
		})
	}
}

func TestSyncBatch_PartialSuccess(t *testing.T) {
	h := newTestServer(t)
	token := tokenFor(t, "owner-1", "normal")
	date := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	rec, env := do(t, h, http.MethodPost, "/api/sync/batch", token, batchBody(date))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Summary struct {
			Total      int `json:"total"`
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
		} `json:"summary"`
		Successful []struct {
			Index         int `json:"index"`
			ExtractedData struct {
				Amount string `json:"amount"`
				Type   string `json:"type"`
				Sender string `json:"sender"`
			} `json:"extractedData"`
			StoredID string `json:"storedId"`
		} `json:"successful"`
		Failed []struct {
			Index        int            `json:"index"`
			Reason       string         `json:"reason"`
			OriginalItem map[string]any `json:"originalItem"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, 3, data.Summary.Total)
	assert.Equal(t, 2, data.Summary.Successful)
	assert.Equal(t, 1, data.Summary.Failed)

	require.Len(t, data.Successful, 2)
	assert.Equal(t, 0, data.Successful[0].Index)
	assert.Equal(t, "150", data.Successful[0].ExtractedData.Amount)
	assert.Equal(t, "received", data.Successful[0].ExtractedData.Type)
	assert.Equal(t, "AlRajhi", data.Successful[0].ExtractedData.Sender)
	assert.NotEmpty(t, data.Successful[0].StoredID)
	assert.Equal(t, 2, data.Successful[1].Index)
	assert.Equal(t, "sent", data.Successful[1].ExtractedData.Type)

	require.Len(t, data.Failed, 1)
	assert.Equal(t, 1, data.Failed[0].Index)
	assert.Equal(t, "رصيدك الحالي 900", data.Failed[0].OriginalItem["body"])

	// replaying the batch stores nothing new
	_, env = do(t, h, http.MethodPost, "/api/sync/batch", token, batchBody(date))
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 0, data.Summary.Successful)
	assert.Equal(t, 3, data.Summary.Failed)
	assert.Equal(t, services.ReasonDuplicate, data.Failed[0].Reason)
}

func TestSyncBatch_BadRequests(t *testing.T) {
	h := newTestServer(t)
	token := tokenFor(t, "owner-1", "")

	req := httptest.NewRequest(http.MethodPost, "/api/sync/batch", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/sync/batch", token, map[string]any{"messages": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, StatusFailed, env.Status)
}

func TestParseMessage(t *testing.T) {
	h := newTestServer(t)
	token := tokenFor(t, "owner-1", "business")
	body := map[string]any{
		"messageText": "إضافة تحويل مبلغ 75 من محمد",
		"date":        "2025-02-14T10:00:00Z",
	}

	rec, env := do(t, h, http.MethodPost, "/api/messages/parse", token, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, StatusSuccess, env.Status)

	rec, env = do(t, h, http.MethodPost, "/api/messages/parse", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, StatusFailed, env.Status)

	rec, _ = do(t, h, http.MethodPost, "/api/messages/parse", token, map[string]any{"messageText": "hello"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/messages/parse", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/api/devices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var devices []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &devices))
	require.Len(t, devices, 1)
	assert.Equal(t, services.LegacyDeviceName("owner-1"), devices[0].Name)
}

func TestLedgerQueries(t *testing.T) {
	h := newTestServer(t)
	token := tokenFor(t, "owner-1", "normal")
	date := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	rec, _ := do(t, h, http.MethodPost, "/api/sync/batch", token, batchBody(date))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("recent", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/transactions/recent?limit=1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var txs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &txs))
		assert.Len(t, txs, 1)

		rec, _ = do(t, h, http.MethodGet, "/api/transactions/recent?limit=ten", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("monthly", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/transactions/monthly?month=3&year=2025", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var txs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &txs))
		assert.Len(t, txs, 2)

		rec, _ = do(t, h, http.MethodGet, "/api/transactions/monthly?month=2&year=2025", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = do(t, h, http.MethodGet, "/api/transactions/monthly?month=14&year=2025", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("statistics", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/statistics/senders", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var stats struct {
			TopUsed []struct {
				Sender           string `json:"sender"`
				TransactionCount int    `json:"transactionCount"`
			} `json:"topUsed"`
			UsageBreakdown map[string]string `json:"usageBreakdown"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &stats))
		require.Len(t, stats.TopUsed, 2)
		assert.Equal(t, "AlRajhi", stats.TopUsed[0].Sender)
		assert.Equal(t, "50", stats.UsageBreakdown["STC"])
	})

	t.Run("device transactions", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/api/devices/pixel-7/transactions", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var txs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &txs))
		assert.Len(t, txs, 2)

		rec, _ = do(t, h, http.MethodGet, "/api/devices/ipad/transactions", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other owners see nothing", func(t *testing.T) {
		other := tokenFor(t, "owner-2", "normal")
		rec, env := do(t, h, http.MethodGet, "/api/transactions/recent", other, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var txs []map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &txs))
		assert.Empty(t, txs)
	})
}

func TestDeleteLedger(t *testing.T) {
	h := newTestServer(t)
	token := tokenFor(t, "owner-1", "normal")
	rec, _ := do(t, h, http.MethodPost, "/api/sync/batch", token, batchBody(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodDelete, "/api/ledger", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSuccess, env.Status)

	rec, _ = do(t, h, http.MethodDelete, "/api/ledger", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteLedger_LogsWithOwner(t *testing.T) {
	var buf bytes.Buffer
	h := newLoggedTestServer(t, zerolog.New(&buf))
	token := tokenFor(t, "owner-9", "normal")
	rec, _ := do(t, h, http.MethodPost, "/api/sync/batch", token, batchBody(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)))
	require.Equal(t, http.StatusOK, rec.Code)
	buf.Reset()

	rec, _ = do(t, h, http.MethodDelete, "/api/ledger", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == "Ledger deleted" {
			deleted = entry
		}
	}
	require.NotNil(t, deleted, buf.String())
	assert.Equal(t, "owner-9", deleted["owner"])
	assert.Equal(t, "info", deleted["level"])
}
