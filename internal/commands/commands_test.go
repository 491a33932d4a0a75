package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := run(t, "parse", "إضافة تحويل مبلغ 1,250.75 من أحمد", "--date", "2025-01-05T08:00:00Z")
	require.NoError(t, err)

	var parsed struct {
		Amount string `json:"amount"`
		Type   string `json:"type"`
		Date   string `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "1250.75", parsed.Amount)
	assert.Equal(t, "received", parsed.Type)
	assert.Equal(t, "2025-01-05T08:00:00Z", parsed.Date)
}

func TestParseCommand_NotATransaction(t *testing.T) {
	_, err := run(t, "parse", "رمز التحقق 4411")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not extract required fields")
}

func TestQueryCommands_RequireOwnerAndDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "stats")
	assert.Error(t, err)

	_, err = run(t, "devices", "--owner", "owner-1", "--database-url", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")

	_, err = run(t, "stats", "--owner", "owner-1", "--timezone", "Mars/Olympus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}
