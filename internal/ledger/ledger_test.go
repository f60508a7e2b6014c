package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/finagent/internal/types"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	assert.Equal(t, types.StatusFrozen, c.Classify("send_whatsapp_alert"))
	assert.Equal(t, types.StatusFrozen, c.Classify("gst_draft_generator"))
	assert.Equal(t, types.StatusFrozen, c.Classify("GST_Reconciler"))
	assert.Equal(t, types.StatusSuccess, c.Classify("unit_economics_calculator"))
	assert.Equal(t, types.StatusSuccess, c.Classify("gpt-4o"))
}

func TestClassifyCustomMarkers(t *testing.T) {
	c := NewClassifier([]string{"payout"})

	assert.Equal(t, types.StatusFrozen, c.Classify("initiate_payout"))
	assert.Equal(t, types.StatusSuccess, c.Classify("send_whatsapp_alert"))
}

func TestRecordStampsEntry(t *testing.T) {
	l := NewFileLedger(t.TempDir(), nil)

	entry := &types.AuditEntry{
		UserID: "user1",
		Step:   "execute_tool",
		Tool:   "gst_draft_generator",
		Input:  json.RawMessage(`{"period":"2026-07"}`),
		Output: json.RawMessage(`"ok"`),
	}
	require.NoError(t, l.Record(context.Background(), entry))

	assert.True(t, strings.HasPrefix(entry.ID, "user1_"))
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, types.StatusFrozen, entry.Status)
}

func TestFrozenRegardlessOfOutcome(t *testing.T) {
	l := NewFileLedger(t.TempDir(), nil)

	entry := &types.AuditEntry{
		UserID: "user1",
		Step:   "execute_tool",
		Tool:   "send_whatsapp_alert",
		Output: json.RawMessage(`"{\"error\":\"gateway down\"}"`),
	}
	require.NoError(t, l.Record(context.Background(), entry))
	assert.Equal(t, types.StatusFrozen, entry.Status)
}

func TestListFiltersByUser(t *testing.T) {
	l := NewFileLedger(t.TempDir(), nil)
	ctx := context.Background()

	for _, userID := range []string{"alice", "bob", "alice"} {
		require.NoError(t, l.Record(ctx, &types.AuditEntry{
			UserID: userID,
			Step:   "orchestrate",
			Tool:   "gpt-4o",
			Input:  json.RawMessage(`""`),
			Output: json.RawMessage(`""`),
		}))
	}

	entries, err := l.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "alice", entry.UserID)
	}

	none, err := l.List(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListOnEmptyLedger(t *testing.T) {
	l := NewFileLedger(t.TempDir(), nil)

	entries, err := l.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
