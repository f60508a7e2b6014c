package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	state := &ThreadState{
		Key: NewThreadKey("user1", "main"),
		Messages: []Message{
			{Role: RoleUser, Content: "hello"},
		},
		Pending: &Approval{
			TurnID: NewTurnID(),
			UserID: "user1",
			Calls:  []ToolCall{{ID: "call_1", Name: "tariff_forecaster", Arguments: json.RawMessage(`{}`)}},
			Gated:  []string{"tariff_forecaster"},
		},
	}

	clone := state.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages = append(clone.Messages, Message{Role: RoleAssistant, Content: "reply"})
	clone.Pending.Calls[0].Name = "changed"
	clone.Pending.Gated[0] = "changed"

	assert.Equal(t, "hello", state.Messages[0].Content)
	assert.Len(t, state.Messages, 1)
	assert.Equal(t, "tariff_forecaster", state.Pending.Calls[0].Name)
	assert.Equal(t, "tariff_forecaster", state.Pending.Gated[0])
}

func TestAppendStampsTimestamps(t *testing.T) {
	state := &ThreadState{Key: NewThreadKey("user1", "main")}
	before := time.Now()

	state.Append(
		Message{Role: RoleUser, Content: "hi"},
		Message{Role: RoleAssistant, Content: "hello"},
	)

	require.Len(t, state.Messages, 2)
	for _, msg := range state.Messages {
		assert.False(t, msg.At.Before(before))
	}
	assert.False(t, state.UpdatedAt.Before(before))
}

func TestDefaultMemory(t *testing.T) {
	mem := DefaultMemory()

	assert.NotNil(t, mem.LastActions)
	assert.Empty(t, mem.LastActions)
	assert.NotNil(t, mem.KnownRisks)
	assert.Equal(t, "weekly", mem.Preferences["alert_frequency"])
	assert.Equal(t, "WhatsApp+PDF", mem.Preferences["format"])
}

func TestRecentActions(t *testing.T) {
	mem := UserMemory{LastActions: []string{"a", "b", "c", "d", "e"}}

	assert.Equal(t, []string{"c", "d", "e"}, mem.RecentActions(3))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, mem.RecentActions(10))
	assert.Empty(t, UserMemory{}.RecentActions(3))
}

func TestNewThreadKey(t *testing.T) {
	assert.Equal(t, ThreadKey("user1:main"), NewThreadKey("user1", "main"))
}
