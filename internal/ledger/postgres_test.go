package ledger

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Confidence values are strings like "92%", so the column must be TEXT or
// every insert fails the integer coercion and the audit trail is lost.
func TestLedgerTableConfidenceColumnIsText(t *testing.T) {
	col := regexp.MustCompile(`confidence\s+(\w+)`).FindStringSubmatch(createLedgerTableSQL)
	require.Len(t, col, 2)
	assert.Equal(t, "TEXT", col[1])
}
