// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ThreadKey string
type TurnID string
type CallID string

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewCallID() CallID {
	return CallID(uuid.New().String())
}

func NewThreadKey(parts ...string) ThreadKey {
	return ThreadKey(strings.Join(parts, ":"))
}
