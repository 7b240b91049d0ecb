package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	require.NoError(t, Guard(nil, "farm"))

	pauses := NewPauseSet("Farm")
	require.ErrorIs(t, Guard(pauses, "farm"), ErrModulePaused)
	require.NoError(t, Guard(pauses, "bank"))

	pauses.Set("farm", false)
	require.NoError(t, Guard(pauses, "farm"))
}
