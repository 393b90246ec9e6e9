package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mitienda/mitienda/internal/shared"
)

func TestSentinelsSurfaceSpecificMessages(t *testing.T) {
	require.Equal(t, "The requested item could not be found.", shared.UserSafeMessage(ErrNotFound))
	require.Equal(t, "You do not have permission to do that.", shared.UserSafeMessage(ErrForbidden))
	require.Equal(t, "That action is not possible in the current state.", shared.UserSafeMessage(ErrInvalidState))
}

func TestTransitionsEnforceLifecycle(t *testing.T) {
	require.True(t, CanTransition(StatusPending, StatusProcessing))
	require.True(t, CanTransition(StatusPending, StatusCanceled))
	require.False(t, CanTransition(StatusPending, StatusShipped))
	require.False(t, CanTransition(StatusShipped, StatusCanceled))
	require.True(t, CanTransition(StatusShipped, StatusRefunded))
	require.Empty(t, TransitionsFrom(StatusRefunded))
}
