package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func TestTimelineRepository_Postgres(t *testing.T) {
	repo := NewTimelineRepository(testStore(t))
	at := time.Now().UTC().Add(-time.Minute).Truncate(time.Microsecond)

	for _, ev := range []domain.TimelineEvent{
		{WorkflowID: "res-1", Type: domain.TimelineReservationStarted, Occurred: at},
		{WorkflowID: "res-1", Type: domain.TimelineReservationStep, Reason: "DETAILS", Occurred: at},
		{WorkflowID: "res-1", Type: domain.TimelineReservationConfirmed},
		{WorkflowID: "co-1", Type: domain.TimelineCheckoutStarted, Occurred: at},
	} {
		require.NoError(t, repo.Append(ev))
	}

	events, err := repo.List("res-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.TimelineReservationStarted, events[0].Type)
	assert.Equal(t, "DETAILS", events[1].Reason)
	assert.Equal(t, domain.TimelineReservationConfirmed, events[2].Type)
	assert.True(t, events[0].Occurred.Equal(at))
	assert.Equal(t, "res-1", events[2].WorkflowID)

	assert.ErrorIs(t, repo.Append(domain.TimelineEvent{Type: domain.TimelineCheckoutStarted}), domain.ErrTimelineWorkflowRequired)

	empty, err := repo.List("unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
