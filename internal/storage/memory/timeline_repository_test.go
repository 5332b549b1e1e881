package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/storage/memory"
)

func TestTimelineRepository_OrdersByTimeThenInsertion(t *testing.T) {
	repo := memory.NewTimelineRepository()
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, ev := range []domain.TimelineEvent{
		{WorkflowID: "co-1", Type: domain.TimelineCheckoutSubmitted, Occurred: base.Add(time.Second)},
		{WorkflowID: "co-1", Type: domain.TimelineCheckoutStarted, Occurred: base},
		{WorkflowID: "co-1", Type: domain.TimelineCheckoutCompleted, Occurred: base.Add(time.Second)},
		{WorkflowID: "res-1", Type: domain.TimelineReservationStarted, Occurred: base},
	} {
		require.NoError(t, repo.Append(ev))
	}

	list, err := repo.List("co-1")
	require.NoError(t, err)

	types := make([]string, 0, len(list))
	for _, ev := range list {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		domain.TimelineCheckoutStarted,
		domain.TimelineCheckoutSubmitted,
		domain.TimelineCheckoutCompleted,
	}, types)
}

func TestTimelineRepository_ListIsCopy(t *testing.T) {
	repo := memory.NewTimelineRepository()
	require.NoError(t, repo.Append(domain.TimelineEvent{WorkflowID: "res-1", Type: domain.TimelineReservationStarted}))

	list, err := repo.List("res-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Occurred.IsZero(), "missing time must be stamped")

	list[0].Type = "mutated"
	again, err := repo.List("res-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TimelineReservationStarted, again[0].Type)
}

func TestTimelineRepository_EmptyAndInvalid(t *testing.T) {
	repo := memory.NewTimelineRepository()

	list, err := repo.List("unknown")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	assert.ErrorIs(t, repo.Append(domain.TimelineEvent{Type: domain.TimelineCheckoutStarted}), domain.ErrTimelineWorkflowRequired)
}
