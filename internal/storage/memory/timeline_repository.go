package memory

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

type timelineRepository struct {
	mu        sync.RWMutex
	workflows map[string][]domain.TimelineEvent
	now       func() time.Time
}

func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepository{
		workflows: make(map[string][]domain.TimelineEvent),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Append вставляет событие после всех событий с тем же или более ранним
// временем, так что равные по времени события идут в порядке добавления.
func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if event.WorkflowID == "" {
		return domain.ErrTimelineWorkflowRequired
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.workflows[event.WorkflowID]
	at := sort.Search(len(events), func(i int) bool {
		return events[i].Occurred.After(event.Occurred)
	})
	r.workflows[event.WorkflowID] = slices.Insert(events, at, event)
	return nil
}

func (r *timelineRepository) List(workflowID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := slices.Clone(r.workflows[workflowID])
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
