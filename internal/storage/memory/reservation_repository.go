package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

type reservationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Reservation
}

// NewReservationRepository создаёт in-memory хранилище броней.
func NewReservationRepository() domain.ReservationRepository {
	return &reservationRepositoryInMemory{items: make(map[string]domain.Reservation)}
}

// Save создаёт или перезаписывает бронь по ID заявки.
func (r *reservationRepositoryInMemory) Save(reservation domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[reservation.Request.ID] = reservation
	return nil
}

func (r *reservationRepositoryInMemory) Get(id string) (domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reservation, ok := r.items[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return reservation, nil
}

// ListByDate возвращает брони на календарный день day, по возрастанию времени.
func (r *reservationRepositoryInMemory) ListByDate(day time.Time) ([]domain.Reservation, error) {
	target := domain.DayOf(day)

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Reservation, 0)
	for _, reservation := range r.items {
		if !domain.DayOf(reservation.Request.Date).Equal(target) {
			continue
		}
		result = append(result, reservation)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Request.TimeSlot != result[j].Request.TimeSlot {
			return result[i].Request.TimeSlot < result[j].Request.TimeSlot
		}
		return result[i].Request.ID < result[j].Request.ID
	})

	return result, nil
}

var _ domain.ReservationRepository = (*reservationRepositoryInMemory)(nil)
