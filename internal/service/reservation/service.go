package reservation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
	"github.com/vladislavdragonenkov/restaurant/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/restaurant/internal/metrics"
	"github.com/vladislavdragonenkov/restaurant/internal/service/workflow"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает запись метрик.
func WithMetrics(m *metrics.WorkflowMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRepository сохраняет подтверждённые брони.
func WithRepository(repo domain.ReservationRepository) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithJournal подключает outbox и timeline.
func WithJournal(journal *workflow.Journal) Option {
	return func(s *Service) {
		s.journal = journal
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// DetailsInput изменения шага Details. Nil-поля не меняются.
// Сначала применяется сдвиг даты, затем выбор времени.
type DetailsInput struct {
	PartySize *int
	ShiftDays int
	TimeSlot  *string
}

// ContactInput поля шага ContactInfo.
type ContactInput struct {
	Name  string
	Email string
	Phone string
	Notes string
}

type instance struct {
	mu          sync.Mutex
	reservation domain.Reservation
	summary     string
	notifyURL   string
}

// Snapshot состояние мастера для отображения.
type Snapshot struct {
	Reservation domain.Reservation
	CanContinue bool
	CanConfirm  bool
	// CanShiftBack ложно, когда выбран сегодняшний день.
	CanShiftBack    bool
	Summary         string
	NotificationURL string
}

// Service управляет мастерами бронирования.
type Service struct {
	cfg      Config
	repo     domain.ReservationRepository
	journal  *workflow.Journal
	registry *workflow.Registry[*instance]
	metrics  *metrics.WorkflowMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис бронирования.
func NewService(cfg Config, opts ...Option) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if strings.TrimSpace(cfg.Destination) == "" {
		cfg.Destination = DefaultDestination
	}
	s := &Service{
		cfg:    cfg,
		logger: log.WithField("component", "reservation-service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = workflow.NewRegistry[*instance](s.now)
	return s
}

// Start открывает мастер на сегодня на двоих.
func (s *Service) Start() Snapshot {
	inst := &instance{reservation: domain.NewReservation(uuid.NewString(), s.localNow())}
	id := inst.reservation.Request.ID

	s.registry.Put(id, inst)
	s.updateActive()
	s.journal.Record(id, domain.TimelineReservationStarted, "")
	s.logger.WithField("reservation_id", id).Debug("reservation started")

	inst.mu.Lock()
	defer inst.mu.Unlock()
	return s.snapshot(inst)
}

// Get возвращает состояние мастера.
func (s *Service) Get(id string) (Snapshot, error) {
	return s.update(id, func(*instance) error { return nil })
}

// UpdateDetails меняет число гостей, дату и время. Изменения применяются
// целиком или не применяются вовсе.
func (s *Service) UpdateDetails(id string, input DetailsInput) (Snapshot, error) {
	return s.update(id, func(inst *instance) error {
		draft := inst.reservation
		if input.PartySize != nil {
			if err := draft.SetPartySize(*input.PartySize); err != nil {
				return err
			}
		}
		if input.ShiftDays != 0 {
			if _, err := draft.ShiftDate(input.ShiftDays, s.localNow()); err != nil {
				return err
			}
		}
		if input.TimeSlot != nil {
			if err := draft.SelectTimeSlot(*input.TimeSlot); err != nil {
				return err
			}
		}
		inst.reservation = draft
		return nil
	})
}

// SetContact сохраняет контактные данные и заметки.
func (s *Service) SetContact(id string, input ContactInput) (Snapshot, error) {
	return s.update(id, func(inst *instance) error {
		return inst.reservation.SetContact(domain.Contact{
			Name:  input.Name,
			Email: input.Email,
			Phone: input.Phone,
		}, input.Notes)
	})
}

// Apply выполняет действие мастера. Подтверждение сохраняет бронь и ставит
// уведомление в outbox; ошибки этих шагов только логируются.
func (s *Service) Apply(id string, action domain.ReservationAction) (Snapshot, error) {
	inst, ok := s.registry.Get(id)
	if !ok {
		return Snapshot{}, domain.ErrReservationNotFound
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	from := inst.reservation.Step
	err := inst.reservation.Apply(action, s.localNow())
	if s.metrics != nil {
		s.metrics.RecordReservationAction(string(action), err)
	}
	if err != nil {
		return Snapshot{}, err
	}

	to := inst.reservation.Step
	s.journal.Record(id, domain.TimelineReservationStep, fmt.Sprintf("%s -> %s", from, to))

	if to == domain.ReservationStepConfirmed {
		s.confirm(inst)
	}
	return s.snapshot(inst), nil
}

// confirm выполняется под inst.mu.
func (s *Service) confirm(inst *instance) {
	r := inst.reservation
	id := r.Request.ID
	logger := s.logger.WithFields(log.Fields{
		"reservation_id": id,
		"date":           r.Request.Date.Format(time.DateOnly),
		"time_slot":      r.Request.TimeSlot,
		"party_size":     r.Request.PartySize,
	})

	inst.summary = r.Request.Summary()
	inst.notifyURL = NotificationURL(s.cfg.Destination, inst.summary)

	if s.repo != nil {
		if err := s.repo.Save(r); err != nil {
			logger.WithError(err).Error("persist reservation failed")
		}
	}

	s.journal.Emit(domain.AggregateReservation, id, domain.EventReservationConfirmed,
		kafka.NewReservationEvent(kafka.EventTypeReservationConfirmed, r, "", ""))
	s.journal.Emit(domain.AggregateReservation, id, domain.EventReservationNotificationRequested,
		kafka.NewReservationEvent(kafka.EventTypeReservationNotificationRequested, r, inst.summary, inst.notifyURL))
	s.journal.Record(id, domain.TimelineReservationConfirmed, "")

	if s.metrics != nil {
		s.metrics.RecordReservationConfirmed()
	}
	logger.Info("reservation confirmed")
}

// Timeline возвращает события мастера.
func (s *Service) Timeline(id string) ([]domain.TimelineEvent, error) {
	events, err := s.journal.Timeline(id)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	if len(events) == 0 {
		if _, ok := s.registry.Get(id); !ok {
			return nil, domain.ErrReservationNotFound
		}
	}
	return events, nil
}

// Sweep выгружает мастера, к которым не обращались дольше olderThan.
func (s *Service) Sweep(olderThan time.Duration) int {
	removed := s.registry.Sweep(olderThan)
	s.updateActive()
	return removed
}

func (s *Service) update(id string, fn func(*instance) error) (Snapshot, error) {
	inst, ok := s.registry.Get(id)
	if !ok {
		return Snapshot{}, domain.ErrReservationNotFound
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := fn(inst); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(inst), nil
}

// snapshot выполняется под inst.mu.
func (s *Service) snapshot(inst *instance) Snapshot {
	r := inst.reservation
	step := r.Step
	today := domain.DayOf(s.localNow())

	return Snapshot{
		Reservation:     r,
		CanContinue:     step == domain.ReservationStepDetails && r.Request.CanContinue(),
		CanConfirm:      step == domain.ReservationStepContactInfo && r.Request.CanConfirm(),
		CanShiftBack:    step == domain.ReservationStepDetails && domain.DayOf(r.Request.Date).After(today),
		Summary:         inst.summary,
		NotificationURL: inst.notifyURL,
	}
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.cfg.Location)
}

func (s *Service) updateActive() {
	if s.metrics != nil {
		s.metrics.SetActiveWorkflows(metrics.KindReservation, s.registry.Len())
	}
}
