package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReservationStep шаг мастера бронирования стола.
type ReservationStep string

const (
	// ReservationStepDetails выбор даты, времени и числа гостей.
	ReservationStepDetails ReservationStep = "details"
	// ReservationStepContactInfo контактные данные.
	ReservationStepContactInfo ReservationStep = "contact_info"
	// ReservationStepConfirmed бронь подтверждена, данные заморожены.
	ReservationStepConfirmed ReservationStep = "confirmed"
)

// ReservationAction действие пользователя в мастере.
type ReservationAction string

const (
	ReservationActionContinue ReservationAction = "continue"
	ReservationActionBack     ReservationAction = "back"
	ReservationActionConfirm  ReservationAction = "confirm"
)

const (
	MinPartySize     = 1
	MaxPartySize     = 10
	DefaultPartySize = 2
)

var reservationTimeSlots = []string{
	"13:00", "13:30", "14:00", "14:30", "15:00",
	"19:00", "19:30", "20:00", "20:30", "21:00", "21:30",
}

// TimeSlots возвращает копию списка доступных слотов.
func TimeSlots() []string {
	out := make([]string, len(reservationTimeSlots))
	copy(out, reservationTimeSlots)
	return out
}

// IsKnownTimeSlot проверяет, что слот входит в фиксированный список.
func IsKnownTimeSlot(slot string) bool {
	for _, s := range reservationTimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// DayOf отбрасывает время суток, сохраняя часовой пояс.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Contact контактные данные гостя.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Complete сообщает, что заполнены имя, email и телефон.
func (c Contact) Complete() bool {
	return strings.TrimSpace(c.Name) != "" &&
		strings.TrimSpace(c.Email) != "" &&
		strings.TrimSpace(c.Phone) != ""
}

// ReservationRequest данные брони, собираемые мастером.
type ReservationRequest struct {
	ID        string
	Date      time.Time
	PartySize int
	// TimeSlot пуст, пока время не выбрано.
	TimeSlot string
	Contact  Contact
	Notes    string
}

// NewReservationRequest создаёт заявку на сегодня на двоих.
func NewReservationRequest(id string, today time.Time) ReservationRequest {
	return ReservationRequest{
		ID:        id,
		Date:      DayOf(today),
		PartySize: DefaultPartySize,
	}
}

// CanContinue условие перехода Details → ContactInfo.
func (r ReservationRequest) CanContinue() bool {
	return r.TimeSlot != ""
}

// CanConfirm условие перехода ContactInfo → Confirmed.
func (r ReservationRequest) CanConfirm() bool {
	return r.Contact.Complete()
}

// Summary формирует текст уведомления о новой брони.
func (r ReservationRequest) Summary() string {
	notes := strings.TrimSpace(r.Notes)
	if notes == "" {
		notes = "Ninguna"
	}

	var b strings.Builder
	b.WriteString("*Nueva Reserva*\n")
	fmt.Fprintf(&b, "Fecha: %s\n", r.Date.Format("02/01/2006"))
	fmt.Fprintf(&b, "Hora: %s\n", r.TimeSlot)
	fmt.Fprintf(&b, "Personas: %d\n", r.PartySize)
	fmt.Fprintf(&b, "Nombre: %s\n", strings.TrimSpace(r.Contact.Name))
	fmt.Fprintf(&b, "Email: %s\n", strings.TrimSpace(r.Contact.Email))
	fmt.Fprintf(&b, "Teléfono: %s\n", strings.TrimSpace(r.Contact.Phone))
	fmt.Fprintf(&b, "Notas: %s", notes)
	return b.String()
}

// ValidateInvariants проверяет инварианты заявки относительно today.
func (r ReservationRequest) ValidateInvariants(today time.Time) []error {
	var errs []error

	if r.PartySize < MinPartySize || r.PartySize > MaxPartySize {
		errs = append(errs, ErrPartySizeOutOfRange)
	}
	if DayOf(r.Date).Before(DayOf(today)) {
		errs = append(errs, ErrDateInPast)
	}
	if r.TimeSlot != "" && !IsKnownTimeSlot(r.TimeSlot) {
		errs = append(errs, ErrTimeSlotUnknown)
	}

	return errs
}

// NextReservationStep функция переходов (step, action) → step.
// Невыполненное условие перехода возвращает guard-ошибку, недопустимый переход —
// ErrTransitionNotAllowed.
func NextReservationStep(step ReservationStep, action ReservationAction, req ReservationRequest) (ReservationStep, error) {
	switch {
	case step == ReservationStepDetails && action == ReservationActionContinue:
		if !req.CanContinue() {
			return step, ErrTimeSlotRequired
		}
		return ReservationStepContactInfo, nil
	case step == ReservationStepContactInfo && action == ReservationActionBack:
		return ReservationStepDetails, nil
	case step == ReservationStepContactInfo && action == ReservationActionConfirm:
		if !req.CanConfirm() {
			return step, ErrContactIncomplete
		}
		return ReservationStepConfirmed, nil
	default:
		return step, fmt.Errorf("%w: %s from %s", ErrTransitionNotAllowed, action, step)
	}
}

// Reservation состояние мастера: текущий шаг и заявка.
type Reservation struct {
	Step        ReservationStep
	Request     ReservationRequest
	ConfirmedAt time.Time
}

// NewReservation открывает мастер на шаге Details.
func NewReservation(id string, today time.Time) Reservation {
	return Reservation{
		Step:    ReservationStepDetails,
		Request: NewReservationRequest(id, today),
	}
}

// SetPartySize задаёт число гостей (1..10).
func (r *Reservation) SetPartySize(n int) error {
	if err := r.editable(ReservationStepDetails); err != nil {
		return err
	}
	if n < MinPartySize || n > MaxPartySize {
		return ErrPartySizeOutOfRange
	}
	r.Request.PartySize = n
	return nil
}

// ShiftDate сдвигает дату на days дней. Сдвиг раньше today игнорируется.
// Любое изменение даты сбрасывает выбранное время. Возвращает true, если дата изменилась.
func (r *Reservation) ShiftDate(days int, today time.Time) (bool, error) {
	if err := r.editable(ReservationStepDetails); err != nil {
		return false, err
	}
	if days == 0 {
		return false, nil
	}
	next := DayOf(r.Request.Date).AddDate(0, 0, days)
	if next.Before(DayOf(today)) {
		return false, nil
	}
	r.Request.Date = next
	r.Request.TimeSlot = ""
	return true, nil
}

// SelectTimeSlot выбирает время из фиксированного списка.
func (r *Reservation) SelectTimeSlot(slot string) error {
	if err := r.editable(ReservationStepDetails); err != nil {
		return err
	}
	if !IsKnownTimeSlot(slot) {
		return ErrTimeSlotUnknown
	}
	r.Request.TimeSlot = slot
	return nil
}

// SetContact сохраняет контактные данные и заметки.
func (r *Reservation) SetContact(c Contact, notes string) error {
	if err := r.editable(ReservationStepContactInfo); err != nil {
		return err
	}
	r.Request.Contact = c
	r.Request.Notes = notes
	return nil
}

// Apply выполняет действие мастера. При подтверждении дата не должна быть в прошлом.
func (r *Reservation) Apply(action ReservationAction, now time.Time) error {
	if r.Step == ReservationStepConfirmed {
		return ErrReservationFrozen
	}
	if action == ReservationActionConfirm && DayOf(r.Request.Date).Before(DayOf(now)) {
		return ErrDateInPast
	}
	next, err := NextReservationStep(r.Step, action, r.Request)
	if err != nil {
		return err
	}
	r.Step = next
	if next == ReservationStepConfirmed {
		r.ConfirmedAt = now
	}
	return nil
}

func (r *Reservation) editable(step ReservationStep) error {
	if r.Step == ReservationStepConfirmed {
		return ErrReservationFrozen
	}
	if r.Step != step {
		return ErrStepMismatch
	}
	return nil
}
