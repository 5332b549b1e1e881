package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testToday = time.Date(2026, 6, 10, 9, 30, 0, 0, time.UTC)

func completeContact() Contact {
	return Contact{Name: "Ana", Email: "ana@example.com", Phone: "+34600111222"}
}

func TestNextReservationStep(t *testing.T) {
	withSlot := ReservationRequest{TimeSlot: "20:00"}
	withContact := ReservationRequest{TimeSlot: "20:00", Contact: completeContact()}

	tests := []struct {
		name    string
		step    ReservationStep
		action  ReservationAction
		req     ReservationRequest
		want    ReservationStep
		wantErr error
	}{
		{name: "details continue", step: ReservationStepDetails, action: ReservationActionContinue, req: withSlot, want: ReservationStepContactInfo},
		{name: "details continue without slot", step: ReservationStepDetails, action: ReservationActionContinue, req: ReservationRequest{}, want: ReservationStepDetails, wantErr: ErrTimeSlotRequired},
		{name: "contact back", step: ReservationStepContactInfo, action: ReservationActionBack, req: withSlot, want: ReservationStepDetails},
		{name: "contact confirm", step: ReservationStepContactInfo, action: ReservationActionConfirm, req: withContact, want: ReservationStepConfirmed},
		{name: "contact confirm incomplete", step: ReservationStepContactInfo, action: ReservationActionConfirm, req: withSlot, want: ReservationStepContactInfo, wantErr: ErrContactIncomplete},
		{name: "details back", step: ReservationStepDetails, action: ReservationActionBack, req: withSlot, want: ReservationStepDetails, wantErr: ErrTransitionNotAllowed},
		{name: "details confirm", step: ReservationStepDetails, action: ReservationActionConfirm, req: withContact, want: ReservationStepDetails, wantErr: ErrTransitionNotAllowed},
		{name: "contact continue", step: ReservationStepContactInfo, action: ReservationActionContinue, req: withContact, want: ReservationStepContactInfo, wantErr: ErrTransitionNotAllowed},
		{name: "confirmed back", step: ReservationStepConfirmed, action: ReservationActionBack, req: withContact, want: ReservationStepConfirmed, wantErr: ErrTransitionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextReservationStep(tt.step, tt.action, tt.req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error=%v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("step=%q, want %q", got, tt.want)
			}
		})
	}
}

func TestReservation_ContinueRequiresSlot(t *testing.T) {
	r := NewReservation("res-1", testToday)
	if err := r.SetPartySize(4); err != nil {
		t.Fatalf("set party size: %v", err)
	}
	if _, err := r.ShiftDate(1, testToday); err != nil {
		t.Fatalf("shift date: %v", err)
	}

	err := r.Apply(ReservationActionContinue, testToday)
	if !errors.Is(err, ErrTimeSlotRequired) {
		t.Fatalf("expected ErrTimeSlotRequired, got %v", err)
	}
	if r.Step != ReservationStepDetails {
		t.Fatalf("step=%q, want details", r.Step)
	}
	if r.Request.PartySize != 4 {
		t.Fatalf("party size=%d, want 4", r.Request.PartySize)
	}

	if err := r.SelectTimeSlot("19:00"); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if !r.Request.CanContinue() {
		t.Fatal("continue must be enabled once a slot is chosen")
	}
	if err := r.Apply(ReservationActionContinue, testToday); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if r.Step != ReservationStepContactInfo {
		t.Fatalf("step=%q, want contact_info", r.Step)
	}
}

func TestReservation_ShiftDate(t *testing.T) {
	r := NewReservation("res-1", testToday)

	changed, err := r.ShiftDate(-1, testToday)
	if err != nil {
		t.Fatalf("shift back: %v", err)
	}
	if changed {
		t.Fatal("shift before today must be ignored")
	}
	if !r.Request.Date.Equal(DayOf(testToday)) {
		t.Fatalf("date=%v, want today", r.Request.Date)
	}

	if err := r.SelectTimeSlot("13:30"); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	changed, err = r.ShiftDate(2, testToday)
	if err != nil {
		t.Fatalf("shift forward: %v", err)
	}
	if !changed {
		t.Fatal("shift forward must change the date")
	}
	if r.Request.TimeSlot != "" {
		t.Fatalf("time slot must be reset on date change, got %q", r.Request.TimeSlot)
	}

	changed, _ = r.ShiftDate(-1, testToday)
	if !changed {
		t.Fatal("shift back to a future date must be allowed")
	}
	want := DayOf(testToday).AddDate(0, 0, 1)
	if !r.Request.Date.Equal(want) {
		t.Fatalf("date=%v, want %v", r.Request.Date, want)
	}
}

func TestReservation_PartySizeBounds(t *testing.T) {
	r := NewReservation("res-1", testToday)
	if r.Request.PartySize != DefaultPartySize {
		t.Fatalf("default party size=%d", r.Request.PartySize)
	}

	for _, n := range []int{0, 11, -2} {
		if err := r.SetPartySize(n); !errors.Is(err, ErrPartySizeOutOfRange) {
			t.Fatalf("party size %d: expected ErrPartySizeOutOfRange, got %v", n, err)
		}
	}
	for _, n := range []int{MinPartySize, MaxPartySize} {
		if err := r.SetPartySize(n); err != nil {
			t.Fatalf("party size %d: %v", n, err)
		}
	}
}

func TestReservation_SelectUnknownSlot(t *testing.T) {
	r := NewReservation("res-1", testToday)
	if err := r.SelectTimeSlot("17:00"); !errors.Is(err, ErrTimeSlotUnknown) {
		t.Fatalf("expected ErrTimeSlotUnknown, got %v", err)
	}
}

func TestReservation_FieldsEditableOnlyAtOwnStep(t *testing.T) {
	r := NewReservation("res-1", testToday)

	if err := r.SetContact(completeContact(), ""); !errors.Is(err, ErrStepMismatch) {
		t.Fatalf("contact on details: expected ErrStepMismatch, got %v", err)
	}

	if err := r.SelectTimeSlot("20:00"); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if err := r.Apply(ReservationActionContinue, testToday); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if err := r.SetPartySize(3); !errors.Is(err, ErrStepMismatch) {
		t.Fatalf("party size on contact: expected ErrStepMismatch, got %v", err)
	}
}

func TestReservation_BackKeepsData(t *testing.T) {
	r := NewReservation("res-1", testToday)
	_ = r.SelectTimeSlot("21:00")
	_ = r.Apply(ReservationActionContinue, testToday)
	_ = r.SetContact(completeContact(), "terraza")

	if err := r.Apply(ReservationActionBack, testToday); err != nil {
		t.Fatalf("back: %v", err)
	}
	if r.Step != ReservationStepDetails {
		t.Fatalf("step=%q, want details", r.Step)
	}
	if r.Request.TimeSlot != "21:00" || r.Request.Contact.Name != "Ana" || r.Request.Notes != "terraza" {
		t.Fatalf("request data lost: %+v", r.Request)
	}
}

func TestReservation_ConfirmFreezes(t *testing.T) {
	r := NewReservation("res-1", testToday)
	_ = r.SelectTimeSlot("20:00")
	_ = r.Apply(ReservationActionContinue, testToday)
	_ = r.SetContact(completeContact(), "")

	if err := r.Apply(ReservationActionConfirm, testToday); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if r.Step != ReservationStepConfirmed {
		t.Fatalf("step=%q, want confirmed", r.Step)
	}
	if !r.ConfirmedAt.Equal(testToday) {
		t.Fatalf("confirmed at=%v", r.ConfirmedAt)
	}

	checks := []struct {
		name string
		err  error
	}{
		{name: "apply", err: r.Apply(ReservationActionBack, testToday)},
		{name: "party size", err: r.SetPartySize(5)},
		{name: "slot", err: r.SelectTimeSlot("13:00")},
		{name: "contact", err: r.SetContact(Contact{}, "x")},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrReservationFrozen) {
			t.Fatalf("%s: expected ErrReservationFrozen, got %v", c.name, c.err)
		}
	}
	if _, err := r.ShiftDate(1, testToday); !errors.Is(err, ErrReservationFrozen) {
		t.Fatalf("shift date: expected ErrReservationFrozen, got %v", err)
	}
}

func TestReservation_ConfirmRejectsPastDate(t *testing.T) {
	r := NewReservation("res-1", testToday)
	_ = r.SelectTimeSlot("20:00")
	_ = r.Apply(ReservationActionContinue, testToday)
	_ = r.SetContact(completeContact(), "")

	later := testToday.AddDate(0, 0, 1)
	if err := r.Apply(ReservationActionConfirm, later); !errors.Is(err, ErrDateInPast) {
		t.Fatalf("expected ErrDateInPast, got %v", err)
	}
	if r.Step != ReservationStepContactInfo {
		t.Fatalf("step=%q, want contact_info", r.Step)
	}
}

func TestReservationRequest_Summary(t *testing.T) {
	req := ReservationRequest{
		Date:      time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC),
		PartySize: 4,
		TimeSlot:  "20:30",
		Contact:   completeContact(),
	}

	summary := req.Summary()
	for _, want := range []string{
		"*Nueva Reserva*",
		"Fecha: 11/06/2026",
		"Hora: 20:30",
		"Personas: 4",
		"Nombre: Ana",
		"Email: ana@example.com",
		"Teléfono: +34600111222",
		"Notas: Ninguna",
	} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q:\n%s", want, summary)
		}
	}

	req.Notes = "  cumpleaños  "
	if !strings.HasSuffix(req.Summary(), "Notas: cumpleaños") {
		t.Fatalf("summary must carry trimmed notes:\n%s", req.Summary())
	}
}

func TestReservationRequest_ValidateInvariants(t *testing.T) {
	ok := NewReservationRequest("r", testToday)
	if errs := ok.ValidateInvariants(testToday); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	bad := ReservationRequest{
		Date:      DayOf(testToday).AddDate(0, 0, -1),
		PartySize: 12,
		TimeSlot:  "03:00",
	}
	if errs := bad.ValidateInvariants(testToday); len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
}

func TestTimeSlotsReturnsCopy(t *testing.T) {
	slots := TimeSlots()
	slots[0] = "00:00"
	if !IsKnownTimeSlot("13:00") || IsKnownTimeSlot("00:00") {
		t.Fatal("TimeSlots must return an independent copy")
	}
}
