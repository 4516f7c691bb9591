// Package service implements the booking write path: validation,
// conflict-checked creation, cancellation and schedule updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clinicbook/internal/dates"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
)

var (
	ErrPastDate     = errors.New("cannot book in the past")
	ErrDateTooFar   = errors.New("date is too far in the future")
	ErrNotAvailable = errors.New("not available")
)

// BookingRules bounds how far ahead (and how soon) a slot can be
// booked.
type BookingRules struct {
	MinAdvanceHours int
	MaxAdvanceDays  int
}

// AppointmentStore is the persistence surface the service writes
// through.
type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error)
	Cancel(ctx context.Context, id string) (*models.Appointment, error)
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, filter repository.ListFilter) ([]models.Appointment, error)
}

// SlotResolver answers which slots are open for a doctor on a date.
type SlotResolver interface {
	AvailableTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error)
}

// DoctorAdmin is the doctor-facing schedule write surface.
type DoctorAdmin interface {
	SetAvailability(ctx context.Context, id string, availability *models.Availability) error
}

// BookingService coordinates appointment writes. The open-slot check
// is advisory; the repository's conditional slot claim is what keeps
// two patients out of the same slot.
type BookingService struct {
	appointments AppointmentStore
	resolver     SlotResolver
	doctors      DoctorAdmin
	bus          *events.EventBus
	rules        BookingRules
	logger       *zerolog.Logger
}

// NewBookingService creates the booking service.
func NewBookingService(
	appointments AppointmentStore,
	resolver SlotResolver,
	doctors DoctorAdmin,
	bus *events.EventBus,
	rules BookingRules,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		appointments: appointments,
		resolver:     resolver,
		doctors:      doctors,
		bus:          bus,
		rules:        rules,
		logger:       logger,
	}
}

// CreateRequest describes a booking attempt.
type CreateRequest struct {
	DoctorID    string
	PatientID   string
	PatientName string
	Date        dates.Date
	Time        string
	Reason      string
}

// Create validates the request against the booking rules and the
// doctor's open slots, then writes the appointment. Returns
// repository.ErrSlotTaken when another booking won the slot.
func (s *BookingService) Create(ctx context.Context, req CreateRequest) (*models.Appointment, error) {
	slotTime, err := s.slotTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	if err := s.checkAdvanceWindow(slotTime); err != nil {
		return nil, err
	}

	open, err := s.resolver.AvailableTimeSlots(ctx, req.DoctorID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("resolve availability: %w", err)
	}
	if !contains(open, req.Time) {
		return nil, ErrNotAvailable
	}

	created, err := s.appointments.Create(ctx, &models.Appointment{
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		PatientName:     req.PatientName,
		AppointmentDate: req.Date,
		AppointmentTime: req.Time,
		Reason:          req.Reason,
	})
	if errors.Is(err, repository.ErrSlotTaken) {
		metrics.IncAppointmentConflict()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	metrics.IncAppointmentCreated(created.Status)
	s.bus.Publish(events.NewEvent(events.TypeAppointmentCreated, created))
	return created, nil
}

// Cancel releases an appointment and its slot.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	cancelled, err := s.appointments.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.IncAppointmentCancelled()
	s.bus.Publish(events.NewEvent(events.TypeAppointmentCancelled, cancelled))
	return cancelled, nil
}

// UpdateAvailability replaces a doctor's schedule and announces the
// change.
func (s *BookingService) UpdateAvailability(ctx context.Context, doctorID string, availability *models.Availability) error {
	if err := s.doctors.SetAvailability(ctx, doctorID, availability); err != nil {
		return err
	}

	s.bus.Publish(events.NewEvent(events.TypeAvailabilityUpdated, map[string]string{
		"doctor_id": doctorID,
	}))
	return nil
}

// Get returns a single appointment.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// List returns appointments matching the filter.
func (s *BookingService) List(ctx context.Context, filter repository.ListFilter) ([]models.Appointment, error) {
	return s.appointments.List(ctx, filter)
}

func (s *BookingService) slotTime(date dates.Date, timeSlot string) (time.Time, error) {
	parsed, err := time.Parse("15:04", timeSlot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeSlot)
	}
	return time.Date(date.Year, date.Month, date.Day, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC), nil
}

func (s *BookingService) checkAdvanceWindow(slotTime time.Time) error {
	now := time.Now().UTC()

	if s.rules.MinAdvanceHours > 0 {
		if slotTime.Before(now.Add(time.Duration(s.rules.MinAdvanceHours) * time.Hour)) {
			return ErrPastDate
		}
	} else if slotTime.Before(now) {
		return ErrPastDate
	}

	if s.rules.MaxAdvanceDays > 0 && slotTime.After(now.AddDate(0, 0, s.rules.MaxAdvanceDays)) {
		return ErrDateTooFar
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
