package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clinicbook/internal/dates"
	"clinicbook/internal/models"
	"clinicbook/internal/treedb"
)

const (
	appointmentsDir = "/appointments"
	bookedSlotsDir  = "/bookedSlots"
)

var (
	// ErrSlotTaken is returned when the requested slot already holds an
	// active appointment.
	ErrSlotTaken = errors.New("time slot already booked")

	// ErrAppointmentNotFound is returned for unknown appointment IDs.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAlreadyCancelled is returned when cancelling an appointment
	// that is already released.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")
)

// slotClaim marks a slot as held by an appointment.
type slotClaim struct {
	AppointmentID string    `json:"appointment_id"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// Appointments reads and writes appointment records. Slot ownership is
// enforced through conditional claims under /bookedSlots, so two
// concurrent writers for the same doctor, date and time cannot both
// succeed.
type Appointments struct {
	store  treedb.Store
	logger *zerolog.Logger
}

// NewAppointments creates an appointment repository backed by store.
func NewAppointments(store treedb.Store, logger *zerolog.Logger) *Appointments {
	return &Appointments{store: store, logger: logger}
}

func appointmentPath(id string) string {
	return appointmentsDir + "/" + id
}

func slotPath(doctorID string, date dates.Date, timeSlot string) string {
	return bookedSlotsDir + "/" + doctorID + "/" + date.String() + "/" + timeSlot
}

// GetBookedTimeSlots returns the blocked "HH:MM" slots for the doctor
// on the given date, sorted ascending. Cancelled and rejected
// appointments do not block.
func (r *Appointments) GetBookedTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error) {
	children, err := r.store.Children(ctx, appointmentsDir)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	var booked []string
	for id, raw := range children {
		var a models.Appointment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode appointment %s: %w", id, err)
		}
		if a.DoctorID != doctorID || !a.AppointmentDate.Equal(date) {
			continue
		}
		if !a.BlocksSlot() {
			continue
		}
		booked = append(booked, a.AppointmentTime)
	}

	sort.Strings(booked)
	return booked, nil
}

// Create stores a new appointment after claiming its slot. The second
// writer for an already-claimed slot gets ErrSlotTaken.
func (r *Appointments) Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = models.StatusPending
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	claim := slotPath(a.DoctorID, a.AppointmentDate, a.AppointmentTime)
	won, err := r.store.SetIfAbsent(ctx, claim, slotClaim{AppointmentID: a.ID, ClaimedAt: now})
	if err != nil {
		return nil, fmt.Errorf("claim slot: %w", err)
	}
	if !won {
		return nil, ErrSlotTaken
	}

	if err := r.store.Set(ctx, appointmentPath(a.ID), a); err != nil {
		// Release the claim so the slot is not stranded.
		if rbErr := r.store.Remove(ctx, claim); rbErr != nil {
			r.logger.Error().Err(rbErr).Str("path", claim).Msg("Failed to release slot claim after write error")
		}
		return nil, fmt.Errorf("store appointment: %w", err)
	}

	r.logger.Info().
		Str("appointment_id", a.ID).
		Str("doctor_id", a.DoctorID).
		Str("date", a.AppointmentDate.String()).
		Str("time", a.AppointmentTime).
		Msg("Appointment created")
	return a, nil
}

// Cancel flips the appointment to cancelled and releases its slot
// claim so the time becomes bookable again.
func (r *Appointments) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	a.Status = models.StatusCancelled
	a.UpdatedAt = time.Now().UTC()

	if err := r.store.Update(ctx, appointmentPath(id), a); err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}

	claim := slotPath(a.DoctorID, a.AppointmentDate, a.AppointmentTime)
	if err := r.store.Remove(ctx, claim); err != nil {
		r.logger.Error().Err(err).Str("path", claim).Msg("Failed to release slot claim")
	}

	r.logger.Info().Str("appointment_id", id).Msg("Appointment cancelled")
	return a, nil
}

// GetByID returns a single appointment. Returns ErrAppointmentNotFound
// for unknown IDs.
func (r *Appointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := r.store.Get(ctx, appointmentPath(id), &a)
	if errors.Is(err, treedb.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return &a, nil
}

// ListFilter narrows List results; zero values match everything.
type ListFilter struct {
	DoctorID  string
	PatientID string
	Date      dates.Date
	Status    string
}

// List returns appointments matching the filter, ordered by date and
// time.
func (r *Appointments) List(ctx context.Context, filter ListFilter) ([]models.Appointment, error) {
	children, err := r.store.Children(ctx, appointmentsDir)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	result := make([]models.Appointment, 0, len(children))
	for id, raw := range children {
		var a models.Appointment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode appointment %s: %w", id, err)
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if !filter.Date.IsZero() && !a.AppointmentDate.Equal(filter.Date) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].AppointmentDate.Equal(result[j].AppointmentDate) {
			return result[i].AppointmentDate.Before(result[j].AppointmentDate)
		}
		if result[i].AppointmentTime != result[j].AppointmentTime {
			return result[i].AppointmentTime < result[j].AppointmentTime
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
