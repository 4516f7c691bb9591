// Package availability resolves which appointment slots a doctor has
// open on a given date or across a date range.
package availability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"clinicbook/internal/dates"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/slots"
)

// DoctorSource supplies doctor records with their schedules.
type DoctorSource interface {
	GetDoctorByID(ctx context.Context, id string) (*models.Doctor, error)
}

// LedgerSource supplies already-booked slots for a doctor and date.
type LedgerSource interface {
	GetBookedTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error)
}

// Resolver computes open slots from a doctor's schedule minus the
// booking ledger.
type Resolver struct {
	doctors DoctorSource
	ledger  LedgerSource
	logger  *zerolog.Logger
}

// NewResolver creates an availability resolver.
func NewResolver(doctors DoctorSource, ledger LedgerSource, logger *zerolog.Logger) *Resolver {
	return &Resolver{doctors: doctors, ledger: ledger, logger: logger}
}

// EffectiveRanges returns the working ranges for the date. A specific
// date override with time ranges replaces the weekly schedule
// entirely; an override without any ranges is ignored and the weekday
// entry applies, and only when enabled.
func EffectiveRanges(availability *models.Availability, date dates.Date) []models.TimeRange {
	if availability == nil {
		return nil
	}

	if override, ok := availability.Override(date); ok && len(override.TimeSlots) > 0 {
		return override.TimeSlots
	}

	day := availability.WeeklySchedule.Day(date.Weekday())
	if !day.Enabled {
		return nil
	}
	return day.TimeSlots
}

// AvailableTimeSlots returns the open "HH:MM" slots for the doctor on
// the date. An unknown doctor, or one without a usable schedule,
// yields an empty result rather than an error.
func (r *Resolver) AvailableTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error) {
	metrics.IncAvailabilityQuery("slots")

	doctor, err := r.doctors.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor == nil {
		return []string{}, nil
	}

	return r.slotsForDoctor(ctx, doctor, date)
}

func (r *Resolver) slotsForDoctor(ctx context.Context, doctor *models.Doctor, date dates.Date) ([]string, error) {
	ranges := EffectiveRanges(doctor.Availability, date)
	if len(ranges) == 0 {
		return []string{}, nil
	}

	generated, err := slots.ExpandRanges(ranges)
	if err != nil {
		return nil, fmt.Errorf("expand schedule for %s on %s: %w", doctor.ID, date, err)
	}
	if len(generated) == 0 {
		return []string{}, nil
	}

	booked, err := r.ledger.GetBookedTimeSlots(ctx, doctor.ID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	open := slots.Subtract(generated, booked)
	if open == nil {
		open = []string{}
	}

	r.logger.Debug().
		Str("doctor_id", doctor.ID).
		Str("date", date.String()).
		Int("generated", len(generated)).
		Int("booked", len(booked)).
		Int("open", len(open)).
		Msg("Resolved availability")
	return open, nil
}

// AvailableDates returns the dates in [start, end] (inclusive) on
// which the doctor has at least one open slot, in ascending order.
func (r *Resolver) AvailableDates(ctx context.Context, doctorID string, start, end dates.Date) ([]dates.Date, error) {
	metrics.IncAvailabilityQuery("dates")

	doctor, err := r.doctors.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor == nil {
		return []dates.Date{}, nil
	}

	result := []dates.Date{}
	for _, date := range dates.Range(start, end) {
		open, err := r.slotsForDoctor(ctx, doctor, date)
		if err != nil {
			return nil, err
		}
		if len(open) > 0 {
			result = append(result, date)
		}
	}
	return result, nil
}
