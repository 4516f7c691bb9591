package models

import (
	"strings"
	"time"

	"clinicbook/internal/dates"
)

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// ActiveStatuses are the statuses that keep a slot blocked. A pending
// appointment blocks its slot the same as a confirmed one; only cancellation
// or rejection releases it.
var ActiveStatuses = map[string]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
}

// TimeRange is a continuous working interval within a day.
type TimeRange struct {
	StartTime string `json:"startTime"` // "09:00"
	EndTime   string `json:"endTime"`   // "12:00"
}

// DaySchedule is the recurring template for one day of the week.
// A disabled day contributes no availability regardless of its time slots.
type DaySchedule struct {
	Enabled   bool        `json:"enabled"`
	TimeSlots []TimeRange `json:"timeSlots,omitempty"`
}

// WeeklySchedule is keyed by lowercase day names (see dates.DayNames).
type WeeklySchedule map[string]DaySchedule

// DateOverride replaces the weekly template for one calendar date.
// A non-empty override wins even when the weekday is disabled.
type DateOverride struct {
	TimeSlots []TimeRange `json:"timeSlots,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Availability is a doctor's full schedule record.
type Availability struct {
	WeeklySchedule WeeklySchedule          `json:"weeklySchedule,omitempty"`
	SpecificDates  map[string]DateOverride `json:"specificDates,omitempty"` // keyed by YYYY-MM-DD
	LastUpdated    time.Time               `json:"lastUpdated,omitempty"`   // informational only
}

// Doctor is the bookable practitioner record.
type Doctor struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Specialty    string        `json:"specialty,omitempty"`
	IsGeneralist bool          `json:"isGeneralist,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
}

// Appointment is a booked (doctor, date, time) record.
type Appointment struct {
	ID              string     `json:"id"`
	DoctorID        string     `json:"doctorId"`
	PatientID       string     `json:"patientId"`
	PatientName     string     `json:"patientName,omitempty"`
	AppointmentDate dates.Date `json:"appointmentDate"`
	AppointmentTime string     `json:"appointmentTime"` // "HH:MM" slot start
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// BlocksSlot reports whether the appointment keeps its slot
// unavailable. Cancelled and rejected appointments release the slot so
// it can be rebooked; every other status blocks.
func (a *Appointment) BlocksSlot() bool {
	return ActiveStatuses[a.Status]
}

// HasUsableSchedule reports whether the record can ever produce a bookable
// slot: at least one enabled weekly day with a time slot, or at least one
// override date with a time slot. The booking flow treats a doctor without a
// usable schedule the same as a missing doctor.
func (av *Availability) HasUsableSchedule() bool {
	if av == nil {
		return false
	}
	for _, day := range av.WeeklySchedule {
		if day.Enabled && len(day.TimeSlots) > 0 {
			return true
		}
	}
	for _, override := range av.SpecificDates {
		if len(override.TimeSlots) > 0 {
			return true
		}
	}
	return false
}

// Day returns the schedule for a lowercase day name. Missing days read as
// disabled.
func (w WeeklySchedule) Day(name string) DaySchedule {
	return w[strings.ToLower(name)]
}

// Override returns the override for a date, if any.
func (av *Availability) Override(d dates.Date) (DateOverride, bool) {
	if av == nil || av.SpecificDates == nil {
		return DateOverride{}, false
	}
	o, ok := av.SpecificDates[d.String()]
	return o, ok
}
