// Package reminders publishes next-day appointment reminder events on
// a daily schedule.
package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clinicbook/internal/dates"
	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
)

// Config holds the scheduler settings.
type Config struct {
	// Timezone for scheduling, e.g. "Europe/Berlin".
	Timezone string
	// DailyHour is the hour (0-23) when reminders are processed.
	DailyHour int
	// DailyMinute is the minute (0-59) when reminders are processed.
	DailyMinute int
	// CheckInterval is how often to check whether it is time to run.
	CheckInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Timezone:      "UTC",
		DailyHour:     12,
		DailyMinute:   0,
		CheckInterval: time.Minute,
	}
}

// AppointmentSource lists appointments to remind about.
type AppointmentSource interface {
	List(ctx context.Context, filter repository.ListFilter) ([]models.Appointment, error)
}

// Publisher delivers reminder events.
type Publisher interface {
	Publish(event events.Event)
}

// ReminderPayload is the event payload for a single reminder.
type ReminderPayload struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	PatientName   string `json:"patient_name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// Scheduler runs the daily reminder pass.
type Scheduler struct {
	config       Config
	appointments AppointmentSource
	bus          Publisher
	location     *time.Location
	logger       *zerolog.Logger

	mu          sync.Mutex
	lastRunDate string // YYYY-MM-DD of last run
	running     bool
	stopCh      chan struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(config Config, appointments AppointmentSource, bus Publisher, logger *zerolog.Logger) (*Scheduler, error) {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		config:       config,
		appointments: appointments,
		bus:          bus,
		location:     loc,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Int("hour", s.config.DailyHour).
		Int("minute", s.config.DailyMinute).
		Str("timezone", s.config.Timezone).
		Msg("Reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.maybeRun(ctx)
		}
	}
}

// Stop halts the scheduling loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

func (s *Scheduler) maybeRun(ctx context.Context) {
	now := time.Now().In(s.location)
	today := now.Format(dates.Layout)

	s.mu.Lock()
	alreadyRan := s.lastRunDate == today
	s.mu.Unlock()

	if alreadyRan {
		return
	}
	if now.Hour() < s.config.DailyHour ||
		(now.Hour() == s.config.DailyHour && now.Minute() < s.config.DailyMinute) {
		return
	}

	count, err := s.ProcessReminders(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reminder pass failed")
		return
	}

	s.mu.Lock()
	s.lastRunDate = today
	s.mu.Unlock()

	s.logger.Info().Int("count", count).Msg("Reminder pass completed")
}

// ProcessReminders publishes a reminder event for every active
// appointment scheduled for tomorrow. Returns the number of reminders
// published.
func (s *Scheduler) ProcessReminders(ctx context.Context) (int, error) {
	tomorrow := dates.FromTime(time.Now().In(s.location)).Next()

	appointments, err := s.appointments.List(ctx, repository.ListFilter{Date: tomorrow})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, a := range appointments {
		if !a.BlocksSlot() {
			continue
		}

		s.bus.Publish(events.NewEvent(events.TypeAppointmentReminder, ReminderPayload{
			AppointmentID: a.ID,
			DoctorID:      a.DoctorID,
			PatientID:     a.PatientID,
			PatientName:   a.PatientName,
			Date:          a.AppointmentDate.String(),
			Time:          a.AppointmentTime,
		}))
		metrics.IncReminderPublished()
		count++
	}
	return count, nil
}
