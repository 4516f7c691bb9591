package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/dates"
	"clinicbook/internal/models"
)

type mockDoctors struct {
	mock.Mock
}

func (m *mockDoctors) GetDoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Doctor), args.Error(1)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBookedTimeSlots(ctx context.Context, doctorID string, date dates.Date) ([]string, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func newResolver(doctors *mockDoctors, ledger *mockLedger) *Resolver {
	logger := zerolog.Nop()
	return NewResolver(doctors, ledger, &logger)
}

func mustDate(t *testing.T, s string) dates.Date {
	t.Helper()
	d, err := dates.Parse(s)
	require.NoError(t, err)
	return d
}

func tuesdayDoctor() *models.Doctor {
	return &models.Doctor{
		ID:   "d1",
		Name: "Dr. Smith",
		Availability: &models.Availability{
			WeeklySchedule: models.WeeklySchedule{
				"tuesday": {Enabled: true, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
			},
		},
	}
}

func TestEffectiveRanges(t *testing.T) {
	tuesday := mustDate(t, "2025-09-23")

	tests := []struct {
		name         string
		availability *models.Availability
		date         dates.Date
		want         []models.TimeRange
	}{
		{
			name:         "nil availability",
			availability: nil,
			date:         tuesday,
			want:         nil,
		},
		{
			name:         "enabled weekday applies",
			availability: tuesdayDoctor().Availability,
			date:         tuesday,
			want:         []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}},
		},
		{
			name:         "weekday without entry is closed",
			availability: tuesdayDoctor().Availability,
			date:         mustDate(t, "2025-09-24"),
			want:         nil,
		},
		{
			name: "disabled weekday ignored even with ranges",
			availability: &models.Availability{
				WeeklySchedule: models.WeeklySchedule{
					"tuesday": {Enabled: false, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
				},
			},
			date: tuesday,
			want: nil,
		},
		{
			name: "override replaces weekly schedule",
			availability: &models.Availability{
				WeeklySchedule: models.WeeklySchedule{
					"tuesday": {Enabled: true, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
				},
				SpecificDates: map[string]models.DateOverride{
					"2025-09-23": {TimeSlots: []models.TimeRange{{StartTime: "13:00", EndTime: "15:00"}}},
				},
			},
			date: tuesday,
			want: []models.TimeRange{{StartTime: "13:00", EndTime: "15:00"}},
		},
		{
			name: "empty override falls through to the weekly schedule",
			availability: &models.Availability{
				WeeklySchedule: models.WeeklySchedule{
					"tuesday": {Enabled: true, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
				},
				SpecificDates: map[string]models.DateOverride{
					"2025-09-23": {Reason: "conference"},
				},
			},
			date: tuesday,
			want: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}},
		},
		{
			name: "empty override on a disabled weekday stays closed",
			availability: &models.Availability{
				WeeklySchedule: models.WeeklySchedule{
					"tuesday": {Enabled: false, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
				},
				SpecificDates: map[string]models.DateOverride{
					"2025-09-23": {Reason: "conference"},
				},
			},
			date: tuesday,
			want: nil,
		},
		{
			name: "override applies even on a disabled weekday",
			availability: &models.Availability{
				WeeklySchedule: models.WeeklySchedule{
					"tuesday": {Enabled: false},
				},
				SpecificDates: map[string]models.DateOverride{
					"2025-09-23": {TimeSlots: []models.TimeRange{{StartTime: "09:00", EndTime: "11:00"}}},
				},
			},
			date: tuesday,
			want: []models.TimeRange{{StartTime: "09:00", EndTime: "11:00"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveRanges(tt.availability, tt.date))
		})
	}
}

func TestAvailableTimeSlotsTuesday(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", tuesday).Return([]string{"09:00"}, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00"}, open)
}

func TestAvailableTimeSlotsNothingBooked(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", tuesday).Return([]string{}, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00"}, open)
}

func TestAvailableTimeSlotsEmptyOverrideFallsThrough(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctor := tuesdayDoctor()
	doctor.Availability.SpecificDates = map[string]models.DateOverride{
		"2025-09-23": {Reason: "conference"},
	}

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(doctor, nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", tuesday).Return([]string{}, nil)

	// An override without time ranges does not close the day; the
	// weekly tuesday entry still applies.
	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "09:00"}, open)
}

func TestAvailableTimeSlotsUnknownDoctor(t *testing.T) {
	ctx := context.Background()

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "missing").Return(nil, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "missing", mustDate(t, "2025-09-23"))
	require.NoError(t, err)
	assert.Equal(t, []string{}, open)
	ledger.AssertNotCalled(t, "GetBookedTimeSlots", mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailableTimeSlotsClosedDay(t *testing.T) {
	ctx := context.Background()
	wednesday := mustDate(t, "2025-09-24")

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "d1", wednesday)
	require.NoError(t, err)
	assert.Equal(t, []string{}, open)
	ledger.AssertNotCalled(t, "GetBookedTimeSlots", mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailableTimeSlotsFullyBooked(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", tuesday).Return([]string{"08:00", "09:00"}, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	require.NoError(t, err)
	assert.Equal(t, []string{}, open)
}

func TestAvailableTimeSlotsLedgerError(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", tuesday).Return(nil, errors.New("store down"))

	r := newResolver(doctors, ledger)
	_, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	assert.Error(t, err, "ledger failures must not read as an open schedule")
}

func TestAvailableTimeSlotsMalformedSchedule(t *testing.T) {
	ctx := context.Background()
	tuesday := mustDate(t, "2025-09-23")

	doctor := &models.Doctor{
		ID: "d1",
		Availability: &models.Availability{
			WeeklySchedule: models.WeeklySchedule{
				"tuesday": {Enabled: true, TimeSlots: []models.TimeRange{{StartTime: "8am", EndTime: "10:00"}}},
			},
		},
	}

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(doctor, nil)

	r := newResolver(doctors, ledger)
	_, err := r.AvailableTimeSlots(ctx, "d1", tuesday)
	assert.Error(t, err)
}

func TestAvailableDates(t *testing.T) {
	ctx := context.Background()
	start := mustDate(t, "2025-09-22")
	end := mustDate(t, "2025-09-28")

	// Tuesday 2025-09-23 is fully booked, Tuesday is the only working
	// day, so only the override date remains.
	doctor := &models.Doctor{
		ID: "d1",
		Availability: &models.Availability{
			WeeklySchedule: models.WeeklySchedule{
				"tuesday": {Enabled: true, TimeSlots: []models.TimeRange{{StartTime: "08:00", EndTime: "10:00"}}},
			},
			SpecificDates: map[string]models.DateOverride{
				"2025-09-25": {TimeSlots: []models.TimeRange{{StartTime: "14:00", EndTime: "15:00"}}},
			},
		},
	}

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(doctor, nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", mustDate(t, "2025-09-23")).Return([]string{"08:00", "09:00"}, nil)
	ledger.On("GetBookedTimeSlots", ctx, "d1", mustDate(t, "2025-09-25")).Return([]string{}, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableDates(ctx, "d1", start, end)
	require.NoError(t, err)
	assert.Equal(t, []dates.Date{mustDate(t, "2025-09-25")}, open)

	// With no intervening bookings a second query reads the same.
	again, err := r.AvailableDates(ctx, "d1", start, end)
	require.NoError(t, err)
	assert.Equal(t, open, again)
}

func TestAvailableDatesUnknownDoctor(t *testing.T) {
	ctx := context.Background()

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "missing").Return(nil, nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableDates(ctx, "missing", mustDate(t, "2025-09-22"), mustDate(t, "2025-09-28"))
	require.NoError(t, err)
	assert.Equal(t, []dates.Date{}, open)
}

func TestAvailableDatesInvertedRange(t *testing.T) {
	ctx := context.Background()

	doctors := new(mockDoctors)
	ledger := new(mockLedger)
	doctors.On("GetDoctorByID", ctx, "d1").Return(tuesdayDoctor(), nil)

	r := newResolver(doctors, ledger)
	open, err := r.AvailableDates(ctx, "d1", mustDate(t, "2025-09-28"), mustDate(t, "2025-09-22"))
	require.NoError(t, err)
	assert.Empty(t, open)
}
