package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/dates"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"
)

func sampleAppointment(id string) models.Appointment {
	return models.Appointment{
		ID:              id,
		DoctorID:        "d1",
		PatientID:       "p1",
		PatientName:     "Alice",
		AppointmentDate: dates.Date{Year: 2025, Month: 9, Day: 23},
		AppointmentTime: "09:00",
		Status:          models.StatusPending,
	}
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	created := sampleAppointment("a1")

	tests := []struct {
		name           string
		body           any
		createErr      error
		expectedStatus int
		expectedError  string
	}{
		{
			name: "successful booking",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p1", PatientName: "Alice",
				Date: "2025-09-23", Time: "09:00",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "slot already booked",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p2",
				Date: "2025-09-23", Time: "09:00",
			},
			createErr:      repository.ErrSlotTaken,
			expectedStatus: http.StatusConflict,
			expectedError:  "time slot already booked",
		},
		{
			name: "slot not offered",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p2",
				Date: "2025-09-24", Time: "09:00",
			},
			createErr:      service.ErrNotAvailable,
			expectedStatus: http.StatusConflict,
			expectedError:  "time slot is not available for this doctor",
		},
		{
			name: "past date",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p2",
				Date: "2020-01-01", Time: "09:00",
			},
			createErr:      service.ErrPastDate,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing doctor id",
			body: CreateAppointmentRequest{
				PatientID: "p1", Date: "2025-09-23", Time: "09:00",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "doctor_id is required",
		},
		{
			name: "missing time",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p1", Date: "2025-09-23",
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "time is required",
		},
		{
			name: "invalid date",
			body: CreateAppointmentRequest{
				DoctorID: "d1", PatientID: "p1", Date: "tomorrow", Time: "09:00",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON body",
			body:           "not an object",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := &stubBooking{created: &created, createErr: tt.createErr}
			s := testServer(&stubResolver{}, booking, &stubExporter{})

			w := doRequest(t, s, http.MethodPost, "/api/appointments", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, true, response["success"])
				appointment := response["appointment"].(map[string]any)
				assert.Equal(t, "a1", appointment["id"])
			} else if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, response["error"])
			}
		})
	}
}

func TestCancelAppointmentEndpoint(t *testing.T) {
	cancelled := sampleAppointment("a1")
	cancelled.Status = models.StatusCancelled

	tests := []struct {
		name           string
		id             string
		cancelErr      error
		expectedStatus int
	}{
		{
			name:           "cancel existing appointment",
			id:             "a1",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "cancel unknown appointment",
			id:             "ghost",
			cancelErr:      repository.ErrAppointmentNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "cancel twice",
			id:             "a1",
			cancelErr:      repository.ErrAlreadyCancelled,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := &stubBooking{cancelled: &cancelled, cancelErr: tt.cancelErr}
			s := testServer(&stubResolver{}, booking, &stubExporter{})

			w := doRequest(t, s, http.MethodDelete, "/api/appointments/"+tt.id, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, []string{tt.id}, booking.lastCancels)

			if tt.expectedStatus == http.StatusOK {
				var response map[string]any
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				appointment := response["appointment"].(map[string]any)
				assert.Equal(t, models.StatusCancelled, appointment["status"])
			}
		})
	}
}

func TestListAppointmentsEndpoint(t *testing.T) {
	booking := &stubBooking{
		appointments: []models.Appointment{sampleAppointment("a1"), sampleAppointment("a2")},
	}
	s := testServer(&stubResolver{}, booking, &stubExporter{})

	w := doRequest(t, s, http.MethodGet, "/api/appointments?doctor_id=d1&date=2025-09-23&status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Appointments []AppointmentResponse `json:"appointments"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response.Appointments, 2)

	assert.Equal(t, "d1", booking.lastFilter.DoctorID)
	assert.Equal(t, models.StatusPending, booking.lastFilter.Status)
	assert.Equal(t, "2025-09-23", booking.lastFilter.Date.String())
}

func TestListAppointmentsInvalidDate(t *testing.T) {
	s := testServer(&stubResolver{}, &stubBooking{}, &stubExporter{})

	w := doRequest(t, s, http.MethodGet, "/api/appointments?date=someday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAppointmentEndpoint(t *testing.T) {
	booking := &stubBooking{appointments: []models.Appointment{sampleAppointment("a1")}}
	s := testServer(&stubResolver{}, booking, &stubExporter{})

	w := doRequest(t, s, http.MethodGet, "/api/appointments/a1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	appointment := response["appointment"].(map[string]any)
	assert.Equal(t, "Alice", appointment["patient_name"])

	w = doRequest(t, s, http.MethodGet, "/api/appointments/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportAppointmentsEndpoint(t *testing.T) {
	s := testServer(&stubResolver{}, &stubBooking{}, &stubExporter{})

	w := doRequest(t, s, http.MethodGet, "/api/export/appointments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, w.Body.Len())
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(&stubResolver{}, &stubBooking{}, &stubExporter{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/doctors/d1/slots?date=2025-09-23"},
		{http.MethodGet, "/api/doctors/availability"},
		{http.MethodPost, "/api/doctors/d1/availability"},
		{http.MethodPut, "/api/appointments"},
		{http.MethodPost, "/api/appointments/a1"},
		{http.MethodPost, "/api/export/appointments"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(t, s, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestCreateAppointmentInternalError(t *testing.T) {
	booking := &stubBooking{createErr: errors.New("store down")}
	s := testServer(&stubResolver{}, booking, &stubExporter{})

	w := doRequest(t, s, http.MethodPost, "/api/appointments", CreateAppointmentRequest{
		DoctorID: "d1", PatientID: "p1", Date: "2025-09-23", Time: "09:00",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
