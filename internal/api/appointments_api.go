package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"clinicbook/internal/dates"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/repository"
	"clinicbook/internal/service"
)

// CreateAppointmentRequest is the request body for POST /api/appointments.
type CreateAppointmentRequest struct {
	DoctorID    string `json:"doctor_id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"` // Format: YYYY-MM-DD
	Time        string `json:"time"` // Format: HH:MM
	Reason      string `json:"reason,omitempty"`
}

// AppointmentResponse describes an appointment in API responses.
type AppointmentResponse struct {
	ID          string `json:"id"`
	DoctorID    string `json:"doctor_id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func appointmentPayload(a *models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientID:   a.PatientID,
		PatientName: a.PatientName,
		Date:        a.AppointmentDate.String(),
		Time:        a.AppointmentTime,
		Status:      a.Status,
		Reason:      a.Reason,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

// routeAppointments dispatches /api/appointments.
func (s *HTTPServer) routeAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAppointment(w, r)
	case http.MethodGet:
		s.handleListAppointments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// routeAppointment dispatches /api/appointments/{id}.
func (s *HTTPServer) routeAppointment(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/api/appointments/")
	if len(segments) != 1 || segments[0] == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}
	id := segments[0]

	switch r.Method {
	case http.MethodGet:
		s.handleGetAppointment(w, r, id)
	case http.MethodDelete:
		s.handleCancelAppointment(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateAppointment books a slot.
// POST /api/appointments
func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_appointment")

	var req CreateAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validateCreateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	date, err := dates.Parse(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	created, err := s.booking.Create(r.Context(), service.CreateRequest{
		DoctorID:    req.DoctorID,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Date:        date,
		Time:        req.Time,
		Reason:      req.Reason,
	})
	if err != nil {
		s.writeCreateError(w, r, &req, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"appointment": appointmentPayload(created),
	})
}

func (s *HTTPServer) writeCreateError(w http.ResponseWriter, r *http.Request, req *CreateAppointmentRequest, err error) {
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		writeError(w, http.StatusConflict, "time slot already booked")
	case errors.Is(err, service.ErrNotAvailable):
		writeError(w, http.StatusConflict, "time slot is not available for this doctor")
	case errors.Is(err, service.ErrPastDate):
		writeError(w, http.StatusBadRequest, "cannot book in the past")
	case errors.Is(err, service.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, "date is too far in the future")
	default:
		s.log.Error().Err(err).
			Str("doctor_id", req.DoctorID).
			Str("date", req.Date).
			Str("time", req.Time).
			Msg("failed to create appointment")
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
	}
}

func validateCreateRequest(req *CreateAppointmentRequest) error {
	if req.DoctorID == "" {
		return fmt.Errorf("doctor_id is required")
	}
	if req.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if req.Date == "" {
		return fmt.Errorf("date is required")
	}
	if req.Time == "" {
		return fmt.Errorf("time is required")
	}
	return nil
}

// handleListAppointments lists appointments with optional filters.
// GET /api/appointments?doctor_id=&patient_id=&date=&status=
func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_appointments")

	filter := repository.ListFilter{
		DoctorID:  r.URL.Query().Get("doctor_id"),
		PatientID: r.URL.Query().Get("patient_id"),
		Status:    r.URL.Query().Get("status"),
	}
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := dates.Parse(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		filter.Date = date
	}

	appointments, err := s.booking.List(r.Context(), filter)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list appointments")
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	payload := make([]AppointmentResponse, len(appointments))
	for i := range appointments {
		payload[i] = appointmentPayload(&appointments[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": payload})
}

// handleGetAppointment returns one appointment.
// GET /api/appointments/{id}
func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("get_appointment")

	a, err := s.booking.Get(r.Context(), id)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("appointment_id", id).Msg("failed to get appointment")
		writeError(w, http.StatusInternalServerError, "failed to get appointment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"appointment": appointmentPayload(a)})
}

// handleCancelAppointment cancels an appointment and frees its slot.
// DELETE /api/appointments/{id}
func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request, id string) {
	metrics.IncHTTP("cancel_appointment")

	cancelled, err := s.booking.Cancel(r.Context(), id)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if errors.Is(err, repository.ErrAlreadyCancelled) {
		writeError(w, http.StatusConflict, "appointment already cancelled")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("appointment_id", id).Msg("failed to cancel appointment")
		writeError(w, http.StatusInternalServerError, "failed to cancel appointment")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"appointment": appointmentPayload(cancelled),
	})
}

// handleExportAppointments streams the appointment register as xlsx.
// GET /api/export/appointments
func (s *HTTPServer) handleExportAppointments(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_appointments")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filename := fmt.Sprintf("appointments-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := s.exporter.WriteWorkbook(r.Context(), w); err != nil {
		s.log.Error().Err(err).Msg("failed to export appointments")
	}
}
