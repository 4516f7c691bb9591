package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"clinicbook/internal/dates"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/treedb"
)

const (
	// MaxAvailabilityDaysRange is the maximum number of days allowed in
	// an availability request.
	MaxAvailabilityDaysRange = 90
)

// AvailabilityRequest is the request body for POST /api/doctors/availability.
type AvailabilityRequest struct {
	StartDate string   `json:"start_date"`           // Format: YYYY-MM-DD
	EndDate   string   `json:"end_date"`             // Format: YYYY-MM-DD
	DoctorIDs []string `json:"doctor_ids,omitempty"` // Optional: filter by doctor IDs
}

// DoctorAvailability lists the open dates for one doctor.
type DoctorAvailability struct {
	DoctorID       string   `json:"doctor_id"`
	AvailableDates []string `json:"available_dates"`
}

// AvailabilityResponse is the response for POST /api/doctors/availability.
type AvailabilityResponse struct {
	Doctors []DoctorAvailability `json:"doctors"`
	Period  struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// routeDoctor dispatches /api/doctors/{id}/... paths.
func (s *HTTPServer) routeDoctor(w http.ResponseWriter, r *http.Request) {
	segments := pathSegments(r.URL.Path, "/api/doctors/")
	if len(segments) != 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	doctorID := segments[0]
	switch segments[1] {
	case "slots":
		s.handleDoctorSlots(w, r, doctorID)
	case "availability":
		s.handleSetAvailability(w, r, doctorID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleDoctorSlots returns the open slots for one doctor and date.
// GET /api/doctors/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleDoctorSlots(w http.ResponseWriter, r *http.Request, doctorID string) {
	metrics.IncHTTP("doctor_slots")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := dates.Parse(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots, err := s.resolver.AvailableTimeSlots(r.Context(), doctorID, date)
	if err != nil {
		s.log.Error().Err(err).Str("doctor_id", doctorID).Str("date", dateStr).Msg("failed to resolve slots")
		writeError(w, http.StatusInternalServerError, "failed to resolve availability")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"date":      dateStr,
		"slots":     slots,
	})
}

// handleDoctorsAvailability returns open dates for doctors within a
// date range.
// POST /api/doctors/availability
func (s *HTTPServer) handleDoctorsAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("doctors_availability")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req AvailabilityRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, end, err := validateAvailabilityRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.DoctorIDs) == 0 {
		writeError(w, http.StatusBadRequest, "doctor_ids is required")
		return
	}

	response := AvailabilityResponse{Doctors: make([]DoctorAvailability, 0, len(req.DoctorIDs))}
	for _, doctorID := range req.DoctorIDs {
		open, err := s.resolver.AvailableDates(r.Context(), doctorID, start, end)
		if err != nil {
			s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("failed to resolve dates")
			writeError(w, http.StatusInternalServerError, "failed to resolve availability")
			return
		}

		formatted := make([]string, len(open))
		for i, d := range open {
			formatted[i] = d.String()
		}
		response.Doctors = append(response.Doctors, DoctorAvailability{
			DoctorID:       doctorID,
			AvailableDates: formatted,
		})
	}
	response.Period.Start = req.StartDate
	response.Period.End = req.EndDate

	writeJSON(w, http.StatusOK, response)
}

func validateAvailabilityRequest(req *AvailabilityRequest) (start, end dates.Date, err error) {
	if req.StartDate == "" || req.EndDate == "" {
		return dates.Date{}, dates.Date{}, fmt.Errorf("start_date and end_date are required")
	}

	start, err = dates.Parse(req.StartDate)
	if err != nil {
		return dates.Date{}, dates.Date{}, fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
	}

	end, err = dates.Parse(req.EndDate)
	if err != nil {
		return dates.Date{}, dates.Date{}, fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
	}

	if start.After(end) {
		return dates.Date{}, dates.Date{}, fmt.Errorf("start_date must be before or equal to end_date")
	}

	if start.DaysUntil(end) > MaxAvailabilityDaysRange {
		return dates.Date{}, dates.Date{}, fmt.Errorf("date range exceeds maximum of %d days", MaxAvailabilityDaysRange)
	}

	return start, end, nil
}

// handleSetAvailability replaces a doctor's schedule.
// PUT /api/doctors/{id}/availability
func (s *HTTPServer) handleSetAvailability(w http.ResponseWriter, r *http.Request, doctorID string) {
	metrics.IncHTTP("set_availability")

	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use PUT")
		return
	}

	var availability models.Availability
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&availability); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.booking.UpdateAvailability(r.Context(), doctorID, &availability); err != nil {
		if err == treedb.ErrNotFound {
			writeError(w, http.StatusNotFound, "doctor not found")
			return
		}
		s.log.Error().Err(err).Str("doctor_id", doctorID).Msg("failed to update availability")
		writeError(w, http.StatusInternalServerError, "failed to update availability")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "doctor_id": doctorID})
}
