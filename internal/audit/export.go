// Package audit exports the appointment register as an Excel
// workbook, one sheet per doctor.
package audit

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"clinicbook/internal/models"
	"clinicbook/internal/repository"
)

var headerColumns = []string{"ID", "Patient", "Patient ID", "Date", "Time", "Status", "Reason", "Created At"}

// AppointmentSource lists appointment records for export.
type AppointmentSource interface {
	List(ctx context.Context, filter repository.ListFilter) ([]models.Appointment, error)
}

// DoctorSource lists doctor records for sheet naming.
type DoctorSource interface {
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
}

// Exporter builds appointment register workbooks.
type Exporter struct {
	appointments AppointmentSource
	doctors      DoctorSource
	logger       *zerolog.Logger
}

// NewExporter creates an exporter over the given sources.
func NewExporter(appointments AppointmentSource, doctors DoctorSource, logger *zerolog.Logger) *Exporter {
	return &Exporter{appointments: appointments, doctors: doctors, logger: logger}
}

// WriteWorkbook writes the full register to w as an .xlsx workbook.
// Each doctor gets a sheet named after them; doctors without
// appointments are skipped. An empty register yields a single sheet
// with only the header row.
func (e *Exporter) WriteWorkbook(ctx context.Context, w io.Writer) error {
	doctors, err := e.doctors.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list doctors: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()

	firstSheet := true
	sheets := 0
	for _, doctor := range doctors {
		appointments, err := e.appointments.List(ctx, repository.ListFilter{DoctorID: doctor.ID})
		if err != nil {
			return fmt.Errorf("list appointments for %s: %w", doctor.ID, err)
		}
		if len(appointments) == 0 {
			continue
		}

		name := sheetName(doctor)
		if err := addSheet(file, name, firstSheet); err != nil {
			return err
		}
		firstSheet = false
		sheets++

		if err := writeHeader(file, name); err != nil {
			return err
		}
		for i, a := range appointments {
			row := []any{
				a.ID,
				a.PatientName,
				a.PatientID,
				a.AppointmentDate.String(),
				a.AppointmentTime,
				a.Status,
				a.Reason,
				a.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if err := writeRow(file, name, i+2, row); err != nil {
				return err
			}
		}

		e.logger.Debug().Str("doctor_id", doctor.ID).Int("rows", len(appointments)).Msg("Exported sheet")
	}

	if sheets == 0 {
		if err := addSheet(file, "Appointments", true); err != nil {
			return err
		}
		if err := writeHeader(file, "Appointments"); err != nil {
			return err
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func sheetName(doctor models.Doctor) string {
	name := doctor.Name
	if name == "" {
		name = doctor.ID
	}
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func addSheet(file *excelize.File, name string, first bool) error {
	if first {
		// Rename the default sheet instead of leaving it empty.
		if err := file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
		return nil
	}
	if _, err := file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return nil
}

func writeHeader(file *excelize.File, sheet string) error {
	if err := writeRow(file, sheet, 1, toAny(headerColumns)); err != nil {
		return err
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(headerColumns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, rowNum int, row []any) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func toAny(columns []string) []any {
	result := make([]any, len(columns))
	for i, c := range columns {
		result[i] = c
	}
	return result
}
