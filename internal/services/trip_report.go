package services

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"lorry-backend/internal/models"
)

const tripReportSheet = "Trips"

var tripReportHeaders = []string{
	"Trip ID", "Driver", "Email", "Status", "Started", "Ended",
	"Distance (km)", "Duration (min)", "Points", "Deliveries",
}

var tripReportColumns = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 38},
	{"B", "C", 24},
	{"E", "F", 20},
	{"J", "J", 40},
}

// WriteTripReport renders trip summaries as an XLSX workbook with one row per trip
func WriteTripReport(w io.Writer, trips []models.TripSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", tripReportSheet); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}

	headers := make([]interface{}, len(tripReportHeaders))
	for i, header := range tripReportHeaders {
		headers[i] = header
	}
	if err := writeReportRow(f, 1, headers); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(tripReportSheet, "A1", "J1", style); err != nil {
		return fmt.Errorf("failed to style report header: %w", err)
	}

	for i, trip := range trips {
		ended := ""
		if trip.EndedAt != nil {
			ended = formatReportTime(*trip.EndedAt)
		}
		titles := make([]string, 0, len(trip.Deliveries))
		for _, d := range trip.Deliveries {
			titles = append(titles, d.Title)
		}

		values := []interface{}{
			trip.ID,
			trip.DriverName,
			trip.DriverEmail,
			string(trip.Status),
			formatReportTime(trip.StartedAt),
			ended,
			math.Round(trip.TotalDistanceKm*100) / 100,
			math.Round(trip.TotalDurationSeconds/60*10) / 10,
			trip.TotalPoints,
			strings.Join(titles, ", "),
		}
		if err := writeReportRow(f, i+2, values); err != nil {
			return err
		}
	}

	for _, c := range tripReportColumns {
		if err := f.SetColWidth(tripReportSheet, c.from, c.to, c.width); err != nil {
			return fmt.Errorf("failed to size report columns %s:%s: %w", c.from, c.to, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// writeReportRow fills one sheet row from column A. Rows past the sheet limit fail with excelize.ErrMaxRows.
func writeReportRow(f *excelize.File, row int, values []interface{}) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to address report row %d: %w", row, err)
		}
		if err := f.SetCellValue(tripReportSheet, cell, v); err != nil {
			return fmt.Errorf("failed to write report cell %s: %w", cell, err)
		}
	}
	return nil
}

func formatReportTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("02.01.2006 15:04")
}
