package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
	_ "time/tzdata"

	"aq-panel/internal/models"
)

// utf8BOM makes spreadsheet applications read the file as UTF-8.
const utf8BOM = "\uFEFF"

// DefaultExportLimit is how many readings a monitoring export holds when the
// request does not say.
const DefaultExportLimit = 500

var (
	measurementCSVHeader = []string{"Timestamp", "Tanggal", "Waktu", "Lokasi", "PM2.5", "PM10", "Status"}
	userCSVHeader        = []string{"ID", "Nama Lengkap", "Email", "Username", "Phone", "Organisasi", "Role", "Status", "Email Verified", "Dibuat"}
)

// ExportService renders CSV reports. Dates are written in loc.
type ExportService struct {
	loc *time.Location
	now func() time.Time
}

// NewExportService resolves timezone, falling back to UTC when it is empty
// or unknown.
func NewExportService(timezone string) *ExportService {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	return &ExportService{loc: loc, now: time.Now}
}

func (s *ExportService) Location() *time.Location { return s.loc }

func (s *ExportService) MeasurementsFilename(deviceID string) string {
	return fmt.Sprintf("monitoring_%s_%s.csv", deviceID, s.now().UTC().Format("2006-01-02"))
}

func (s *ExportService) UsersFilename() string {
	return fmt.Sprintf("users_%s.csv", s.now().UTC().Format("2006-01-02"))
}

func (s *ExportService) WriteMeasurementsCSV(w io.Writer, rows []models.Measurement) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(measurementCSVHeader); err != nil {
		return err
	}

	for _, m := range rows {
		t := time.UnixMilli(m.Timestamp).In(s.loc)
		location := m.Location
		if location == "" {
			location = DefaultLocation
		}
		record := []string{
			strconv.FormatInt(m.Timestamp, 10),
			formatDate(t),
			t.Format("15.04.05"),
			location,
			formatReading(m.PM25),
			formatReading(m.PM10),
			m.Status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func (s *ExportService) WriteUsersCSV(w io.Writer, users []models.User) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(userCSVHeader); err != nil {
		return err
	}

	for _, u := range users {
		status := "Nonaktif"
		if u.IsActive {
			status = "Aktif"
		}
		verified := "Belum"
		if u.EmailVerified {
			verified = "Verified"
		}
		created := ""
		if u.CreatedAt > 0 {
			created = formatDate(time.UnixMilli(u.CreatedAt).In(s.loc))
		}
		record := []string{
			u.ID,
			u.FullName,
			u.Email,
			u.Username,
			u.PhoneNumber,
			u.Organization,
			u.Role,
			status,
			verified,
			created,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatDate renders d/m/yyyy without zero padding.
func formatDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

func formatReading(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
