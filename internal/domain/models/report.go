// internal/domain/models/report.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ReportType groups reports on the dashboard.
type ReportType string

const (
	ReportTypeAccounting    ReportType = "Accounting"
	ReportTypeManufacturing ReportType = "Manufacturing"
)

// ParseReportType accepts a report type in any letter case.
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accounting":
		return ReportTypeAccounting, nil
	case "manufacturing":
		return ReportTypeManufacturing, nil
	}
	return "", fmt.Errorf("report type must be %q or %q, got %q", ReportTypeAccounting, ReportTypeManufacturing, s)
}

// Report is a catalog entry pointing at a Power BI report.
// Catalog entries are maintained outside the web surface.
type Report struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	PowerBIReportID string     `json:"powerBiReportId"`
	Type            ReportType `json:"type"`
	Description     string     `json:"description"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// UserReportAccess grants one user access to one report.
// (user_id, report_id) is unique.
type UserReportAccess struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	ReportID  string    `json:"reportId"`
	GrantedAt time.Time `json:"grantedAt"`
}
