package httpadapter

import (
	"time"

	"beacon/internal/domain"
	"beacon/internal/services/analytics"
)

type ScanRequest struct {
	URL  string            `json:"url"`
	Plan string            `json:"plan,omitempty"`
	Form *domain.FormInput `json:"form,omitempty"`
}

type ScanAccepted struct {
	ScanID string `json:"scan_id"`
}

type ScanView struct {
	ID         string                   `json:"id"`
	Domain     string                   `json:"domain"`
	URL        string                   `json:"url"`
	Plan       string                   `json:"plan"`
	Status     string                   `json:"status"`
	Progress   float64                  `json:"progress"`
	Phase      string                   `json:"phase,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Score      *int                     `json:"score,omitempty"`
	Breakdown  *domain.ScoringBreakdown `json:"breakdown,omitempty"`
	QueryCount int                      `json:"query_count"`
	CreatedAt  time.Time                `json:"created_at"`
	StartedAt  *time.Time               `json:"started_at,omitempty"`
	FinishedAt *time.Time               `json:"finished_at,omitempty"`
}

func newScanView(s domain.Scan) ScanView {
	return ScanView{
		ID:         s.ID,
		Domain:     s.Domain,
		URL:        s.URL,
		Plan:       s.Plan,
		Status:     s.Status,
		Progress:   s.Progress,
		Phase:      s.Phase,
		Error:      s.Error,
		Score:      s.Score,
		Breakdown:  s.Breakdown,
		QueryCount: s.QueryCount,
		CreatedAt:  s.CreatedAt,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

type ProfileView struct {
	Domain     string          `json:"domain"`
	ScanID     string          `json:"scan_id"`
	Score      *int            `json:"score,omitempty"`
	Profile    *domain.Profile `json:"profile"`
	ScannedAt  *time.Time      `json:"scanned_at,omitempty"`
	QueryCount int             `json:"query_count"`
}

func newProfileView(s domain.Scan) ProfileView {
	return ProfileView{
		Domain:     s.Domain,
		ScanID:     s.ID,
		Score:      s.Score,
		Profile:    s.Profile,
		ScannedAt:  s.FinishedAt,
		QueryCount: s.QueryCount,
	}
}

type CompetitorList struct {
	Domain      string                    `json:"domain"`
	Competitors []domain.CompetitorRecord `json:"competitors"`
}

type ProviderList struct {
	Domain    string                         `json:"domain"`
	Providers []analytics.ProviderComparison `json:"providers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
