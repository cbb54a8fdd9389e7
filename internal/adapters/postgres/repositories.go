package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"beacon/internal/domain"
)

// ErrNotFound is returned for missing scans.
var ErrNotFound = domain.ErrNotFound

// DomainRepository
func (db *DB) GetOrCreate(ctx context.Context, registrable string) (string, error) {
	registrable = strings.ToLower(registrable)
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO domains (registrable_domain)
		VALUES ($1)
		ON CONFLICT (registrable_domain) DO UPDATE SET registrable_domain = EXCLUDED.registrable_domain
		RETURNING id
	`, registrable).Scan(&id)
	return id, err
}

// ScanRepository

// Create inserts a queued scan and its job row in one transaction.
func (db *DB) Create(ctx context.Context, domainID string, url string, form *domain.FormInput, plan string) (scanID string, err error) {
	formJSON, err := jsonb(form)
	if err != nil {
		return "", err
	}
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	scanID = uuid.NewString()
	if _, err = tx.Exec(ctx, `
		INSERT INTO scans (id, domain_id, url, plan, form, status, progress)
		VALUES ($1, $2, $3, $4, $5, 'queued', 0)
	`, scanID, domainID, url, plan, formJSON); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `INSERT INTO scan_jobs (scan_id) VALUES ($1)`, scanID); err != nil {
		return "", err
	}
	return scanID, nil
}

func (db *DB) Status(ctx context.Context, scanID string) (string, float64, error) {
	var status string
	var progress float64
	err := db.Pool.QueryRow(ctx, `SELECT status, progress FROM scans WHERE id = $1`, scanID).Scan(&status, &progress)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	return status, progress, err
}

const scanColumns = `
	s.id, s.domain_id, d.registrable_domain, s.url, s.status, s.progress, s.plan, s.form,
	s.score, s.breakdown, s.profile, s.query_count, COALESCE(s.phase, ''), COALESCE(s.error, ''),
	s.started_at, s.finished_at, s.created_at`

func scanRow(row pgx.Row) (domain.Scan, error) {
	var (
		s                           domain.Scan
		form, breakdown, profileRaw []byte
	)
	err := row.Scan(&s.ID, &s.DomainRef, &s.Domain, &s.URL, &s.Status, &s.Progress, &s.Plan, &form,
		&s.Score, &breakdown, &profileRaw, &s.QueryCount, &s.Phase, &s.Error,
		&s.StartedAt, &s.FinishedAt, &s.CreatedAt)
	if err != nil {
		return s, err
	}
	if s.Form, err = fromJSONB[domain.FormInput](form); err != nil {
		return s, fmt.Errorf("decode form: %w", err)
	}
	if s.Breakdown, err = fromJSONB[domain.ScoringBreakdown](breakdown); err != nil {
		return s, fmt.Errorf("decode breakdown: %w", err)
	}
	if s.Profile, err = fromJSONB[domain.Profile](profileRaw); err != nil {
		return s, fmt.Errorf("decode profile: %w", err)
	}
	return s, nil
}

func (db *DB) Get(ctx context.Context, scanID string) (domain.Scan, error) {
	s, err := scanRow(db.Pool.QueryRow(ctx, `
		SELECT `+scanColumns+`
		FROM scans s JOIN domains d ON d.id = s.domain_id
		WHERE s.id = $1
	`, scanID))
	if errors.Is(err, pgx.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// ScanStore

func (db *DB) SaveQuerySet(ctx context.Context, set domain.QuerySet) error {
	queries, err := jsonb(&set.Queries)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO scan_queries (scan_id, queries, generated_count, validated_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (scan_id) DO UPDATE
		SET queries = EXCLUDED.queries, generated_count = EXCLUDED.generated_count, validated_count = EXCLUDED.validated_count
	`, set.ScanID, queries, set.GeneratedCount, set.ValidatedCount)
	return err
}

// SaveScanResult writes the score, breakdown and profile snapshot onto the
// scan row and replaces its response rows.
func (db *DB) SaveScanResult(ctx context.Context, r domain.ScanResult) (err error) {
	breakdown, err := jsonb(&r.Breakdown)
	if err != nil {
		return err
	}
	providers, err := jsonb(&r.Breakdown.Providers)
	if err != nil {
		return err
	}
	profile, err := jsonb(&r.Profile)
	if err != nil {
		return err
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE scans
		SET score = $2, breakdown = $3, provider_scores = $4, profile = $5, query_count = $6,
		    brand_name = $7, core_problem = NULLIF($8, ''), target_buyer = NULLIF($9, '')
		WHERE id = $1
	`, r.ScanID, r.Breakdown.FinalScore, breakdown, providers, profile, len(r.Queries),
		r.Profile.BrandName, r.Profile.CoreProblem, r.Profile.TargetBuyer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err = tx.Exec(ctx, `DELETE FROM scan_responses WHERE scan_id = $1`, r.ScanID); err != nil {
		return err
	}
	rows := make([][]any, 0, len(r.Analyses))
	for _, a := range r.Analyses {
		competitors := make([]string, 0, len(a.Competitors))
		for _, c := range a.DetectedCompetitors() {
			competitors = append(competitors, c.Target)
		}
		citations := a.Citations
		if citations == nil {
			citations = []string{}
		}
		rows = append(rows, []any{
			uuid.NewString(), r.ScanID, a.Query.Text, string(a.Query.Category), a.Provider,
			a.Brand.Detected, a.Brand.Position, a.Brand.Confidence, string(a.Brand.Method),
			competitors, citations, a.BrandCited,
		})
	}
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"scan_responses"}, []string{
		"id", "scan_id", "query", "category", "provider",
		"brand_detected", "brand_position", "brand_confidence", "method",
		"competitors", "citations", "brand_cited",
	}, pgx.CopyFromRows(rows))
	return err
}

// CompetitorStore

func (db *DB) ListCompetitors(ctx context.Context, brandDomain string) ([]domain.CompetitorRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT brand_domain, competitor_name, rank, mention_count, avg_position, visibility, trend, updated_at
		FROM competitor_tracking
		WHERE brand_domain = $1
		ORDER BY rank
	`, strings.ToLower(brandDomain))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.CompetitorRecord, error) {
		var c domain.CompetitorRecord
		var trend string
		err := row.Scan(&c.Domain, &c.Name, &c.Rank, &c.MentionCount, &c.AvgPosition, &c.Visibility, &trend, &c.UpdatedAt)
		c.Trend = domain.Trend(trend)
		return c, err
	})
}

// ReplaceCompetitors deletes every record for the domain and inserts records
// in the same transaction.
func (db *DB) ReplaceCompetitors(ctx context.Context, brandDomain string, records []domain.CompetitorRecord) (err error) {
	brandDomain = strings.ToLower(brandDomain)
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM competitor_tracking WHERE brand_domain = $1`, brandDomain); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, c := range records {
		updated := c.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		batch.Queue(`
			INSERT INTO competitor_tracking
				(brand_domain, competitor_name, rank, mention_count, avg_position, visibility, trend, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, brandDomain, c.Name, c.Rank, c.MentionCount, c.AvgPosition, c.Visibility, string(c.Trend), updated)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// AnalyticsReader

// LatestScans returns up to limit completed, scored scans for the domain,
// newest first.
func (db *DB) LatestScans(ctx context.Context, registrable string, limit int) ([]domain.Scan, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+scanColumns+`
		FROM scans s JOIN domains d ON d.id = s.domain_id
		WHERE d.registrable_domain = $1 AND s.status = 'completed' AND s.score IS NOT NULL
		ORDER BY s.finished_at DESC NULLS LAST, s.created_at DESC
		LIMIT $2
	`, strings.ToLower(registrable), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Scan, error) {
		return scanRow(row)
	})
}

func (db *DB) ScanResponses(ctx context.Context, scanID string) ([]domain.StoredResponse, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT scan_id, query, category, provider, brand_detected, brand_position, brand_confidence,
		       method, competitors, citations, brand_cited
		FROM scan_responses
		WHERE scan_id = $1
		ORDER BY created_at, id
	`, scanID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StoredResponse, error) {
		var r domain.StoredResponse
		var category, method string
		err := row.Scan(&r.ScanID, &r.Query, &category, &r.Provider, &r.BrandDetected, &r.BrandPosition,
			&r.BrandConfidence, &method, &r.Competitors, &r.Citations, &r.BrandCited)
		r.Category = domain.IntentCategory(category)
		r.Method = domain.DetectionMethod(method)
		return r, err
	})
}
