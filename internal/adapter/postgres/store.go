package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundsage/FundSage/internal/domain"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// notFoundWrap maps pgx.ErrNoRows onto domain.ErrNotFound.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// --- Pension records ---

const pensionColumns = `subject_id, age, country, annual_income, current_savings,
	retirement_age_goal, risk_tolerance, total_annual_contribution,
	annual_return_rate, volatility, fees_percentage, transaction_amount,
	suspicious_flag, anomaly_score, geo_location, health_status, debt_level,
	portfolio_diversity_score`

func scanPensionRecord(row scannable) (pension.Record, error) {
	var rec pension.Record
	err := row.Scan(
		&rec.SubjectID, &rec.Age, &rec.Country, &rec.AnnualIncome, &rec.CurrentSavings,
		&rec.RetirementAgeGoal, &rec.RiskTolerance, &rec.TotalAnnualContrib,
		&rec.AnnualReturnRate, &rec.Volatility, &rec.FeesPercentage, &rec.TransactionAmount,
		&rec.SuspiciousFlag, &rec.AnomalyScore, &rec.GeoLocation, &rec.HealthStatus, &rec.DebtLevel,
		&rec.PortfolioDiversity)
	return rec, err
}

func (s *Store) GetPensionRecord(ctx context.Context, subjectID string) (*pension.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pensionColumns+` FROM pension_data WHERE subject_id = $1`, subjectID)

	rec, err := scanPensionRecord(row)
	if err != nil {
		return nil, notFoundWrap(err, "get pension record %s", subjectID)
	}
	return &rec, nil
}

func (s *Store) UpsertPensionRecord(ctx context.Context, rec *pension.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pension_data (`+pensionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (subject_id) DO UPDATE SET
			age = EXCLUDED.age,
			country = EXCLUDED.country,
			annual_income = EXCLUDED.annual_income,
			current_savings = EXCLUDED.current_savings,
			retirement_age_goal = EXCLUDED.retirement_age_goal,
			risk_tolerance = EXCLUDED.risk_tolerance,
			total_annual_contribution = EXCLUDED.total_annual_contribution,
			annual_return_rate = EXCLUDED.annual_return_rate,
			volatility = EXCLUDED.volatility,
			fees_percentage = EXCLUDED.fees_percentage,
			transaction_amount = EXCLUDED.transaction_amount,
			suspicious_flag = EXCLUDED.suspicious_flag,
			anomaly_score = EXCLUDED.anomaly_score,
			geo_location = EXCLUDED.geo_location,
			health_status = EXCLUDED.health_status,
			debt_level = EXCLUDED.debt_level,
			portfolio_diversity_score = EXCLUDED.portfolio_diversity_score`,
		rec.SubjectID, rec.Age, rec.Country, rec.AnnualIncome, rec.CurrentSavings,
		rec.RetirementAgeGoal, rec.RiskTolerance, rec.TotalAnnualContrib,
		rec.AnnualReturnRate, rec.Volatility, rec.FeesPercentage, rec.TransactionAmount,
		rec.SuspiciousFlag, rec.AnomalyScore, rec.GeoLocation, rec.HealthStatus, rec.DebtLevel,
		rec.PortfolioDiversity)
	if err != nil {
		return fmt.Errorf("upsert pension record %s: %w", rec.SubjectID, err)
	}
	return nil
}

// --- Run archive ---

func (s *Store) SaveRun(ctx context.Context, rec *database.RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, subject_id, query, result)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET result = EXCLUDED.result`,
		rec.ID, rec.SubjectID, rec.Query, rec.Result)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*database.RunRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, query, result FROM runs WHERE id = $1`, id)

	var rec database.RunRecord
	if err := row.Scan(&rec.ID, &rec.SubjectID, &rec.Query, &rec.Result); err != nil {
		return nil, notFoundWrap(err, "get run %s", id)
	}
	return &rec, nil
}

func (s *Store) ListRunsBySubject(ctx context.Context, subjectID string, limit int) ([]database.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, subject_id, query, result FROM runs
		 WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", subjectID, err)
	}
	defer rows.Close()

	var recs []database.RunRecord
	for rows.Next() {
		var rec database.RunRecord
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.Query, &rec.Result); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
