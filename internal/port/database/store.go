// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
)

// RunRecord is an archived, finished analysis run.
type RunRecord struct {
	ID        string            `json:"id"`
	SubjectID string            `json:"subject_id"`
	Query     string            `json:"query"`
	Result    *flow.FinalResult `json:"result"`
}

// Store is the port interface for database operations.
type Store interface {
	// Pension records, read by the specialist workers.
	GetPensionRecord(ctx context.Context, subjectID string) (*pension.Record, error)
	UpsertPensionRecord(ctx context.Context, rec *pension.Record) error

	// Run archive.
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRunsBySubject(ctx context.Context, subjectID string, limit int) ([]RunRecord, error)
}
