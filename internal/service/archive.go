package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/port/database"
)

// Archive persists finished runs for later retrieval.
type Archive struct {
	store database.Store
	log   *slog.Logger
}

// NewArchive creates the run archive.
func NewArchive(store database.Store, log *slog.Logger) *Archive {
	return &Archive{store: store, log: log.With("service", "archive")}
}

// Save stores a terminal run. Non-terminal states are a caller bug.
func (a *Archive) Save(ctx context.Context, state *flow.State) error {
	if state.Final == nil {
		return errors.New("archive: run is not terminal")
	}

	query := ""
	for _, m := range state.Messages {
		if m.Role == flow.RoleUser {
			query = m.Content
			break
		}
	}

	rec := &database.RunRecord{
		ID:        state.RunID,
		SubjectID: state.SubjectID,
		Query:     query,
		Result:    state.Final,
	}
	if err := a.store.SaveRun(ctx, rec); err != nil {
		return fmt.Errorf("archive save run %s: %w", state.RunID, err)
	}

	a.log.DebugContext(ctx, "run archived", "run_id", state.RunID)
	return nil
}

// Get returns one archived run by ID.
func (a *Archive) Get(ctx context.Context, id string) (*database.RunRecord, error) {
	rec, err := a.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("archive get run %s: %w", id, err)
	}
	return rec, nil
}

// ListBySubject returns the most recent archived runs for one member.
func (a *Archive) ListBySubject(ctx context.Context, subjectID string, limit int) ([]database.RunRecord, error) {
	recs, err := a.store.ListRunsBySubject(ctx, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("archive list runs for %s: %w", subjectID, err)
	}
	return recs, nil
}
