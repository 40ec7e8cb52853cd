package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardline/internal/domain"
	"wardline/internal/repo"
)

const searchLimit = 10

// SearchResult carries candidate name matches plus whether one of them is an
// exact (case-folded) match for the query.
type SearchResult struct {
	Names      []domain.CandidateName
	ExactMatch bool
}

// SearchCandidateNames does a case-insensitive substring search. Queries
// shorter than two characters return nothing; ids in exclude are skipped so
// clients can hide names already in a pool.
func (e Engine) SearchCandidateNames(ctx context.Context, workspaceID, query string, exclude []string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return SearchResult{}, nil
	}
	names, err := e.Repo.SearchCandidateNames(ctx, workspaceID, query, searchLimit, exclude)
	if err != nil {
		return SearchResult{}, err
	}
	res := SearchResult{Names: names}
	for _, n := range names {
		if strings.EqualFold(n.Name, query) {
			res.ExactMatch = true
			break
		}
	}
	return res, nil
}

func (e Engine) getOrCreateCandidateName(ctx context.Context, tx *sql.Tx, workspaceID, name, actorID string) (domain.CandidateName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.CandidateName{}, errors.New("candidate name is required")
	}
	existing, err := e.Repo.FindCandidateNameFold(ctx, tx, workspaceID, name)
	if err == nil {
		return existing, nil
	}
	if err != repo.ErrNotFound {
		return domain.CandidateName{}, err
	}
	cn := domain.CandidateName{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedBy:   actorID,
		CreatedAt:   e.timestamp(),
	}
	if err := e.Repo.InsertCandidateName(ctx, tx, cn); err != nil {
		return domain.CandidateName{}, fmt.Errorf("insert candidate name: %w", err)
	}
	return cn, nil
}

// GetOrCreateCandidateName reuses an existing name record when one matches
// ignoring case, otherwise creates a new one.
func (e Engine) GetOrCreateCandidateName(ctx context.Context, workspaceID, name, actorID string) (domain.CandidateName, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CandidateName{}, err
	}
	defer tx.Rollback()
	cn, err := e.getOrCreateCandidateName(ctx, tx, workspaceID, name, actorID)
	if err != nil {
		return domain.CandidateName{}, err
	}
	return cn, tx.Commit()
}

// CandidateAddOptions are parameters for adding a name to a calling's pool.
// The candidate comes either from an existing name record (CandidateNameID)
// or from free text (Name), resolved get-or-create.
type CandidateAddOptions struct {
	CallingID       string
	CandidateNameID string
	Name            string
	Notes           string
	ActorID         string
}

func (e Engine) AddCandidate(ctx context.Context, opts CandidateAddOptions) (domain.CallingCandidate, error) {
	if opts.CallingID == "" {
		return domain.CallingCandidate{}, errors.New("calling is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	defer tx.Rollback()

	calling, err := e.Repo.GetCallingTx(ctx, tx, opts.CallingID)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	var cn domain.CandidateName
	if opts.CandidateNameID != "" {
		cn, err = e.Repo.GetCandidateName(ctx, opts.CandidateNameID)
		if err == nil && cn.WorkspaceID != calling.WorkspaceID {
			err = repo.ErrNotFound
		}
	} else {
		cn, err = e.getOrCreateCandidateName(ctx, tx, calling.WorkspaceID, opts.Name, opts.ActorID)
	}
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	if _, err := e.Repo.ActiveCandidateByName(ctx, tx, opts.CallingID, cn.ID); err == nil {
		return domain.CallingCandidate{}, fmt.Errorf("%s is already in the pool for this calling", cn.Name)
	} else if err != repo.ErrNotFound {
		return domain.CallingCandidate{}, err
	}
	now := e.timestamp()
	c := domain.CallingCandidate{
		ID:              uuid.New().String(),
		CallingID:       opts.CallingID,
		CandidateNameID: cn.ID,
		Status:          "proposed",
		Notes:           optionalString(opts.Notes),
		CreatedBy:       opts.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertCallingCandidate(ctx, tx, c); err != nil {
		return domain.CallingCandidate{}, fmt.Errorf("insert calling candidate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.CallingCandidate{}, err
	}
	return c, nil
}

func validCandidateStatus(s string) bool {
	switch s {
	case "proposed", "discussing", "selected", "archived":
		return true
	}
	return false
}

func (e Engine) UpdateCandidate(ctx context.Context, id string, status, notes *string) (domain.CallingCandidate, error) {
	if status != nil && !validCandidateStatus(*status) {
		return domain.CallingCandidate{}, fmt.Errorf("unknown candidate status %q", *status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCallingCandidateTx(ctx, tx, id)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	if c.DeletedAt != nil {
		return domain.CallingCandidate{}, repo.ErrNotFound
	}
	if err := e.Repo.UpdateCallingCandidate(ctx, tx, id, status, notes, e.timestamp()); err != nil {
		return domain.CallingCandidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CallingCandidate{}, err
	}
	return e.Repo.GetCallingCandidate(ctx, id)
}

// RemoveCandidate soft-deletes a pool entry. The entry backing an active
// process cannot be removed while the process runs.
func (e Engine) RemoveCandidate(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCallingCandidateTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if c.DeletedAt != nil {
		return repo.ErrNotFound
	}
	if p, err := e.Repo.ActiveProcessByCalling(ctx, tx, c.CallingID); err == nil {
		if p.CallingCandidateID != nil && *p.CallingCandidateID == id {
			return errors.New("candidate is in an active process; drop the process first")
		}
	} else if err != repo.ErrNotFound {
		return err
	}
	if err := e.Repo.SoftDeleteCandidate(ctx, tx, id, e.timestamp()); err != nil {
		return err
	}
	return tx.Commit()
}

// RestoreCandidate undoes a soft delete. Fails if a live entry for the same
// name was added to the calling in the meantime.
func (e Engine) RestoreCandidate(ctx context.Context, id string) (domain.CallingCandidate, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCallingCandidateTx(ctx, tx, id)
	if err != nil {
		return domain.CallingCandidate{}, err
	}
	if c.DeletedAt == nil {
		return domain.CallingCandidate{}, errors.New("candidate is not removed")
	}
	if _, err := e.Repo.ActiveCandidateByName(ctx, tx, c.CallingID, c.CandidateNameID); err == nil {
		return domain.CallingCandidate{}, errors.New("another entry for this name is already in the pool")
	} else if err != repo.ErrNotFound {
		return domain.CallingCandidate{}, err
	}
	if err := e.Repo.RestoreCandidate(ctx, tx, id, e.timestamp()); err != nil {
		return domain.CallingCandidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CallingCandidate{}, err
	}
	return e.Repo.GetCallingCandidate(ctx, id)
}

// PurgeRemovedCandidates drops soft-deleted pool entries past the retention
// window and returns the number purged.
func (e Engine) PurgeRemovedCandidates(ctx context.Context) (int64, error) {
	days := e.Config.RetentionDays()
	cutoff := e.now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	return e.Repo.PurgeDeletedCandidates(ctx, cutoff)
}
