package repo

import (
	"context"
	"database/sql"
	"strings"

	"wardline/internal/domain"
)

func (r Repo) InsertCandidateName(ctx context.Context, tx *sql.Tx, cn domain.CandidateName) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidate_names(id,workspace_id,name,created_by,created_at) VALUES (?,?,?,?,?)`,
		cn.ID, cn.WorkspaceID, cn.Name, cn.CreatedBy, cn.CreatedAt)
	return err
}

func (r Repo) GetCandidateName(ctx context.Context, id string) (domain.CandidateName, error) {
	var cn domain.CandidateName
	err := r.DB.QueryRowContext(ctx, `SELECT id,workspace_id,name,created_by,created_at FROM candidate_names WHERE id=?`, id).
		Scan(&cn.ID, &cn.WorkspaceID, &cn.Name, &cn.CreatedBy, &cn.CreatedAt)
	if err == sql.ErrNoRows {
		return cn, ErrNotFound
	}
	return cn, err
}

// FindCandidateNameFold matches on the stored name ignoring case, inside the
// caller's transaction so get-or-create cannot race with itself.
func (r Repo) FindCandidateNameFold(ctx context.Context, tx *sql.Tx, workspaceID, name string) (domain.CandidateName, error) {
	var cn domain.CandidateName
	err := tx.QueryRowContext(ctx, `SELECT id,workspace_id,name,created_by,created_at FROM candidate_names WHERE workspace_id=? AND name=? COLLATE NOCASE LIMIT 1`,
		workspaceID, name).
		Scan(&cn.ID, &cn.WorkspaceID, &cn.Name, &cn.CreatedBy, &cn.CreatedAt)
	if err == sql.ErrNoRows {
		return cn, ErrNotFound
	}
	return cn, err
}

// SearchCandidateNames does a case-insensitive substring match, skipping any
// ids in exclude.
func (r Repo) SearchCandidateNames(ctx context.Context, workspaceID, query string, limit int, exclude []string) ([]domain.CandidateName, error) {
	pattern := "%" + escapeLike(query) + "%"
	q := `SELECT id,workspace_id,name,created_by,created_at FROM candidate_names
WHERE workspace_id=? AND name LIKE ? ESCAPE '\' COLLATE NOCASE`
	args := []any{workspaceID, pattern}
	if len(exclude) > 0 {
		q += ` AND id NOT IN (?` + strings.Repeat(",?", len(exclude)-1) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	q += ` ORDER BY name COLLATE NOCASE ASC, id ASC`
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CandidateName
	for rows.Next() {
		var cn domain.CandidateName
		if err := rows.Scan(&cn.ID, &cn.WorkspaceID, &cn.Name, &cn.CreatedBy, &cn.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, cn)
	}
	return res, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

const candidateColumns = `id,calling_id,candidate_name_id,status,notes,deleted_at,created_by,created_at,updated_at`

func scanCandidate(scan func(dest ...any) error) (domain.CallingCandidate, error) {
	var c domain.CallingCandidate
	var notes, deletedAt sql.NullString
	err := scan(&c.ID, &c.CallingID, &c.CandidateNameID, &c.Status, &notes, &deletedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if notes.Valid {
		c.Notes = &notes.String
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.String
	}
	return c, nil
}

func (r Repo) InsertCallingCandidate(ctx context.Context, tx *sql.Tx, c domain.CallingCandidate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO calling_candidates(id,calling_id,candidate_name_id,status,notes,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.CallingID, c.CandidateNameID, c.Status, nullableStringPtr(c.Notes), c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCallingCandidate(ctx context.Context, id string) (domain.CallingCandidate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM calling_candidates WHERE id=?`, id)
	c, err := scanCandidate(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetCallingCandidateTx(ctx context.Context, tx *sql.Tx, id string) (domain.CallingCandidate, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM calling_candidates WHERE id=?`, id)
	c, err := scanCandidate(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ActiveCandidateByName returns the live pool entry for a name, if one exists.
func (r Repo) ActiveCandidateByName(ctx context.Context, tx *sql.Tx, callingID, candidateNameID string) (domain.CallingCandidate, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM calling_candidates WHERE calling_id=? AND candidate_name_id=? AND deleted_at IS NULL`,
		callingID, candidateNameID)
	c, err := scanCandidate(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListCallingCandidates orders the pool by status precedence then recency.
// Soft-deleted entries are excluded unless includeDeleted is set.
func (r Repo) ListCallingCandidates(ctx context.Context, callingID string, includeDeleted bool) ([]domain.CallingCandidate, error) {
	where := "calling_id=?"
	if !includeDeleted {
		where += " AND deleted_at IS NULL"
	}
	query := `SELECT ` + candidateColumns + ` FROM calling_candidates WHERE ` + where + `
ORDER BY CASE status WHEN 'selected' THEN 0 WHEN 'discussing' THEN 1 WHEN 'proposed' THEN 2 ELSE 3 END, created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, callingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CallingCandidate
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateCallingCandidate(ctx context.Context, tx *sql.Tx, id string, status *string, notes *string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if status != nil {
		fields = append(fields, "status=?")
		args = append(args, *status)
	}
	if notes != nil {
		fields = append(fields, "notes=?")
		args = append(args, nullable(*notes))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := tx.ExecContext(ctx, `UPDATE calling_candidates SET `+strings.Join(fields, ",")+` WHERE id=? AND deleted_at IS NULL`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetCandidateStatus(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE calling_candidates SET status=?, updated_at=? WHERE id=? AND deleted_at IS NULL`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SoftDeleteCandidate(ctx context.Context, tx *sql.Tx, id, deletedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE calling_candidates SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`, deletedAt, deletedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) RestoreCandidate(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE calling_candidates SET deleted_at=NULL, updated_at=? WHERE id=? AND deleted_at IS NOT NULL`, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeDeletedCandidates removes soft-deleted entries older than the cutoff
// and returns how many rows were dropped.
func (r Repo) PurgeDeletedCandidates(ctx context.Context, cutoff string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM calling_candidates WHERE deleted_at IS NOT NULL AND deleted_at < ?
AND id NOT IN (SELECT calling_candidate_id FROM calling_processes WHERE calling_candidate_id IS NOT NULL)`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
