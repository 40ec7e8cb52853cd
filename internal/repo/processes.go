package repo

import (
	"context"
	"database/sql"
	"strings"

	"wardline/internal/domain"
)

const processColumns = `id,calling_id,candidate_name_id,calling_candidate_id,current_stage,status,dropped_reason,created_by,created_at,updated_at`

func scanProcess(scan func(dest ...any) error) (domain.Process, error) {
	var p domain.Process
	var candidateID, droppedReason sql.NullString
	err := scan(&p.ID, &p.CallingID, &p.CandidateNameID, &candidateID, &p.CurrentStage, &p.Status, &droppedReason, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if candidateID.Valid {
		p.CallingCandidateID = &candidateID.String
	}
	if droppedReason.Valid {
		p.DroppedReason = &droppedReason.String
	}
	return p, nil
}

func (r Repo) InsertProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO calling_processes(id,calling_id,candidate_name_id,calling_candidate_id,current_stage,status,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CallingID, p.CandidateNameID, nullableStringPtr(p.CallingCandidateID), p.CurrentStage, p.Status, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+processColumns+` FROM calling_processes WHERE id=?`, id)
	p, err := scanProcess(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetProcessTx(ctx context.Context, tx *sql.Tx, id string) (domain.Process, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+processColumns+` FROM calling_processes WHERE id=?`, id)
	p, err := scanProcess(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ActiveProcessByCalling returns the single live process for a calling. The
// schema enforces at most one via a partial unique index.
func (r Repo) ActiveProcessByCalling(ctx context.Context, tx *sql.Tx, callingID string) (domain.Process, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+processColumns+` FROM calling_processes WHERE calling_id=? AND status='active'`, callingID)
	p, err := scanProcess(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

type ProcessFilters struct {
	WorkspaceID     string
	CallingID       string
	Status          string
	Stage           string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListProcesses(ctx context.Context, f ProcessFilters) ([]domain.Process, error) {
	clauses := []string{"c.workspace_id=?"}
	args := []any{f.WorkspaceID}
	if f.CallingID != "" {
		clauses = append(clauses, "p.calling_id=?")
		args = append(args, f.CallingID)
	}
	if f.Status != "" {
		clauses = append(clauses, "p.status=?")
		args = append(args, f.Status)
	}
	if f.Stage != "" {
		clauses = append(clauses, "p.current_stage=?")
		args = append(args, f.Stage)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(p.created_at < ? OR (p.created_at = ? AND p.id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT p.id,p.calling_id,p.candidate_name_id,p.calling_candidate_id,p.current_stage,p.status,p.dropped_reason,p.created_by,p.created_at,p.updated_at
FROM calling_processes p JOIN callings c ON c.id=p.calling_id
WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY p.created_at DESC, p.id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// ProcessOverview is a pipeline row joined with its calling and candidate.
type ProcessOverview struct {
	ProcessID     string `json:"process_id"`
	CallingID     string `json:"calling_id"`
	CallingTitle  string `json:"calling_title"`
	Organization  string `json:"organization,omitempty"`
	CandidateName string `json:"candidate_name"`
	CurrentStage  string `json:"current_stage"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// ActiveProcessOverviews feeds the pipeline dashboard widget.
func (r Repo) ActiveProcessOverviews(ctx context.Context, workspaceID string) ([]ProcessOverview, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT p.id,p.calling_id,c.title,COALESCE(c.organization,''),n.name,p.current_stage,p.updated_at
FROM calling_processes p
JOIN callings c ON c.id=p.calling_id
JOIN candidate_names n ON n.id=p.candidate_name_id
WHERE c.workspace_id=? AND p.status='active'
ORDER BY p.updated_at DESC, p.id DESC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ProcessOverview
	for rows.Next() {
		var o ProcessOverview
		if err := rows.Scan(&o.ProcessID, &o.CallingID, &o.CallingTitle, &o.Organization, &o.CandidateName, &o.CurrentStage, &o.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, nil
}

func (r Repo) UpdateProcessStage(ctx context.Context, tx *sql.Tx, id, stage, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE calling_processes SET current_stage=?, updated_at=? WHERE id=?`, stage, updatedAt, id)
	return err
}

func (r Repo) CompleteProcess(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE calling_processes SET status='completed', updated_at=? WHERE id=?`, updatedAt, id)
	return err
}

func (r Repo) DropProcess(ctx context.Context, tx *sql.Tx, id, reason, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE calling_processes SET status='dropped', dropped_reason=?, updated_at=? WHERE id=?`, nullable(reason), updatedAt, id)
	return err
}

func scanHistory(scan func(dest ...any) error) (domain.HistoryEntry, error) {
	var h domain.HistoryEntry
	var fromValue, toValue, notes sql.NullString
	err := scan(&h.ID, &h.ProcessID, &h.Action, &fromValue, &toValue, &notes, &h.ActorID, &h.CreatedAt)
	if err != nil {
		return h, err
	}
	if fromValue.Valid {
		h.FromValue = &fromValue.String
	}
	if toValue.Valid {
		h.ToValue = &toValue.String
	}
	if notes.Valid {
		h.Notes = &notes.String
	}
	return h, nil
}

// ListProcessHistory returns entries oldest first.
func (r Repo) ListProcessHistory(ctx context.Context, processID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,process_id,action,from_value,to_value,notes,actor_id,created_at FROM calling_history WHERE process_id=? ORDER BY id ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, nil
}

// HistoryAfter returns entries with IDs greater than the cursor in ascending
// order, across the whole workspace. The webhook dispatcher polls with this.
func (r Repo) HistoryAfter(ctx context.Context, limit int, cursor int64, workspaceID string) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT h.id,h.process_id,h.action,h.from_value,h.to_value,h.notes,h.actor_id,h.created_at
FROM calling_history h
JOIN calling_processes p ON p.id=h.process_id
JOIN callings c ON c.id=p.calling_id
WHERE c.workspace_id=? AND h.id>? ORDER BY h.id ASC LIMIT ?`, workspaceID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, nil
}

// LatestHistoryID returns the most recent history ID for a workspace.
func (r Repo) LatestHistoryID(ctx context.Context, workspaceID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(h.id),0)
FROM calling_history h
JOIN calling_processes p ON p.id=h.process_id
JOIN callings c ON c.id=p.calling_id
WHERE c.workspace_id=?`, workspaceID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
