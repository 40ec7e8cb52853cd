package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wardline/internal/config"
	"wardline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertWorkspace(ctx context.Context, tx *sql.Tx, w domain.Workspace) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workspaces(id,name,created_at) VALUES (?,?,?)`,
		w.ID, w.Name, w.CreatedAt)
	return err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	var w domain.Workspace
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM workspaces WHERE id=?`, id).
		Scan(&w.ID, &w.Name, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM workspaces ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workspace
	for rows.Next() {
		var w domain.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, nil
}

func (r Repo) SingleWorkspace(ctx context.Context) (domain.Workspace, error) {
	workspaces, err := r.ListWorkspaces(ctx)
	if err != nil {
		return domain.Workspace{}, err
	}
	if len(workspaces) == 0 {
		return domain.Workspace{}, ErrNotFound
	}
	if len(workspaces) > 1 {
		return domain.Workspace{}, fmt.Errorf("multiple workspaces exist; specify --workspace")
	}
	return workspaces[0], nil
}

func (r Repo) UpsertMember(ctx context.Context, tx *sql.Tx, m domain.Member) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO members(workspace_id,actor_id,name,role,created_at,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(workspace_id,actor_id) DO UPDATE SET name=excluded.name, role=excluded.role, updated_at=excluded.updated_at`,
		m.WorkspaceID, m.ActorID, nullable(m.Name), m.Role, m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) GetMember(ctx context.Context, workspaceID, actorID string) (domain.Member, error) {
	var m domain.Member
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT workspace_id,actor_id,name,role,created_at,updated_at FROM members WHERE workspace_id=? AND actor_id=?`,
		workspaceID, actorID).
		Scan(&m.WorkspaceID, &m.ActorID, &name, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if name.Valid {
		m.Name = name.String
	}
	return m, err
}

func (r Repo) ListMembers(ctx context.Context, workspaceID string) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT workspace_id,actor_id,name,role,created_at,updated_at FROM members WHERE workspace_id=? ORDER BY created_at ASC, actor_id ASC`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		var name sql.NullString
		if err := rows.Scan(&m.WorkspaceID, &m.ActorID, &name, &m.Role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			m.Name = name.String
		}
		res = append(res, m)
	}
	return res, nil
}

func (r Repo) DeleteMember(ctx context.Context, workspaceID, actorID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM members WHERE workspace_id=? AND actor_id=?`, workspaceID, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertWorkspaceConfig(ctx context.Context, workspaceID string, cfg *config.Config) error {
	return upsertWorkspaceConfig(ctx, r.DB, nil, workspaceID, cfg)
}

func (r Repo) UpsertWorkspaceConfigTx(ctx context.Context, tx *sql.Tx, workspaceID string, cfg *config.Config) error {
	return upsertWorkspaceConfig(ctx, nil, tx, workspaceID, cfg)
}

func upsertWorkspaceConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, workspaceID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Workspace.ID = workspaceID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO workspace_configs(workspace_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(workspace_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, workspaceID, string(payload), now, now)
	return err
}

func (r Repo) GetWorkspaceConfig(ctx context.Context, workspaceID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM workspace_configs WHERE workspace_id=?`, workspaceID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Workspace.ID == "" {
		cfg.Workspace.ID = workspaceID
	}
	return &cfg, cfg.Validate()
}

func (r Repo) InsertCalling(ctx context.Context, c domain.Calling) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO callings(id,workspace_id,title,organization,is_filled,filled_by,filled_at,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.WorkspaceID, c.Title, nullableStringPtr(c.Organization), c.IsFilled, nullableStringPtr(c.FilledBy), nullableStringPtr(c.FilledAt), c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func scanCalling(scan func(dest ...any) error) (domain.Calling, error) {
	var c domain.Calling
	var organization, filledBy, filledAt sql.NullString
	err := scan(&c.ID, &c.WorkspaceID, &c.Title, &organization, &c.IsFilled, &filledBy, &filledAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if organization.Valid {
		c.Organization = &organization.String
	}
	if filledBy.Valid {
		c.FilledBy = &filledBy.String
	}
	if filledAt.Valid {
		c.FilledAt = &filledAt.String
	}
	return c, nil
}

const callingColumns = `id,workspace_id,title,organization,is_filled,filled_by,filled_at,created_by,created_at,updated_at`

func (r Repo) GetCalling(ctx context.Context, id string) (domain.Calling, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+callingColumns+` FROM callings WHERE id=?`, id)
	c, err := scanCalling(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) GetCallingTx(ctx context.Context, tx *sql.Tx, id string) (domain.Calling, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+callingColumns+` FROM callings WHERE id=?`, id)
	c, err := scanCalling(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

type CallingFilters struct {
	WorkspaceID     string
	Filled          *bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListCallings(ctx context.Context, f CallingFilters) ([]domain.Calling, error) {
	clauses := []string{"workspace_id=?"}
	args := []any{f.WorkspaceID}
	if f.Filled != nil {
		clauses = append(clauses, "is_filled=?")
		args = append(args, *f.Filled)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + callingColumns + ` FROM callings WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Calling
	for rows.Next() {
		c, err := scanCalling(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateCalling(ctx context.Context, id string, title, organization *string, updatedAt string) error {
	var (
		fields []string
		args   []any
	)
	if title != nil {
		fields = append(fields, "title=?")
		args = append(args, *title)
	}
	if organization != nil {
		fields = append(fields, "organization=?")
		args = append(args, nullable(*organization))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE callings SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkCallingFilled(ctx context.Context, tx *sql.Tx, id, filledBy, filledAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE callings SET is_filled=1, filled_by=?, filled_at=?, updated_at=? WHERE id=?`,
		filledBy, filledAt, filledAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCalling(ctx context.Context, tx *sql.Tx, id string) error {
	for _, q := range []string{
		`DELETE FROM calling_history WHERE process_id IN (SELECT id FROM calling_processes WHERE calling_id=?)`,
		`DELETE FROM calling_comments WHERE process_id IN (SELECT id FROM calling_processes WHERE calling_id=?)`,
		`DELETE FROM calling_tasks WHERE process_id IN (SELECT id FROM calling_processes WHERE calling_id=?)`,
		`DELETE FROM calling_processes WHERE calling_id=?`,
		`DELETE FROM calling_candidates WHERE calling_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM callings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
