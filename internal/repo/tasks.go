package repo

import (
	"context"
	"database/sql"
	"strings"

	"wardline/internal/domain"
)

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO calling_comments(id,process_id,content,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.ProcessID, c.Content, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var c domain.Comment
	err := r.DB.QueryRowContext(ctx, `SELECT id,process_id,content,created_by,created_at,updated_at FROM calling_comments WHERE id=?`, id).
		Scan(&c.ID, &c.ProcessID, &c.Content, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListComments(ctx context.Context, processID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,process_id,content,created_by,created_at,updated_at FROM calling_comments WHERE process_id=? ORDER BY created_at ASC, id ASC`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.ProcessID, &c.Content, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateComment(ctx context.Context, id, content, updatedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE calling_comments SET content=?, updated_at=? WHERE id=?`, content, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteComment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM calling_comments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const taskColumns = `id,workspace_id,process_id,title,description,assigned_to,due_date,priority,status,completed_at,created_by,created_at`

func scanTask(scan func(dest ...any) error) (domain.CallingTask, error) {
	var t domain.CallingTask
	var description, assignedTo, dueDate, completedAt sql.NullString
	err := scan(&t.ID, &t.WorkspaceID, &t.ProcessID, &t.Title, &description, &assignedTo, &dueDate, &t.Priority, &t.Status, &completedAt, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.CallingTask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO calling_tasks(id,workspace_id,process_id,title,description,assigned_to,due_date,priority,status,created_by,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.WorkspaceID, t.ProcessID, t.Title, nullableStringPtr(t.Description), nullableStringPtr(t.AssignedTo), nullableStringPtr(t.DueDate), t.Priority, t.Status, t.CreatedBy, t.CreatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.CallingTask, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM calling_tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.CallingTask, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM calling_tasks WHERE id=?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	WorkspaceID string
	ProcessID   string
	Status      string
	AssignedTo  string
	Limit       int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.CallingTask, error) {
	var clauses []string
	var args []any
	if f.WorkspaceID != "" {
		clauses = append(clauses, "workspace_id=?")
		args = append(args, f.WorkspaceID)
	}
	if f.ProcessID != "" {
		clauses = append(clauses, "process_id=?")
		args = append(args, f.ProcessID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM calling_tasks ` + where + `
ORDER BY CASE status WHEN 'pending' THEN 0 ELSE 1 END,
CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CallingTask
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) CompleteTask(ctx context.Context, tx *sql.Tx, id, completedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE calling_tasks SET status='completed', completed_at=? WHERE id=? AND status='pending'`, completedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountPendingTasks(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM calling_tasks WHERE workspace_id=? AND status='pending'`, workspaceID).Scan(&n)
	return n, err
}
