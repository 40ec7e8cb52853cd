package repo

import (
	"context"
	"database/sql"

	"wardline/internal/domain"
)

func (r Repo) UpsertDashboardLayout(ctx context.Context, l domain.DashboardLayout) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO dashboard_layouts(workspace_id,actor_id,layout_json,created_at,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(workspace_id,actor_id) DO UPDATE SET layout_json=excluded.layout_json, updated_at=excluded.updated_at`,
		l.WorkspaceID, l.ActorID, l.LayoutJSON, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) GetDashboardLayout(ctx context.Context, workspaceID, actorID string) (domain.DashboardLayout, error) {
	var l domain.DashboardLayout
	err := r.DB.QueryRowContext(ctx, `SELECT workspace_id,actor_id,layout_json,created_at,updated_at FROM dashboard_layouts WHERE workspace_id=? AND actor_id=?`,
		workspaceID, actorID).
		Scan(&l.WorkspaceID, &l.ActorID, &l.LayoutJSON, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) DeleteDashboardLayout(ctx context.Context, workspaceID, actorID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM dashboard_layouts WHERE workspace_id=? AND actor_id=?`, workspaceID, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CallingCounts holds the aggregates behind the fill-rate widget.
type CallingCounts struct {
	Total    int
	Filled   int
	Unfilled int
}

func (r Repo) CountCallings(ctx context.Context, workspaceID string) (CallingCounts, error) {
	var c CallingCounts
	err := r.DB.QueryRowContext(ctx, `SELECT count(*), COALESCE(SUM(CASE WHEN is_filled THEN 1 ELSE 0 END),0) FROM callings WHERE workspace_id=?`, workspaceID).
		Scan(&c.Total, &c.Filled)
	if err != nil {
		return c, err
	}
	c.Unfilled = c.Total - c.Filled
	return c, nil
}

func (r Repo) CountProcessesByStatus(ctx context.Context, workspaceID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT p.status, count(*) FROM calling_processes p JOIN callings c ON c.id=p.calling_id WHERE c.workspace_id=? GROUP BY p.status`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}
