package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"wardline/internal/domain"
	"wardline/internal/repo"
)

// PipelineData backs the calling pipeline widget.
type PipelineData struct {
	Processes   []repo.ProcessOverview `json:"processes"`
	TotalActive int                    `json:"total_active"`
}

// FillRateData backs the fill-rate KPI widget.
type FillRateData struct {
	FillRate      float64 `json:"fill_rate"`
	UnfilledCount int     `json:"unfilled_count"`
	TotalCallings int     `json:"total_callings"`
}

// DashboardSummary is everything the dashboard widgets need in one response.
type DashboardSummary struct {
	Pipeline     PipelineData   `json:"pipeline"`
	FillRate     FillRateData   `json:"fill_rate"`
	PendingTasks int            `json:"pending_tasks"`
	ByStatus     map[string]int `json:"processes_by_status"`
}

func (e Engine) Dashboard(ctx context.Context, workspaceID string) (DashboardSummary, error) {
	var s DashboardSummary
	overviews, err := e.Repo.ActiveProcessOverviews(ctx, workspaceID)
	if err != nil {
		return s, err
	}
	s.Pipeline = PipelineData{Processes: overviews, TotalActive: len(overviews)}
	counts, err := e.Repo.CountCallings(ctx, workspaceID)
	if err != nil {
		return s, err
	}
	s.FillRate = FillRateData{UnfilledCount: counts.Unfilled, TotalCallings: counts.Total}
	if counts.Total > 0 {
		s.FillRate.FillRate = float64(counts.Filled) / float64(counts.Total)
	}
	s.PendingTasks, err = e.Repo.CountPendingTasks(ctx, workspaceID)
	if err != nil {
		return s, err
	}
	s.ByStatus, err = e.Repo.CountProcessesByStatus(ctx, workspaceID)
	if err != nil {
		return s, err
	}
	return s, nil
}

// Widget is one cell of a dashboard layout document.
type Widget struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Column  int    `json:"column"`
	Order   int    `json:"order"`
	Visible bool   `json:"visible"`
	IsKPI   bool   `json:"is_kpi"`
}

// Layout is the persisted dashboard arrangement for one member.
type Layout struct {
	Version int      `json:"version"`
	Columns int      `json:"columns"`
	Widgets []Widget `json:"widgets"`
}

const layoutVersion = 1

var knownWidgetTypes = map[string]bool{
	"calling_pipeline": true,
	"kpi_fill_rate":    true,
	"pending_tasks":    true,
	"recent_activity":  true,
}

// DefaultLayout is what members see before they customize anything.
func DefaultLayout() Layout {
	return Layout{
		Version: layoutVersion,
		Columns: 2,
		Widgets: []Widget{
			{ID: "pipeline", Type: "calling_pipeline", Column: 0, Order: 0, Visible: true},
			{ID: "fill-rate", Type: "kpi_fill_rate", Column: 1, Order: 0, Visible: true, IsKPI: true},
			{ID: "tasks", Type: "pending_tasks", Column: 1, Order: 1, Visible: true},
			{ID: "activity", Type: "recent_activity", Column: 0, Order: 1, Visible: true},
		},
	}
}

func validateLayout(l Layout) error {
	if l.Version != layoutVersion {
		return fmt.Errorf("unsupported layout version %d", l.Version)
	}
	if l.Columns < 1 || l.Columns > 4 {
		return fmt.Errorf("columns must be between 1 and 4")
	}
	seen := map[string]bool{}
	for _, w := range l.Widgets {
		if w.ID == "" {
			return fmt.Errorf("widget id is required")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate widget id %s", w.ID)
		}
		seen[w.ID] = true
		if !knownWidgetTypes[w.Type] {
			return fmt.Errorf("unknown widget type %q", w.Type)
		}
		if w.Column < 0 || w.Column >= l.Columns {
			return fmt.Errorf("widget %s column out of range", w.ID)
		}
	}
	return nil
}

// GetLayout returns the member's saved layout, or the default when none is
// stored yet.
func (e Engine) GetLayout(ctx context.Context, workspaceID, actorID string) (Layout, error) {
	stored, err := e.Repo.GetDashboardLayout(ctx, workspaceID, actorID)
	if err == repo.ErrNotFound {
		return DefaultLayout(), nil
	}
	if err != nil {
		return Layout{}, err
	}
	var l Layout
	if err := json.Unmarshal([]byte(stored.LayoutJSON), &l); err != nil {
		return Layout{}, fmt.Errorf("stored layout corrupt: %w", err)
	}
	return l, nil
}

// SaveLayout validates and replaces the member's layout as a whole document.
func (e Engine) SaveLayout(ctx context.Context, workspaceID, actorID string, l Layout) (Layout, error) {
	if l.Version == 0 {
		l.Version = layoutVersion
	}
	if err := validateLayout(l); err != nil {
		return Layout{}, err
	}
	payload, err := json.Marshal(l)
	if err != nil {
		return Layout{}, err
	}
	now := e.timestamp()
	rec := domain.DashboardLayout{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		LayoutJSON:  string(payload),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.UpsertDashboardLayout(ctx, rec); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// ResetLayout deletes any saved layout so the default applies again.
func (e Engine) ResetLayout(ctx context.Context, workspaceID, actorID string) error {
	err := e.Repo.DeleteDashboardLayout(ctx, workspaceID, actorID)
	if err == repo.ErrNotFound {
		return nil
	}
	return err
}
