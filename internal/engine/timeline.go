package engine

import (
	"context"
	"sort"

	"wardline/internal/domain"
	"wardline/internal/repo"
)

// TimelineItem is one row of a process's merged activity feed.
type TimelineItem struct {
	Type      string               `json:"type" enum:"history,comment,task"`
	CreatedAt string               `json:"created_at" format:"date-time"`
	History   *domain.HistoryEntry `json:"history,omitempty"`
	Comment   *domain.Comment      `json:"comment,omitempty"`
	Task      *domain.CallingTask  `json:"task,omitempty"`
}

// ProcessTimeline merges history, comments, and tasks into one feed ordered
// oldest first. Items sharing a timestamp sort history before comments before
// tasks so the order is deterministic.
func (e Engine) ProcessTimeline(ctx context.Context, processID string) ([]TimelineItem, error) {
	if _, err := e.Repo.GetProcess(ctx, processID); err != nil {
		return nil, err
	}
	entries, err := e.Repo.ListProcessHistory(ctx, processID)
	if err != nil {
		return nil, err
	}
	comments, err := e.Repo.ListComments(ctx, processID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProcessID: processID})
	if err != nil {
		return nil, err
	}
	items := make([]TimelineItem, 0, len(entries)+len(comments)+len(tasks))
	for i := range entries {
		items = append(items, TimelineItem{Type: "history", CreatedAt: entries[i].CreatedAt, History: &entries[i]})
	}
	for i := range comments {
		items = append(items, TimelineItem{Type: "comment", CreatedAt: comments[i].CreatedAt, Comment: &comments[i]})
	}
	for i := range tasks {
		items = append(items, TimelineItem{Type: "task", CreatedAt: tasks[i].CreatedAt, Task: &tasks[i]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return typeRank(items[i].Type) < typeRank(items[j].Type)
	})
	return items, nil
}

func typeRank(t string) int {
	switch t {
	case "history":
		return 0
	case "comment":
		return 1
	default:
		return 2
	}
}
