package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"wardline/internal/domain"
	"wardline/internal/history"
	"wardline/internal/repo"
	"wardline/internal/stage"
)

// ensureStageTransition allows moves to the immediate next stage only.
// Entering the terminal stage additionally requires confirm.
func ensureStageTransition(from, to stage.Stage, confirm bool) error {
	if !stage.Valid(to) {
		return fmt.Errorf("unknown stage %q", to)
	}
	next, ok := stage.Next(from)
	if !ok {
		return fmt.Errorf("process already at final stage %s", from)
	}
	if to != next {
		return fmt.Errorf("cannot move from %s to %s; next stage is %s", from, to, next)
	}
	if stage.IsTerminal(to) && !confirm {
		return fmt.Errorf("advancing to %s is permanent; pass confirm", to)
	}
	return nil
}

// ProcessStartOptions are parameters for starting a calling process. The
// candidate is chosen by pool entry id, or by candidate name id when no pool
// entry exists yet (one is created on the fly).
type ProcessStartOptions struct {
	CallingID          string
	CallingCandidateID string
	CandidateNameID    string
	ActorID            string
}

// StartProcess opens a process for the chosen candidate. The calling must be
// unfilled and have no other active process; the pool entry is marked
// selected in the same transaction.
func (e Engine) StartProcess(ctx context.Context, opts ProcessStartOptions) (domain.Process, error) {
	if opts.CallingID == "" || (opts.CallingCandidateID == "" && opts.CandidateNameID == "") {
		return domain.Process{}, errors.New("calling and candidate are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Process{}, err
	}
	defer tx.Rollback()

	calling, err := e.Repo.GetCallingTx(ctx, tx, opts.CallingID)
	if err != nil {
		return domain.Process{}, err
	}
	if calling.IsFilled {
		return domain.Process{}, errors.New("calling is already filled")
	}
	if _, err := e.Repo.ActiveProcessByCalling(ctx, tx, opts.CallingID); err == nil {
		return domain.Process{}, errors.New("calling already has an active process")
	} else if err != repo.ErrNotFound {
		return domain.Process{}, err
	}
	now := e.timestamp()
	cand, err := e.resolveStartCandidate(ctx, tx, opts, now)
	if err != nil {
		return domain.Process{}, err
	}
	if cand.CallingID != opts.CallingID {
		return domain.Process{}, errors.New("candidate belongs to a different calling")
	}
	if cand.DeletedAt != nil {
		return domain.Process{}, errors.New("candidate was removed from the pool")
	}
	if cand.Status != "selected" {
		if err := e.Repo.SetCandidateStatus(ctx, tx, cand.ID, "selected", now); err != nil {
			return domain.Process{}, err
		}
	}
	p := domain.Process{
		ID:                 uuid.New().String(),
		CallingID:          opts.CallingID,
		CandidateNameID:    cand.CandidateNameID,
		CallingCandidateID: &cand.ID,
		CurrentStage:       string(stage.Defined),
		Status:             "active",
		CreatedBy:          opts.ActorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
		return domain.Process{}, fmt.Errorf("insert process: %w", err)
	}
	if err := e.History.Append(ctx, tx, p.ID, opts.ActorID, history.Entry{
		Action:  history.ActionProcessStarted,
		ToValue: string(stage.Defined),
	}); err != nil {
		return domain.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

// resolveStartCandidate loads the pool entry to start from, creating one when
// the caller only supplied a candidate name id.
func (e Engine) resolveStartCandidate(ctx context.Context, tx *sql.Tx, opts ProcessStartOptions, now string) (domain.CallingCandidate, error) {
	if opts.CallingCandidateID != "" {
		return e.Repo.GetCallingCandidateTx(ctx, tx, opts.CallingCandidateID)
	}
	existing, err := e.Repo.ActiveCandidateByName(ctx, tx, opts.CallingID, opts.CandidateNameID)
	if err == nil {
		return existing, nil
	}
	if err != repo.ErrNotFound {
		return domain.CallingCandidate{}, err
	}
	if _, err := e.Repo.GetCandidateName(ctx, opts.CandidateNameID); err != nil {
		return domain.CallingCandidate{}, err
	}
	c := domain.CallingCandidate{
		ID:              uuid.New().String(),
		CallingID:       opts.CallingID,
		CandidateNameID: opts.CandidateNameID,
		Status:          "proposed",
		CreatedBy:       opts.ActorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertCallingCandidate(ctx, tx, c); err != nil {
		return domain.CallingCandidate{}, fmt.Errorf("insert calling candidate: %w", err)
	}
	return c, nil
}

// StageAdvanceOptions are parameters for moving a process forward.
type StageAdvanceOptions struct {
	ProcessID string
	ToStage   string
	Confirm   bool
	ActorID   string
}

// AdvanceStage moves an active process to its next stage. Reaching the
// terminal stage completes the process and fills the calling, all in one
// transaction.
func (e Engine) AdvanceStage(ctx context.Context, opts StageAdvanceOptions) (domain.Process, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Process{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProcessTx(ctx, tx, opts.ProcessID)
	if err != nil {
		return domain.Process{}, err
	}
	if p.Status != "active" {
		return domain.Process{}, fmt.Errorf("process is %s", p.Status)
	}
	from := stage.Stage(p.CurrentStage)
	to := stage.Stage(opts.ToStage)
	if opts.ToStage == "" {
		next, ok := stage.Next(from)
		if !ok {
			return domain.Process{}, fmt.Errorf("process already at final stage %s", from)
		}
		to = next
	}
	if err := ensureStageTransition(from, to, opts.Confirm); err != nil {
		return domain.Process{}, err
	}
	now := e.timestamp()
	if err := e.Repo.UpdateProcessStage(ctx, tx, p.ID, string(to), now); err != nil {
		return domain.Process{}, err
	}
	if err := e.History.Append(ctx, tx, p.ID, opts.ActorID, history.Entry{
		Action:    history.ActionStageChanged,
		FromValue: string(from),
		ToValue:   string(to),
	}); err != nil {
		return domain.Process{}, err
	}
	if stage.IsTerminal(to) {
		if err := e.Repo.CompleteProcess(ctx, tx, p.ID, now); err != nil {
			return domain.Process{}, err
		}
		if err := e.Repo.MarkCallingFilled(ctx, tx, p.CallingID, p.CandidateNameID, now); err != nil {
			return domain.Process{}, err
		}
		if err := e.History.Append(ctx, tx, p.ID, opts.ActorID, history.Entry{
			Action:    history.ActionStatusChanged,
			FromValue: "active",
			ToValue:   "completed",
		}); err != nil {
			return domain.Process{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Process{}, err
	}
	return e.Repo.GetProcess(ctx, p.ID)
}

// DropProcess abandons an active process and archives its pool entry so the
// calling can start over with someone else.
func (e Engine) DropProcess(ctx context.Context, processID, reason, actorID string) (domain.Process, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Process{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProcessTx(ctx, tx, processID)
	if err != nil {
		return domain.Process{}, err
	}
	if p.Status != "active" {
		return domain.Process{}, fmt.Errorf("process is %s", p.Status)
	}
	now := e.timestamp()
	if err := e.Repo.DropProcess(ctx, tx, p.ID, reason, now); err != nil {
		return domain.Process{}, err
	}
	if p.CallingCandidateID != nil {
		if err := e.Repo.SetCandidateStatus(ctx, tx, *p.CallingCandidateID, "archived", now); err != nil && err != repo.ErrNotFound {
			return domain.Process{}, err
		}
	}
	if err := e.History.Append(ctx, tx, p.ID, actorID, history.Entry{
		Action:    history.ActionStatusChanged,
		FromValue: "active",
		ToValue:   "dropped",
		Notes:     reason,
	}); err != nil {
		return domain.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Process{}, err
	}
	return e.Repo.GetProcess(ctx, p.ID)
}

func (e Engine) AddComment(ctx context.Context, processID, content, actorID string) (domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Comment{}, errors.New("comment content is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProcessTx(ctx, tx, processID); err != nil {
		return domain.Comment{}, err
	}
	now := e.timestamp()
	c := domain.Comment{
		ID:        uuid.New().String(),
		ProcessID: processID,
		Content:   content,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if err := e.History.Append(ctx, tx, processID, actorID, history.Entry{
		Action: history.ActionCommentAdded,
	}); err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

// UpdateComment edits a comment body. Only the author may edit.
func (e Engine) UpdateComment(ctx context.Context, id, content, actorID string) (domain.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return domain.Comment{}, errors.New("comment content is required")
	}
	c, err := e.Repo.GetComment(ctx, id)
	if err != nil {
		return domain.Comment{}, err
	}
	if c.CreatedBy != actorID {
		return domain.Comment{}, errors.New("only the author can edit a comment")
	}
	if err := e.Repo.UpdateComment(ctx, id, content, e.timestamp()); err != nil {
		return domain.Comment{}, err
	}
	return e.Repo.GetComment(ctx, id)
}

func (e Engine) DeleteComment(ctx context.Context, id, actorID string) error {
	c, err := e.Repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.CreatedBy != actorID {
		return errors.New("only the author can delete a comment")
	}
	return e.Repo.DeleteComment(ctx, id)
}

// TaskCreateOptions are parameters for creating a followup task on a process.
type TaskCreateOptions struct {
	ProcessID   string
	Title       string
	Description string
	AssignedTo  string
	DueDate     string
	Priority    string
	ActorID     string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.CallingTask, error) {
	if opts.Title == "" {
		return domain.CallingTask{}, errors.New("title is required")
	}
	switch opts.Priority {
	case "low", "medium", "high":
	case "":
		opts.Priority = "medium"
	default:
		return domain.CallingTask{}, fmt.Errorf("unknown priority %q", opts.Priority)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallingTask{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProcessTx(ctx, tx, opts.ProcessID)
	if err != nil {
		return domain.CallingTask{}, err
	}
	calling, err := e.Repo.GetCallingTx(ctx, tx, p.CallingID)
	if err != nil {
		return domain.CallingTask{}, err
	}
	now := e.timestamp()
	t := domain.CallingTask{
		ID:          uuid.New().String(),
		WorkspaceID: calling.WorkspaceID,
		ProcessID:   opts.ProcessID,
		Title:       opts.Title,
		Description: optionalString(opts.Description),
		AssignedTo:  optionalString(opts.AssignedTo),
		DueDate:     optionalString(opts.DueDate),
		Priority:    opts.Priority,
		Status:      "pending",
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.CallingTask{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.History.Append(ctx, tx, opts.ProcessID, opts.ActorID, history.Entry{
		Action:  history.ActionTaskCreated,
		ToValue: t.Title,
	}); err != nil {
		return domain.CallingTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CallingTask{}, err
	}
	return t, nil
}

func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (domain.CallingTask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CallingTask{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.CallingTask{}, err
	}
	if t.Status == "completed" {
		return domain.CallingTask{}, errors.New("task is already completed")
	}
	now := e.timestamp()
	if err := e.Repo.CompleteTask(ctx, tx, id, now); err != nil {
		return domain.CallingTask{}, err
	}
	if err := e.History.Append(ctx, tx, t.ProcessID, actorID, history.Entry{
		Action:  history.ActionTaskCompleted,
		ToValue: t.Title,
	}); err != nil {
		return domain.CallingTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CallingTask{}, err
	}
	return e.Repo.GetTask(ctx, id)
}
