package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardline/internal/config"
	"wardline/internal/domain"
	"wardline/internal/history"
	"wardline/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// InitWorkspace creates a workspace, seeds its first admin member, and stores
// the default config. Migrations must already have run.
func (e Engine) InitWorkspace(ctx context.Context, workspaceID, name, actorID string) (domain.Workspace, error) {
	if workspaceID == "" {
		return domain.Workspace{}, errors.New("workspace id is required")
	}
	if actorID == "" {
		return domain.Workspace{}, errors.New("actor is required")
	}
	if name == "" {
		name = workspaceID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workspace{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	w := domain.Workspace{ID: workspaceID, Name: name, CreatedAt: now}
	if err := e.Repo.InsertWorkspace(ctx, tx, w); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	admin := domain.Member{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Role:        "admin",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.UpsertMember(ctx, tx, admin); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert member: %w", err)
	}
	if err := e.Repo.UpsertWorkspaceConfigTx(ctx, tx, workspaceID, config.Default(workspaceID)); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert workspace config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Workspace{}, err
	}
	return w, nil
}

// AddMember registers or updates a member in a workspace.
func (e Engine) AddMember(ctx context.Context, workspaceID, actorID, name, role string) (domain.Member, error) {
	switch role {
	case "admin", "leader", "member":
	case "":
		role = "member"
	default:
		return domain.Member{}, fmt.Errorf("unknown role %q", role)
	}
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return domain.Member{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Member{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	m := domain.Member{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Name:        name,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing, err := e.Repo.GetMember(ctx, workspaceID, actorID); err == nil {
		m.CreatedAt = existing.CreatedAt
		if m.Name == "" {
			m.Name = existing.Name
		}
	} else if err != repo.ErrNotFound {
		return domain.Member{}, err
	}
	if err := e.Repo.UpsertMember(ctx, tx, m); err != nil {
		return domain.Member{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Member{}, err
	}
	return m, nil
}

// CanManage reports whether the actor's role in the workspace allows
// mutations, per the workspace config.
func (e Engine) CanManage(ctx context.Context, workspaceID, actorID string) (bool, error) {
	m, err := e.Repo.GetMember(ctx, workspaceID, actorID)
	if err == repo.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, role := range e.Config.ManagingRoles() {
		if m.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// CallingCreateOptions are parameters for creating a calling.
type CallingCreateOptions struct {
	ID           string
	WorkspaceID  string
	Title        string
	Organization string
	ActorID      string
}

func (e Engine) CreateCalling(ctx context.Context, opts CallingCreateOptions) (domain.Calling, error) {
	if opts.Title == "" {
		return domain.Calling{}, errors.New("title is required")
	}
	if opts.WorkspaceID == "" {
		return domain.Calling{}, errors.New("workspace is required")
	}
	if _, err := e.Repo.GetWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Calling{}, err
	}
	now := e.timestamp()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Calling{
		ID:           id,
		WorkspaceID:  opts.WorkspaceID,
		Title:        opts.Title,
		Organization: optionalString(opts.Organization),
		CreatedBy:    opts.ActorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.Repo.InsertCalling(ctx, c); err != nil {
		return domain.Calling{}, fmt.Errorf("insert calling: %w", err)
	}
	return c, nil
}

func (e Engine) UpdateCalling(ctx context.Context, id string, title, organization *string) (domain.Calling, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return domain.Calling{}, errors.New("title cannot be empty")
	}
	if err := e.Repo.UpdateCalling(ctx, id, title, organization, e.timestamp()); err != nil {
		return domain.Calling{}, err
	}
	return e.Repo.GetCalling(ctx, id)
}

// DeleteCalling removes a calling and everything hanging off it. Callings
// with an active process must be dropped first.
func (e Engine) DeleteCalling(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetCallingTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := e.Repo.ActiveProcessByCalling(ctx, tx, id); err == nil {
		return errors.New("calling has an active process; drop it first")
	} else if err != repo.ErrNotFound {
		return err
	}
	if err := e.Repo.DeleteCalling(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
