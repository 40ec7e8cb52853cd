package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wardline/internal/config"
	"wardline/internal/domain"
	"wardline/internal/repo"
)

// ResolveWorkspaceAndConfig picks the active workspace and ensures a
// workspace + config exist in the DB, seeding defaults if missing. It prefers
// the override, then a single-workspace DB. A workspace that does not exist
// yet is created on the fly with the actor as its first admin.
func ResolveWorkspaceAndConfig(ctx context.Context, workspaceOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	workspaceID := workspaceOverride
	if workspaceID == "" {
		if w, err := r.SingleWorkspace(ctx); err == nil {
			workspaceID = w.ID
		} else {
			return "", nil, fmt.Errorf("workspace not specified; use --workspace")
		}
	}
	seedCfg := config.Default(workspaceID)

	if _, err := r.GetWorkspace(ctx, workspaceID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createWorkspace(ctx, r, workspaceID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetWorkspaceConfig(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertWorkspaceConfig(ctx, workspaceID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed workspace config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Workspace.ID = workspaceID
	return workspaceID, cfg, nil
}

// createWorkspace inserts a minimal workspace footprint using the seed config.
func createWorkspace(ctx context.Context, r repo.Repo, workspaceID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(workspaceID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	w := domain.Workspace{ID: workspaceID, Name: seedCfg.Workspace.Name, CreatedAt: now}
	if w.Name == "" {
		w.Name = workspaceID
	}
	if err := r.InsertWorkspace(ctx, tx, w); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	if err := r.UpsertWorkspaceConfigTx(ctx, tx, workspaceID, seedCfg); err != nil {
		return fmt.Errorf("insert workspace config: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	m := domain.Member{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Role:        "admin",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.UpsertMember(ctx, tx, m); err != nil {
		return fmt.Errorf("seed admin member: %w", err)
	}
	return tx.Commit()
}
