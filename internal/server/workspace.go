package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"wardline/internal/domain"
	"wardline/internal/engine"
)

type GetOrCreateNameRequest struct {
	Name string `json:"name" minLength:"1"`
}

type HistoryFeedResponse struct {
	Items      []domain.HistoryEntry `json:"items"`
	NextCursor int64                 `json:"next_cursor,omitempty"`
}

func registerWorkspace(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspace",
		Summary:     "Current workspace",
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body domain.Workspace `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		ws, err := e.Repo.GetWorkspace(ctx, e.Config.Workspace.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Workspace `json:"body"`
		}{Body: ws}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-or-create-candidate-name",
		Method:      http.MethodPost,
		Path:        "/candidate-names",
		Summary:     "Get or create a candidate name record",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body GetOrCreateNameRequest
	}) (*struct {
		Body domain.CandidateName `json:"body"`
	}, error) {
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		name := strings.TrimSpace(input.Body.Name)
		cn, err := e.GetOrCreateCandidateName(ctx, e.Config.Workspace.ID, name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CandidateName `json:"body"`
		}{Body: cn}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "history-feed",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Workspace history feed",
	}, func(ctx context.Context, input *struct {
		After int64 `query:"after" minimum:"0"`
		Limit int   `query:"limit" minimum:"1" maximum:"200" default:"50"`
	}) (*struct {
		Body HistoryFeedResponse `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		entries, err := e.Repo.HistoryAfter(ctx, limit, input.After, e.Config.Workspace.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		out := HistoryFeedResponse{Items: entries}
		if len(entries) == limit {
			out.NextCursor = entries[len(entries)-1].ID
		}
		return &struct {
			Body HistoryFeedResponse `json:"body"`
		}{Body: out}, nil
	})
}
