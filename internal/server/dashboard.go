package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"wardline/internal/domain"
	"wardline/internal/engine"
)

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-summary",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard summary",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.DashboardSummary `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireMember(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		s, err := e.Dashboard(ctx, workspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.DashboardSummary `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard-layout",
		Method:      http.MethodGet,
		Path:        "/dashboard/layout",
		Summary:     "Get dashboard layout",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Layout `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		actorID, authErr := requireMember(ctx, e, workspaceID)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.GetLayout(ctx, workspaceID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Layout `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-dashboard-layout",
		Method:      http.MethodPut,
		Path:        "/dashboard/layout",
		Summary:     "Replace dashboard layout",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body engine.Layout `json:"body"`
	}) (*struct {
		Body engine.Layout `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		workspaceID := e.Config.Workspace.ID
		actorID, authErr := requireMember(ctx, e, workspaceID)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.SaveLayout(ctx, workspaceID, actorID, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Layout `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-dashboard-layout",
		Method:      http.MethodDelete,
		Path:        "/dashboard/layout",
		Summary:     "Reset dashboard layout",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Layout `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		actorID, authErr := requireMember(ctx, e, workspaceID)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ResetLayout(ctx, workspaceID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Layout `json:"body"`
		}{Body: engine.DefaultLayout()}, nil
	})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/members",
		Summary:     "List members",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Member `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireMember(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListMembers(ctx, workspaceID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Member{}
		}
		return &struct {
			Body []domain.Member `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/members",
		Summary:       "Add or update member",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body AddMemberRequest `json:"body"`
	}) (*struct {
		Body domain.Member `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireManage(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		m, err := e.AddMember(ctx, workspaceID, input.Body.ActorID, input.Body.Name, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Member `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current member",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Member `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		actorID, authErr := requireMember(ctx, e, workspaceID)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetMember(ctx, workspaceID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Member `json:"body"`
		}{Body: m}, nil
	})
}
