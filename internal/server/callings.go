package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"wardline/internal/engine"
	"wardline/internal/repo"
)

func callingFilters(workspaceID string, filled *bool, limit int, cursorCreated, cursorID string) repo.CallingFilters {
	return repo.CallingFilters{
		WorkspaceID:     workspaceID,
		Filled:          filled,
		Limit:           limit,
		CursorCreatedAt: cursorCreated,
		CursorID:        cursorID,
	}
}

// attachCallingDetails fills the nested pool and process views on a calling.
func attachCallingDetails(ctx context.Context, e engine.Engine, resp *CallingResponse) error {
	pool, err := e.Repo.ListCallingCandidates(ctx, resp.ID, false)
	if err != nil {
		return err
	}
	resp.Candidates = make([]CandidateResponse, 0, len(pool))
	for _, c := range pool {
		cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID)
		if err != nil {
			return err
		}
		resp.Candidates = append(resp.Candidates, candidateResponse(c, cn.Name))
	}
	procs, err := e.Repo.ListProcesses(ctx, repo.ProcessFilters{
		WorkspaceID: resp.WorkspaceID,
		CallingID:   resp.ID,
	})
	if err != nil {
		return err
	}
	namer := processNamer{e: e}
	resp.Processes = make([]ProcessResponse, 0, len(procs))
	for _, p := range procs {
		resp.Processes = append(resp.Processes, processResponse(p, namer.name(ctx, p)))
	}
	return nil
}

func registerCallings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-calling",
		Method:        http.MethodPost,
		Path:          "/callings",
		Summary:       "Create calling",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCallingRequest `json:"body"`
	}) (*struct {
		Body CallingResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		workspaceID := e.Config.Workspace.ID
		actorID, authErr := requireManage(ctx, e, workspaceID)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CallingCreateOptions{
			WorkspaceID: workspaceID,
			Title:       input.Body.Title,
			ActorID:     actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.Organization != nil {
			opts.Organization = *input.Body.Organization
		}
		c, err := e.CreateCalling(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CallingResponse `json:"body"`
		}{Body: callingResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-callings",
		Method:      http.MethodGet,
		Path:        "/callings",
		Summary:     "List callings",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Filled  *bool  `query:"filled"`
		Include string `query:"include" enum:"details"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedCallings `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireMember(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListCallings(ctx, callingFilters(workspaceID, input.Filled, limit+1, cursorCreated, cursorID))
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedCallings{Items: []CallingResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = mapCallings(items)
		if input.Include == "details" {
			for i := range resp.Items {
				if err := attachCallingDetails(ctx, e, &resp.Items[i]); err != nil {
					return nil, handleError(err)
				}
			}
		}
		return &struct {
			Body paginatedCallings `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-calling",
		Method:      http.MethodGet,
		Path:        "/callings/{calling_id}",
		Summary:     "Get calling",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CallingID string `path:"calling_id"`
	}) (*struct {
		Body CallingResponse `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		c, err := e.Repo.GetCalling(ctx, input.CallingID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := callingResponse(c)
		if err := attachCallingDetails(ctx, e, &resp); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CallingResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-calling",
		Method:      http.MethodPatch,
		Path:        "/callings/{calling_id}",
		Summary:     "Update calling",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CallingID string               `path:"calling_id"`
		Body      UpdateCallingRequest `json:"body"`
	}) (*struct {
		Body CallingResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if _, authErr := requireManage(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCalling(ctx, input.CallingID, input.Body.Title, input.Body.Organization)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CallingResponse `json:"body"`
		}{Body: callingResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-calling",
		Method:      http.MethodDelete,
		Path:        "/callings/{calling_id}",
		Summary:     "Delete calling",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CallingID string `path:"calling_id"`
	}) (*struct{}, error) {
		if _, authErr := requireManage(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCalling(ctx, input.CallingID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerCandidates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search-candidate-names",
		Method:      http.MethodGet,
		Path:        "/candidate-names/search",
		Summary:     "Search candidate names",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Q       string   `query:"q"`
		Exclude []string `query:"exclude"`
	}) (*struct {
		Body SearchNamesResponse `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireMember(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		res, err := e.SearchCandidateNames(ctx, workspaceID, input.Q, input.Exclude)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SearchNamesResponse `json:"body"`
		}{Body: SearchNamesResponse{Names: res.Names, ExactMatch: res.ExactMatch}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-candidate",
		Method:        http.MethodPost,
		Path:          "/callings/{calling_id}/candidates",
		Summary:       "Add candidate to pool",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CallingID string              `path:"calling_id"`
		Body      AddCandidateRequest `json:"body"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" && input.Body.CandidateNameID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name or candidate_name_id is required", nil)
		}
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CandidateAddOptions{
			CallingID:       input.CallingID,
			CandidateNameID: input.Body.CandidateNameID,
			Name:            input.Body.Name,
			ActorID:         actorID,
		}
		if input.Body.Notes != nil {
			opts.Notes = *input.Body.Notes
		}
		c, err := e.AddCandidate(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c, cn.Name)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/callings/{calling_id}/candidates",
		Summary:     "List candidate pool",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CallingID      string `path:"calling_id"`
		IncludeRemoved bool   `query:"include_removed"`
	}) (*struct {
		Body []CandidateResponse `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetCalling(ctx, input.CallingID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListCallingCandidates(ctx, input.CallingID, input.IncludeRemoved)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CandidateResponse, 0, len(items))
		for _, c := range items {
			cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID)
			if err != nil {
				return nil, handleError(err)
			}
			res = append(res, candidateResponse(c, cn.Name))
		}
		return &struct {
			Body []CandidateResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-candidate",
		Method:      http.MethodPatch,
		Path:        "/candidates/{candidate_id}",
		Summary:     "Update candidate",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CandidateID string                 `path:"candidate_id"`
		Body        UpdateCandidateRequest `json:"body"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if _, authErr := requireManage(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCandidate(ctx, input.CandidateID, input.Body.Status, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c, cn.Name)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-candidate",
		Method:      http.MethodDelete,
		Path:        "/candidates/{candidate_id}",
		Summary:     "Remove candidate from pool",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*struct{}, error) {
		if _, authErr := requireManage(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveCandidate(ctx, input.CandidateID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-candidate",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/restore",
		Summary:     "Restore removed candidate",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		if _, authErr := requireManage(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		c, err := e.RestoreCandidate(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		cn, err := e.Repo.GetCandidateName(ctx, c.CandidateNameID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c, cn.Name)}, nil
	})
}
