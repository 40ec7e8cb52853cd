package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"wardline/internal/domain"
	"wardline/internal/engine"
	"wardline/internal/repo"
)

// processNamer resolves the candidate display name for process responses.
type processNamer struct{ e engine.Engine }

func (s processNamer) name(ctx context.Context, p domain.Process) string {
	cn, err := s.e.Repo.GetCandidateName(ctx, p.CandidateNameID)
	if err != nil {
		return ""
	}
	return cn.Name
}

func registerProcesses(api huma.API, e engine.Engine) {
	namer := processNamer{e: e}

	huma.Register(api, huma.Operation{
		OperationID:   "start-process",
		Method:        http.MethodPost,
		Path:          "/callings/{calling_id}/process",
		Summary:       "Start calling process",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CallingID string              `path:"calling_id"`
		Body      StartProcessRequest `json:"body"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.CandidateID == "" && input.Body.CandidateNameID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "candidate_id or candidate_name_id is required", nil)
		}
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.StartProcess(ctx, engine.ProcessStartOptions{
			CallingID:          input.CallingID,
			CallingCandidateID: input.Body.CandidateID,
			CandidateNameID:    input.Body.CandidateNameID,
			ActorID:            actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p, namer.name(ctx, p))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-processes",
		Method:      http.MethodGet,
		Path:        "/processes",
		Summary:     "List processes",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CallingID string `query:"calling_id"`
		Status    string `query:"status" enum:"active,completed,dropped"`
		Stage     string `query:"stage"`
		Limit     int    `query:"limit" default:"50"`
		Cursor    string `query:"cursor"`
	}) (*struct {
		Body paginatedProcesses `json:"body"`
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
		items, err := e.Repo.ListProcesses(ctx, repo.ProcessFilters{
			WorkspaceID:     workspaceID,
			CallingID:       input.CallingID,
			Status:          input.Status,
			Stage:           input.Stage,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedProcesses{Items: []ProcessResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		for _, p := range items {
			resp.Items = append(resp.Items, processResponse(p, namer.name(ctx, p)))
		}
		return &struct {
			Body paginatedProcesses `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-process",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}",
		Summary:     "Get process",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetProcess(ctx, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p, namer.name(ctx, p))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-process",
		Method:      http.MethodPost,
		Path:        "/processes/{process_id}/advance",
		Summary:     "Advance process stage",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string              `path:"process_id"`
		Body      AdvanceStageRequest `json:"body"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AdvanceStage(ctx, engine.StageAdvanceOptions{
			ProcessID: input.ProcessID,
			ToStage:   input.Body.ToStage,
			Confirm:   input.Body.Confirm,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p, namer.name(ctx, p))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "drop-process",
		Method:      http.MethodPost,
		Path:        "/processes/{process_id}/drop",
		Summary:     "Drop process",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string             `path:"process_id"`
		Body      DropProcessRequest `json:"body"`
	}) (*struct {
		Body ProcessResponse `json:"body"`
	}, error) {
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.DropProcess(ctx, input.ProcessID, input.Body.Reason, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProcessResponse `json:"body"`
		}{Body: processResponse(p, namer.name(ctx, p))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-timeline",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}/timeline",
		Summary:     "Process timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body TimelineResponse `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		items, err := e.ProcessTimeline(ctx, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []engine.TimelineItem{}
		}
		return &struct {
			Body TimelineResponse `json:"body"`
		}{Body: TimelineResponse{ProcessID: input.ProcessID, Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-history",
		Method:      http.MethodGet,
		Path:        "/processes/{process_id}/history",
		Summary:     "Process history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProcessID string `path:"process_id"`
	}) (*struct {
		Body []domain.HistoryEntry `json:"body"`
	}, error) {
		if _, authErr := requireMember(ctx, e, e.Config.Workspace.ID); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetProcess(ctx, input.ProcessID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.ListProcessHistory(ctx, input.ProcessID)
		if err != nil {
			return nil, handleError(err)
		}
		if entries == nil {
			entries = []domain.HistoryEntry{}
		}
		return &struct {
			Body []domain.HistoryEntry `json:"body"`
		}{Body: entries}, nil
	})
}

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/processes/{process_id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string         `path:"process_id"`
		Body      CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := requireMember(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddComment(ctx, input.ProcessID, input.Body.Content, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-comment",
		Method:      http.MethodPatch,
		Path:        "/comments/{comment_id}",
		Summary:     "Edit comment",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CommentID string         `path:"comment_id"`
		Body      CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := requireMember(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateComment(ctx, input.CommentID, input.Body.Content, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/comments/{comment_id}",
		Summary:     "Delete comment",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CommentID string `path:"comment_id"`
	}) (*struct{}, error) {
		actorID, authErr := requireMember(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteComment(ctx, input.CommentID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/processes/{process_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProcessID string            `path:"process_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.CallingTask `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			ProcessID: input.ProcessID,
			Title:     input.Body.Title,
			Priority:  input.Body.Priority,
			ActorID:   actorID,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.AssignedTo != nil {
			opts.AssignedTo = *input.Body.AssignedTo
		}
		if input.Body.DueDate != nil {
			opts.DueDate = *input.Body.DueDate
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CallingTask `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ProcessID  string `query:"process_id"`
		Status     string `query:"status" enum:"pending,completed"`
		AssignedTo string `query:"assigned_to"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.CallingTask `json:"body"`
	}, error) {
		workspaceID := e.Config.Workspace.ID
		if _, authErr := requireMember(ctx, e, workspaceID); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			WorkspaceID: workspaceID,
			ProcessID:   input.ProcessID,
			Status:      input.Status,
			AssignedTo:  input.AssignedTo,
			Limit:       normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.CallingTask{}
		}
		return &struct {
			Body []domain.CallingTask `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.CallingTask `json:"body"`
	}, error) {
		actorID, authErr := requireManage(ctx, e, e.Config.Workspace.ID)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CompleteTask(ctx, input.TaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CallingTask `json:"body"`
		}{Body: t}, nil
	})
}
