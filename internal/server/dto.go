package server

import (
	"wardline/internal/domain"
	"wardline/internal/engine"
	"wardline/internal/stage"
)

// Request payloads

type CreateCallingRequest struct {
	ID           *string `json:"id,omitempty"`
	Title        string  `json:"title"`
	Organization *string `json:"organization,omitempty"`
}

type UpdateCallingRequest struct {
	Title        *string `json:"title,omitempty"`
	Organization *string `json:"organization,omitempty"`
}

type AddCandidateRequest struct {
	Name            string  `json:"name,omitempty"`
	CandidateNameID string  `json:"candidate_name_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type UpdateCandidateRequest struct {
	Status *string `json:"status,omitempty" enum:"proposed,discussing,selected,archived"`
	Notes  *string `json:"notes,omitempty"`
}

type StartProcessRequest struct {
	CandidateID     string `json:"candidate_id,omitempty"`
	CandidateNameID string `json:"candidate_name_id,omitempty"`
}

type AdvanceStageRequest struct {
	ToStage string `json:"to_stage,omitempty" enum:"defined,approved,extended,accepted,sustained,set_apart,recorded_lcr"`
	Confirm bool   `json:"confirm,omitempty"`
}

type DropProcessRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Priority    string  `json:"priority,omitempty" enum:"low,medium,high"`
}

type AddMemberRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty" enum:"admin,leader,member"`
}

// Response payloads

type CallingResponse struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	Title        string  `json:"title"`
	Organization *string `json:"organization,omitempty"`
	IsFilled     bool    `json:"is_filled"`
	FilledBy     *string `json:"filled_by,omitempty"`
	FilledAt     *string `json:"filled_at,omitempty" format:"date-time"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`

	// Nested on detail reads and on list reads with include=details.
	Candidates []CandidateResponse `json:"candidates,omitempty"`
	Processes  []ProcessResponse   `json:"processes,omitempty"`
}

type CandidateResponse struct {
	ID            string  `json:"id"`
	CallingID     string  `json:"calling_id"`
	CandidateName string  `json:"candidate_name"`
	Status        string  `json:"status" enum:"proposed,discussing,selected,archived"`
	Notes         *string `json:"notes,omitempty"`
	DeletedAt     *string `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type ProcessResponse struct {
	ID            string  `json:"id"`
	CallingID     string  `json:"calling_id"`
	CandidateID   *string `json:"candidate_id,omitempty"`
	CandidateName string  `json:"candidate_name,omitempty"`
	CurrentStage  string  `json:"current_stage" enum:"defined,approved,extended,accepted,sustained,set_apart,recorded_lcr"`
	StageLabel    string  `json:"stage_label"`
	Status        string  `json:"status" enum:"active,completed,dropped"`
	DroppedReason *string `json:"dropped_reason,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type SearchNamesResponse struct {
	Names      []domain.CandidateName `json:"names"`
	ExactMatch bool                   `json:"exact_match"`
}

type paginatedCallings struct {
	Items      []CallingResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type paginatedProcesses struct {
	Items      []ProcessResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func callingResponse(c domain.Calling) CallingResponse {
	return CallingResponse{
		ID:           c.ID,
		WorkspaceID:  c.WorkspaceID,
		Title:        c.Title,
		Organization: c.Organization,
		IsFilled:     c.IsFilled,
		FilledBy:     c.FilledBy,
		FilledAt:     c.FilledAt,
		CreatedBy:    c.CreatedBy,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func mapCallings(items []domain.Calling) []CallingResponse {
	res := make([]CallingResponse, 0, len(items))
	for _, c := range items {
		res = append(res, callingResponse(c))
	}
	return res
}

func candidateResponse(c domain.CallingCandidate, name string) CandidateResponse {
	return CandidateResponse{
		ID:            c.ID,
		CallingID:     c.CallingID,
		CandidateName: name,
		Status:        c.Status,
		Notes:         c.Notes,
		DeletedAt:     c.DeletedAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func processResponse(p domain.Process, candidateName string) ProcessResponse {
	return ProcessResponse{
		ID:            p.ID,
		CallingID:     p.CallingID,
		CandidateID:   p.CallingCandidateID,
		CandidateName: candidateName,
		CurrentStage:  p.CurrentStage,
		StageLabel:    stage.Label(stage.Stage(p.CurrentStage)),
		Status:        p.Status,
		DroppedReason: p.DroppedReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// TimelineResponse wraps the merged feed with its process for convenience.
type TimelineResponse struct {
	ProcessID string                `json:"process_id"`
	Items     []engine.TimelineItem `json:"items"`
}
