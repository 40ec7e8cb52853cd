package domain

type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Member struct {
	WorkspaceID string `json:"workspace_id"`
	ActorID     string `json:"actor_id"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role" enum:"admin,leader,member"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Calling struct {
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
}

type CandidateName struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type CallingCandidate struct {
	ID              string  `json:"id"`
	CallingID       string  `json:"calling_id"`
	CandidateNameID string  `json:"candidate_name_id"`
	Status          string  `json:"status" enum:"proposed,discussing,selected,archived"`
	Notes           *string `json:"notes,omitempty"`
	DeletedAt       *string `json:"deleted_at,omitempty" format:"date-time"`
	CreatedBy       string  `json:"created_by"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type Process struct {
	ID                 string  `json:"id"`
	CallingID          string  `json:"calling_id"`
	CandidateNameID    string  `json:"candidate_name_id"`
	CallingCandidateID *string `json:"calling_candidate_id,omitempty"`
	CurrentStage       string  `json:"current_stage" enum:"defined,approved,extended,accepted,sustained,set_apart,recorded_lcr"`
	Status             string  `json:"status" enum:"active,completed,dropped"`
	DroppedReason      *string `json:"dropped_reason,omitempty"`
	CreatedBy          string  `json:"created_by"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	UpdatedAt          string  `json:"updated_at" format:"date-time"`
}

type HistoryEntry struct {
	ID        int64   `json:"id"`
	ProcessID string  `json:"process_id"`
	Action    string  `json:"action" enum:"process_started,stage_changed,status_changed,comment_added,task_created,task_completed"`
	FromValue *string `json:"from_value,omitempty"`
	ToValue   *string `json:"to_value,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	ActorID   string  `json:"actor_id"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type Comment struct {
	ID        string `json:"id"`
	ProcessID string `json:"process_id"`
	Content   string `json:"content"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type CallingTask struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	ProcessID   string  `json:"process_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	Status      string  `json:"status" enum:"pending,completed"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// DashboardLayout is the persisted widget grid for one actor in one workspace.
// LayoutJSON holds the whole document; it is validated and replaced as a unit.
type DashboardLayout struct {
	WorkspaceID string `json:"workspace_id"`
	ActorID     string `json:"actor_id"`
	LayoutJSON  string `json:"layout_json"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
