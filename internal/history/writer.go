package history

import (
	"context"
	"database/sql"
	"time"
)

// History actions recorded against a calling process.
const (
	ActionProcessStarted = "process_started"
	ActionStageChanged   = "stage_changed"
	ActionStatusChanged  = "status_changed"
	ActionCommentAdded   = "comment_added"
	ActionTaskCreated    = "task_created"
	ActionTaskCompleted  = "task_completed"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Entry struct {
	Action    string
	FromValue string
	ToValue   string
	Notes     string
}

// Append records a history entry inside the caller's transaction so the
// audit row commits or rolls back together with the mutation it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, processID, actorID string, e Entry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO calling_history(process_id,action,from_value,to_value,notes,actor_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		processID, e.Action, nullable(e.FromValue), nullable(e.ToValue), nullable(e.Notes), actorID, ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
