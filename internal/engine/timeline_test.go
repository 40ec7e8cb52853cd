package engine_test

import (
	"testing"
	"time"

	"wardline/internal/engine"
)

func TestTimelineMergedAscending(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")

	at := func(day int) {
		ts := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		env.Engine.Now = func() time.Time { return ts }
		env.Engine.History.Now = env.Engine.Now
	}

	at(1)
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	at(3)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProcessID: p.ID, Title: "interview", ActorID: "admin"}); err != nil {
		t.Fatalf("task: %v", err)
	}
	at(2)
	if _, err := env.Engine.AddComment(env.Ctx, p.ID, "spoke after church", "admin"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	items, err := env.Engine.ProcessTimeline(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	// start history + task history + comment history + comment + task
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt < items[i-1].CreatedAt {
			t.Fatalf("timeline not ascending at %d: %s < %s", i, items[i].CreatedAt, items[i-1].CreatedAt)
		}
	}
	if items[0].Type != "history" {
		t.Fatalf("expected start entry first, got %s", items[0].Type)
	}
}

func TestTimelineTieBreak(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")

	// fixed clock: every record shares one timestamp
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProcessID: p.ID, Title: "interview", ActorID: "admin"}); err != nil {
		t.Fatalf("task: %v", err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, p.ID, "noted", "admin"); err != nil {
		t.Fatalf("comment: %v", err)
	}

	items, err := env.Engine.ProcessTimeline(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	// equal timestamps order history entries before comments before tasks
	var types []string
	for _, it := range items {
		types = append(types, it.Type)
	}
	seenComment, seenTask := false, false
	for _, ty := range types {
		switch ty {
		case "history":
			if seenComment || seenTask {
				t.Fatalf("history after comment/task: %v", types)
			}
		case "comment":
			if seenTask {
				t.Fatalf("comment after task: %v", types)
			}
			seenComment = true
		case "task":
			seenTask = true
		}
	}
	if !seenComment || !seenTask {
		t.Fatalf("missing item kinds: %v", types)
	}

	// unknown process is an error
	if _, err := env.Engine.ProcessTimeline(env.Ctx, "nope"); err == nil {
		t.Fatalf("expected error for unknown process")
	}
}
