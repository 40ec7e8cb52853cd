package engine_test

import (
	"context"
	"testing"
	"time"

	"wardline/internal/config"
	"wardline/internal/db"
	"wardline/internal/engine"
	"wardline/internal/migrate"
	"wardline/internal/repo"
	"wardline/internal/stage"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Dir: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ward-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.History.Now = eng.Now
	ctx := context.Background()
	if _, err := eng.InitWorkspace(ctx, "ward-1", "Test Ward", "admin"); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func newCalling(t *testing.T, env testEnv, title string) string {
	t.Helper()
	c, err := env.Engine.CreateCalling(env.Ctx, engine.CallingCreateOptions{
		WorkspaceID: "ward-1",
		Title:       title,
		ActorID:     "admin",
	})
	if err != nil {
		t.Fatalf("create calling: %v", err)
	}
	return c.ID
}

func addCandidate(t *testing.T, env testEnv, callingID, name string) string {
	t.Helper()
	c, err := env.Engine.AddCandidate(env.Ctx, engine.CandidateAddOptions{
		CallingID: callingID,
		Name:      name,
		ActorID:   "admin",
	})
	if err != nil {
		t.Fatalf("add candidate %s: %v", name, err)
	}
	return c.ID
}

func TestCandidateDuplicateAndCaseFold(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	addCandidate(t, env, callingID, "John Doe")

	// same name, different case, same calling
	if _, err := env.Engine.AddCandidate(env.Ctx, engine.CandidateAddOptions{
		CallingID: callingID, Name: "john doe", ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected duplicate error")
	}

	// same name on another calling reuses the name record
	other := newCalling(t, env, "Ward Clerk")
	addCandidate(t, env, other, "JOHN DOE")
	res, err := env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "john", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Names) != 1 {
		t.Fatalf("expected one shared name record, got %d", len(res.Names))
	}

	// adding by name id hits the same dedup guard
	if _, err := env.Engine.AddCandidate(env.Ctx, engine.CandidateAddOptions{
		CallingID: callingID, CandidateNameID: res.Names[0].ID, ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected duplicate error for name id add")
	}
	third := newCalling(t, env, "Organist")
	if _, err := env.Engine.AddCandidate(env.Ctx, engine.CandidateAddOptions{
		CallingID: third, CandidateNameID: res.Names[0].ID, ActorID: "admin",
	}); err != nil {
		t.Fatalf("add by name id: %v", err)
	}
}

func TestPoolOrdering(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	a := addCandidate(t, env, callingID, "Alice")
	b := addCandidate(t, env, callingID, "Bob")
	c := addCandidate(t, env, callingID, "Carol")

	setStatus := func(id, status string) {
		if _, err := env.Engine.UpdateCandidate(env.Ctx, id, &status, nil); err != nil {
			t.Fatalf("set status %s: %v", status, err)
		}
	}
	setStatus(a, "archived")
	setStatus(b, "selected")
	setStatus(c, "discussing")

	items, err := env.Engine.Repo.ListCallingCandidates(env.Ctx, callingID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{}
	for _, it := range items {
		got = append(got, it.Status)
	}
	want := []string{"selected", "discussing", "archived"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pool order %v, want %v", got, want)
		}
	}
}

func TestSearchCandidateNames(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	addCandidate(t, env, callingID, "John Doe")
	addCandidate(t, env, callingID, "Johanna Smith")

	res, err := env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "joh", nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Names) != 2 || res.ExactMatch {
		t.Fatalf("expected 2 partial matches, got %d exact=%v", len(res.Names), res.ExactMatch)
	}

	// excluded ids drop out of the result
	excluded, err := env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "joh", []string{res.Names[0].ID})
	if err != nil {
		t.Fatalf("search with exclude: %v", err)
	}
	if len(excluded.Names) != 1 || excluded.Names[0].ID == res.Names[0].ID {
		t.Fatalf("expected excluded id to be filtered, got %d", len(excluded.Names))
	}

	res, err = env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "JOHN DOE", nil)
	if err != nil {
		t.Fatalf("search exact: %v", err)
	}
	if !res.ExactMatch {
		t.Fatalf("expected exact match")
	}

	// short queries return nothing
	res, err = env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "j", nil)
	if err != nil || len(res.Names) != 0 {
		t.Fatalf("expected empty result for short query, got %d (%v)", len(res.Names), err)
	}

	// LIKE wildcards are literals
	res, err = env.Engine.SearchCandidateNames(env.Ctx, "ward-1", "%o%", nil)
	if err != nil || len(res.Names) != 0 {
		t.Fatalf("expected no wildcard matches, got %d (%v)", len(res.Names), err)
	}
}

func TestRemoveRestore(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	id := addCandidate(t, env, callingID, "John Doe")

	if _, err := env.Engine.RestoreCandidate(env.Ctx, id); err == nil {
		t.Fatalf("expected restore of live entry to fail")
	}
	if err := env.Engine.RemoveCandidate(env.Ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// removed entries are hidden but keep their data
	items, _ := env.Engine.Repo.ListCallingCandidates(env.Ctx, callingID, false)
	if len(items) != 0 {
		t.Fatalf("expected empty pool, got %d", len(items))
	}
	items, _ = env.Engine.Repo.ListCallingCandidates(env.Ctx, callingID, true)
	if len(items) != 1 {
		t.Fatalf("expected removed entry when included, got %d", len(items))
	}

	restored, err := env.Engine.RestoreCandidate(env.Ctx, id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.DeletedAt != nil {
		t.Fatalf("expected cleared deleted_at")
	}

	// restore is blocked when a live entry for the same name exists
	if err := env.Engine.RemoveCandidate(env.Ctx, id); err != nil {
		t.Fatalf("remove again: %v", err)
	}
	addCandidate(t, env, callingID, "john doe")
	if _, err := env.Engine.RestoreCandidate(env.Ctx, id); err == nil {
		t.Fatalf("expected restore blocked by live same-name entry")
	}
}

func TestStartProcessGuards(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")

	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if p.CurrentStage != string(stage.Defined) || p.Status != "active" {
		t.Fatalf("unexpected process state %s/%s", p.CurrentStage, p.Status)
	}
	// the chosen entry becomes selected
	cand, _ := env.Engine.Repo.GetCallingCandidate(env.Ctx, candID)
	if cand.Status != "selected" {
		t.Fatalf("expected selected entry, got %s", cand.Status)
	}
	// one active process per calling
	otherID := addCandidate(t, env, callingID, "Jane Roe")
	if _, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: otherID, ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected second active process to be rejected")
	}
	// the in-process entry cannot be removed
	if err := env.Engine.RemoveCandidate(env.Ctx, candID); err == nil {
		t.Fatalf("expected removal of in-process entry to fail")
	}
	// a candidate from another calling is rejected
	other := newCalling(t, env, "Ward Clerk")
	foreign := addCandidate(t, env, other, "Sam Poe")
	if _, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: foreign, ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected cross-calling candidate to be rejected")
	}
}

func TestStartProcessByNameID(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Ward Clerk")
	cn, err := env.Engine.GetOrCreateCandidateName(env.Ctx, "ward-1", "Sam Poe", "admin")
	if err != nil {
		t.Fatalf("get-or-create name: %v", err)
	}

	// no pool entry yet; starting by name id creates one
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CandidateNameID: cn.ID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start by name: %v", err)
	}
	if p.CandidateNameID != cn.ID || p.CallingCandidateID == nil {
		t.Fatalf("unexpected process %+v", p)
	}
	cand, err := env.Engine.Repo.GetCallingCandidate(env.Ctx, *p.CallingCandidateID)
	if err != nil {
		t.Fatalf("load created entry: %v", err)
	}
	if cand.CallingID != callingID || cand.Status != "selected" {
		t.Fatalf("unexpected pool entry %+v", cand)
	}

	// an unknown name id is rejected
	if _, err := env.Engine.DropProcess(env.Ctx, p.ID, "", "admin"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CandidateNameID: "missing", ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected unknown name id to be rejected")
	}
}

func TestAdvanceThroughPipeline(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// skipping a stage is rejected
	if _, err := env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{
		ProcessID: p.ID, ToStage: "extended", ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected skip to be rejected")
	}

	// walk up to the last non-terminal stage; empty ToStage means "next"
	for i := 0; i < len(stage.Sequence())-2; i++ {
		p, err = env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{ProcessID: p.ID, ActorID: "admin"})
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if p.CurrentStage != string(stage.SetApart) {
		t.Fatalf("expected set_apart, got %s", p.CurrentStage)
	}

	// the final stage needs confirm
	if _, err := env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{ProcessID: p.ID, ActorID: "admin"}); err == nil {
		t.Fatalf("expected confirm requirement")
	}
	p, err = env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{ProcessID: p.ID, Confirm: true, ActorID: "admin"})
	if err != nil {
		t.Fatalf("terminal advance: %v", err)
	}
	if p.Status != "completed" || p.CurrentStage != string(stage.RecordedLCR) {
		t.Fatalf("expected completed at recorded_lcr, got %s/%s", p.Status, p.CurrentStage)
	}
	calling, _ := env.Engine.Repo.GetCalling(env.Ctx, callingID)
	if !calling.IsFilled || calling.FilledBy == nil || *calling.FilledBy != p.CandidateNameID {
		t.Fatalf("expected filled calling for %s", p.CandidateNameID)
	}
	// a completed process cannot move
	if _, err := env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{ProcessID: p.ID, Confirm: true, ActorID: "admin"}); err == nil {
		t.Fatalf("expected advance on completed process to fail")
	}
	// a filled calling cannot start over
	newCand := addCandidate(t, env, callingID, "Jane Roe")
	if _, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: newCand, ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected start on filled calling to fail")
	}
}

func TestDropAndRestart(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	dropped, err := env.Engine.DropProcess(env.Ctx, p.ID, "moved away", "admin")
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if dropped.Status != "dropped" || dropped.DroppedReason == nil || *dropped.DroppedReason != "moved away" {
		t.Fatalf("unexpected dropped state")
	}
	// the pool entry is archived, not deleted
	cand, _ := env.Engine.Repo.GetCallingCandidate(env.Ctx, candID)
	if cand.Status != "archived" || cand.DeletedAt != nil {
		t.Fatalf("expected archived entry, got %s", cand.Status)
	}
	// dropping again fails
	if _, err := env.Engine.DropProcess(env.Ctx, p.ID, "", "admin"); err == nil {
		t.Fatalf("expected double drop to fail")
	}
	// the calling can start over with someone else
	nextID := addCandidate(t, env, callingID, "Jane Roe")
	if _, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: nextID, ActorID: "admin",
	}); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestHistoryAudit(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.AdvanceStage(env.Ctx, engine.StageAdvanceOptions{ProcessID: p.ID, ActorID: "admin"}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := env.Engine.AddComment(env.Ctx, p.ID, "talked to him on Sunday", "admin"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProcessID: p.ID, Title: "schedule interview", ActorID: "admin"})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "admin"); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	entries, err := env.Engine.Repo.ListProcessHistory(env.Ctx, p.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []string{"process_started", "stage_changed", "comment_added", "task_created", "task_completed"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Action != w {
			t.Fatalf("entry %d = %s, want %s", i, entries[i].Action, w)
		}
	}
}

func TestCommentAuthorOnly(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	c, err := env.Engine.AddComment(env.Ctx, p.ID, "first", "alice")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := env.Engine.UpdateComment(env.Ctx, c.ID, "edited", "bob"); err == nil {
		t.Fatalf("expected edit by non-author to fail")
	}
	if err := env.Engine.DeleteComment(env.Ctx, c.ID, "bob"); err == nil {
		t.Fatalf("expected delete by non-author to fail")
	}
	if _, err := env.Engine.UpdateComment(env.Ctx, c.ID, "edited", "alice"); err != nil {
		t.Fatalf("author edit: %v", err)
	}
	if err := env.Engine.DeleteComment(env.Ctx, c.ID, "alice"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProcessID: p.ID, Title: "x", Priority: "urgent", ActorID: "admin",
	}); err == nil {
		t.Fatalf("expected unknown priority to be rejected")
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProcessID: p.ID, Title: "call him", ActorID: "admin"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Priority != "medium" || task.Status != "pending" {
		t.Fatalf("unexpected defaults %s/%s", task.Priority, task.Status)
	}
	done, err := env.Engine.CompleteTask(env.Ctx, task.ID, "admin")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != "completed" || done.CompletedAt == nil {
		t.Fatalf("expected completed task")
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, "admin"); err == nil {
		t.Fatalf("expected double completion to fail")
	}
}

func TestPurgeRetention(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	oldID := addCandidate(t, env, callingID, "John Doe")
	if err := env.Engine.RemoveCandidate(env.Ctx, oldID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// an entry tied to a (dropped) process survives the purge
	keptID := addCandidate(t, env, callingID, "Jane Roe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: keptID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.DropProcess(env.Ctx, p.ID, "declined", "admin"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := env.Engine.RemoveCandidate(env.Ctx, keptID); err != nil {
		t.Fatalf("remove kept: %v", err)
	}

	// nothing is old enough yet
	n, err := env.Engine.PurgeRemovedCandidates(env.Ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no purge, got %d (%v)", n, err)
	}

	env.Engine.Now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	n, err = env.Engine.PurgeRemovedCandidates(env.Ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
	if _, err := env.Engine.Repo.GetCallingCandidate(env.Ctx, oldID); err != repo.ErrNotFound {
		t.Fatalf("expected purged entry gone, got %v", err)
	}
	if _, err := env.Engine.Repo.GetCallingCandidate(env.Ctx, keptID); err != nil {
		t.Fatalf("expected process-linked entry kept: %v", err)
	}
}

func TestDeleteCallingGuards(t *testing.T) {
	env := newTestEnv(t)
	callingID := newCalling(t, env, "Primary Teacher")
	candID := addCandidate(t, env, callingID, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: callingID, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.Engine.DeleteCalling(env.Ctx, callingID); err == nil {
		t.Fatalf("expected delete with active process to fail")
	}
	if _, err := env.Engine.DropProcess(env.Ctx, p.ID, "", "admin"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := env.Engine.DeleteCalling(env.Ctx, callingID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.Repo.GetProcess(env.Ctx, p.ID); err != repo.ErrNotFound {
		t.Fatalf("expected cascaded process delete, got %v", err)
	}
}

func TestDashboardSummary(t *testing.T) {
	env := newTestEnv(t)
	filled := newCalling(t, env, "Primary Teacher")
	newCalling(t, env, "Ward Clerk")
	candID := addCandidate(t, env, filled, "John Doe")
	p, err := env.Engine.StartProcess(env.Ctx, engine.ProcessStartOptions{
		CallingID: filled, CallingCandidateID: candID, ActorID: "admin",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProcessID: p.ID, Title: "interview", ActorID: "admin"}); err != nil {
		t.Fatalf("task: %v", err)
	}
	s, err := env.Engine.Dashboard(env.Ctx, "ward-1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if s.FillRate.TotalCallings != 2 || s.FillRate.UnfilledCount != 2 {
		t.Fatalf("unexpected fill data %+v", s.FillRate)
	}
	if s.Pipeline.TotalActive != 1 || len(s.Pipeline.Processes) != 1 {
		t.Fatalf("unexpected pipeline %+v", s.Pipeline)
	}
	if s.Pipeline.Processes[0].CandidateName != "John Doe" {
		t.Fatalf("unexpected candidate name %q", s.Pipeline.Processes[0].CandidateName)
	}
	if s.PendingTasks != 1 {
		t.Fatalf("expected 1 pending task, got %d", s.PendingTasks)
	}
	if s.ByStatus["active"] != 1 {
		t.Fatalf("unexpected status counts %v", s.ByStatus)
	}
}

func TestLayoutValidation(t *testing.T) {
	env := newTestEnv(t)
	// default comes back when nothing is saved
	l, err := env.Engine.GetLayout(env.Ctx, "ward-1", "admin")
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if len(l.Widgets) == 0 {
		t.Fatalf("expected default widgets")
	}

	l.Widgets[0].Column = 9
	if _, err := env.Engine.SaveLayout(env.Ctx, "ward-1", "admin", l); err == nil {
		t.Fatalf("expected out-of-range column to be rejected")
	}

	l, _ = env.Engine.GetLayout(env.Ctx, "ward-1", "admin")
	l.Widgets[0].Visible = false
	saved, err := env.Engine.SaveLayout(env.Ctx, "ward-1", "admin", l)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := env.Engine.GetLayout(env.Ctx, "ward-1", "admin")
	if err != nil {
		t.Fatalf("get saved: %v", err)
	}
	if got.Widgets[0].Visible || got.Version != saved.Version {
		t.Fatalf("expected persisted layout")
	}

	if err := env.Engine.ResetLayout(env.Ctx, "ward-1", "admin"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ = env.Engine.GetLayout(env.Ctx, "ward-1", "admin")
	if !got.Widgets[0].Visible {
		t.Fatalf("expected default layout after reset")
	}
}
