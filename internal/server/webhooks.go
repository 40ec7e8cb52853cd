package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"wardline/internal/config"
	"wardline/internal/domain"
	"wardline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher polls the history feed and posts new entries to the
// configured endpoints. Each hook keeps its own cursor so a slow endpoint
// does not hold back the others.
type webhookDispatcher struct {
	engine    engine.Engine
	workspace string
	webhooks  []config.WebhookConfig
	client    *http.Client
	mu        sync.Mutex
	cursors   map[int]int64
}

func startWebhookDispatcher(e engine.Engine) {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return
	}
	workspaceID := e.Config.Workspace.ID
	if strings.TrimSpace(workspaceID) == "" {
		return
	}
	d := &webhookDispatcher{
		engine:    e,
		workspace: workspaceID,
		webhooks:  e.Config.Webhooks,
		client:    &http.Client{Timeout: defaultWebhookTimeout},
		cursors:   make(map[int]int64),
	}
	go d.run()
}

func (d *webhookDispatcher) run() {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll()
		<-ticker.C
	}
}

func (d *webhookDispatcher) dispatchAll() {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(i, hook)
	}
}

func (d *webhookDispatcher) dispatchWebhook(idx int, hook config.WebhookConfig) {
	ctx := context.Background()
	cursor := d.cursorFor(idx)
	entries, err := d.engine.Repo.HistoryAfter(ctx, defaultWebhookBatch, cursor, d.workspace)
	if err != nil {
		log.Printf("webhook: fetch history failed: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}
	filter := newActionFilter(hook.Actions)
	for _, entry := range entries {
		if !filter.match(entry.Action) {
			d.setCursor(idx, entry.ID)
			continue
		}
		if err := d.postEntry(ctx, hook, entry); err != nil {
			log.Printf("webhook: deliver to %s failed: %v", hook.URL, err)
			return
		}
		d.setCursor(idx, entry.ID)
	}
}

func (d *webhookDispatcher) cursorFor(idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestHistoryID(context.Background(), d.workspace)
	if err != nil {
		log.Printf("webhook: init cursor failed: %v", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookPayload struct {
	ID          int64   `json:"id"`
	Action      string  `json:"action"`
	WorkspaceID string  `json:"workspace_id"`
	ProcessID   string  `json:"process_id"`
	FromValue   *string `json:"from_value,omitempty"`
	ToValue     *string `json:"to_value,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	ActorID     string  `json:"actor_id"`
	CreatedAt   string  `json:"created_at"`
}

func (d *webhookDispatcher) postEntry(ctx context.Context, hook config.WebhookConfig, entry domain.HistoryEntry) error {
	body := webhookPayload{
		ID:          entry.ID,
		Action:      entry.Action,
		WorkspaceID: d.workspace,
		ProcessID:   entry.ProcessID,
		FromValue:   entry.FromValue,
		ToValue:     entry.ToValue,
		Notes:       entry.Notes,
		ActorID:     entry.ActorID,
		CreatedAt:   entry.CreatedAt,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	client := d.client
	if timeout != d.client.Timeout {
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wardline-Action", entry.Action)
	req.Header.Set("X-Wardline-Delivery", fmt.Sprintf("%d", entry.ID))
	req.Header.Set("X-Wardline-Workspace", d.workspace)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Wardline-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type actionFilter struct {
	all bool
	set map[string]struct{}
}

func newActionFilter(actions []string) actionFilter {
	if len(actions) == 0 {
		return actionFilter{all: true}
	}
	set := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		key := strings.TrimSpace(a)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return actionFilter{all: true}
	}
	return actionFilter{set: set}
}

func (f actionFilter) match(action string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[action]
	return ok
}
