// Package audithook bridges custody controller events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin  = (*Extension)(nil)
	_ plugin.OnEvent = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges controller events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnEvent implements plugin.OnEvent.
func (e *Extension) OnEvent(ctx context.Context, evt *event.Event) error {
	c, ok := classifications[evt.Kind]
	if !ok {
		return nil
	}

	kv := []any{
		"event_id", evt.ID.String(),
		"seq", evt.Seq,
		"amount", types.FormatUnits(evt.Amount, types.DefaultDecimals),
	}
	if !evt.UserID.IsZero() {
		kv = append(kv, "user_id", evt.UserID.String())
	}
	if !evt.Counterparty.IsZero() {
		kv = append(kv, "counterparty", evt.Counterparty.String())
	}
	if !evt.Address.IsZero() {
		kv = append(kv, "address", evt.Address.String())
	}
	if evt.Reference != "" {
		kv = append(kv, "reference", evt.Reference)
	}
	for k, v := range evt.Metadata {
		kv = append(kv, k, v)
	}

	return e.record(ctx, string(evt.Kind), c.severity, OutcomeSuccess,
		c.resource, resourceID(evt), c.category, evt.Actor, nil,
		kv...,
	)
}

func resourceID(evt *event.Event) string {
	switch {
	case evt.Reference != "":
		return evt.Reference
	case !evt.UserID.IsZero():
		return evt.UserID.String()
	case !evt.Address.IsZero():
		return evt.Address.String()
	}
	return ""
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	actor types.Principal,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      actor.String(),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
