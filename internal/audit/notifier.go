package audit

import (
	"context"
	"strings"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
)

// Sources recorded on audit entries.
const (
	SourceAPI    = "api"
	SourceCLI    = "cli"
	SourceSystem = "system"
)

// Entity types recorded on audit entries.
const (
	EntityDevice   = "device"
	EntityPairing  = "pairing"
	EntityDocument = "document"
)

// Logger defines the logging interface used by the Notifier.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type actorKey struct{}

type principal struct {
	actor  string
	source string
}

// WithActor returns a context that attributes changes to actor, made
// through source.
func WithActor(ctx context.Context, actor, source string) context.Context {
	return context.WithValue(ctx, actorKey{}, principal{actor: actor, source: source})
}

// ActorFrom returns the actor and source stored by WithActor. Changes with
// no recorded principal come from the system.
func ActorFrom(ctx context.Context) (actor, source string) {
	if p, ok := ctx.Value(actorKey{}).(principal); ok {
		return p.actor, p.source
	}
	return "", SourceSystem
}

// Notifier turns registry events into audit entries.
// Write failures are logged; they never fail the mutation.
type Notifier struct {
	repo   Repository
	logger Logger
}

// NewNotifier creates a notifier writing to repo.
func NewNotifier(repo Repository) *Notifier {
	return &Notifier{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Notify implements device.Notifier.
func (n *Notifier) Notify(ctx context.Context, ev device.Event) {
	entry := FromEvent(ctx, ev)
	// The request may be finishing; the entry must still be written.
	if err := n.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		n.logger.Error("writing audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
	}
}

// FromEvent builds the audit entry for a registry event.
func FromEvent(ctx context.Context, ev device.Event) *AuditLog {
	actor, source := ActorFrom(ctx)
	entry := &AuditLog{
		Action:     string(ev.Kind),
		EntityType: EntityDevice,
		EntityID:   ev.DeviceID,
		Actor:      actor,
		Source:     source,
		CreatedAt:  ev.Time,
	}

	details := map[string]any{}
	if ev.Code != "" {
		details["code"] = ev.Code
	}
	if ev.Name != "" {
		details["name"] = ev.Name
	}
	if ev.Mode != "" {
		details["mode"] = string(ev.Mode)
	}
	if len(details) > 0 {
		entry.Details = details
	}

	if strings.HasPrefix(string(ev.Kind), "pairing.") {
		entry.EntityType = EntityPairing
		entry.EntityID = ev.Code
	}
	return entry
}

// ActionDocumentSaved is recorded for every document write, including
// idempotent re-saves.
const ActionDocumentSaved = "document.saved"

// DocumentSaved builds the audit entry for a document write.
func DocumentSaved(ctx context.Context, docType string, version int, created bool) *AuditLog {
	actor, source := ActorFrom(ctx)
	return &AuditLog{
		Action:     ActionDocumentSaved,
		EntityType: EntityDocument,
		EntityID:   docType,
		Actor:      actor,
		Source:     source,
		Details: map[string]any{
			"version": version,
			"created": created,
		},
	}
}
