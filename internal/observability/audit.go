package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AuditEvent is the structured record emitted for security-relevant actions.
// Versioned so downstream consumers can evolve their parsers.
type AuditEvent struct {
	EventVersion int    `json:"event_version"`
	EventName    string `json:"event_name"`
	ActorUserID  string `json:"actor_user_id"`
	ActorIP      string `json:"actor_ip"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason"`
	RequestID    string `json:"request_id"`
	TS           string `json:"ts"`
}

type AuditInput struct {
	EventName   string
	ActorUserID string
	TargetType  string
	TargetID    string
	Action      string
	Outcome     string
	Reason      string
}

func (e AuditEvent) Validate() error {
	if e.EventName == "" {
		return errors.New("audit event missing event_name")
	}
	if e.Action == "" {
		return errors.New("audit event missing action")
	}
	if e.Outcome == "" {
		return errors.New("audit event missing outcome")
	}
	return nil
}

func BuildAuditEvent(r *http.Request, in AuditInput) AuditEvent {
	actorIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		actorIP = host
	}
	actor := in.ActorUserID
	if actor == "" {
		actor = "anonymous"
	}
	return AuditEvent{
		EventVersion: 1,
		EventName:    in.EventName,
		ActorUserID:  actor,
		ActorIP:      actorIP,
		TargetType:   in.TargetType,
		TargetID:     in.TargetID,
		Action:       in.Action,
		Outcome:      in.Outcome,
		Reason:       in.Reason,
		RequestID:    r.Header.Get("X-Request-Id"),
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
}

// Audit emits one audit log line, tagged with trace context when present.
func Audit(r *http.Request, event string, attrs ...any) {
	msg := "audit"
	sc := trace.SpanContextFromContext(r.Context())
	if sc.IsValid() {
		msg = fmt.Sprintf("audit trace_id=%s span_id=%s", sc.TraceID().String(), sc.SpanID().String())
	}
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), msg, base...)
}

// AuditStructured validates and emits a structured audit event.
func AuditStructured(r *http.Request, in AuditInput) {
	ev := BuildAuditEvent(r, in)
	if err := ev.Validate(); err != nil {
		slog.WarnContext(r.Context(), "dropping malformed audit event", "error", err)
		return
	}
	Audit(r, ev.EventName,
		"actor_user_id", ev.ActorUserID,
		"actor_ip", ev.ActorIP,
		"target_type", ev.TargetType,
		"target_id", ev.TargetID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
		"ts", ev.TS,
	)
}
