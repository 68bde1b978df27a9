// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/store/audit"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in, sign-up and sign-out events.
	// Values: "all" (database + zap), "db" (database only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for moderation and content administration events.
	// Values: "all" (database + zap), "db" (database only), "log" (zap only), "off" (disabled)
	Admin string
}

// ValidMode reports whether v is one of the accepted Config values.
func ValidMode(v string) bool {
	switch v {
	case "all", "db", "log", "off":
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It logs to the audit table (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

type ipKey struct{}

// WithClientIP attaches the caller's address to ctx so store-level events
// can record it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey{}).(string)
	return ip
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// Middleware stores the client IP on every request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ClientIP(r))))
	})
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event models.AuditEvent) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("failure_reason", event.Reason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, event models.AuditEvent) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	if setting == "off" {
		return
	}
	if event.IP == "" {
		event.IP = clientIPFrom(ctx)
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) admin(ctx context.Context, eventType, actorID, userID string, details map[string]string) {
	l.Log(ctx, models.AuditEvent{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		ActorID:   actorID,
		UserID:    userID,
		Success:   true,
		Details:   details,
	})
}

// --- Authentication Events ---

func (l *Logger) SignInSuccess(ctx context.Context, userID, email string) {
	l.Log(ctx, models.AuditEvent{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignInSuccess,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// SignInFailed records a rejected sign-in. The user is unknown at this point,
// so only the attempted email is kept.
func (l *Logger) SignInFailed(ctx context.Context, email, reason string) {
	l.Log(ctx, models.AuditEvent{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignInFailed,
		Success:   false,
		Reason:    reason,
		Details:   map[string]string{"email": email},
	})
}

func (l *Logger) SignedUp(ctx context.Context, userID, email string) {
	l.Log(ctx, models.AuditEvent{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignUp,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

func (l *Logger) SignedOut(ctx context.Context, userID string) {
	l.Log(ctx, models.AuditEvent{
		Category:  audit.CategoryAuth,
		EventType: audit.EventSignOut,
		UserID:    userID,
		Success:   true,
	})
}

// --- Admin Events ---

func (l *Logger) RoleChanged(ctx context.Context, actorID, userID, from, to string) {
	l.admin(ctx, audit.EventRoleChanged, actorID, userID, map[string]string{"from": from, "to": to})
}

func (l *Logger) WarningIssued(ctx context.Context, actorID, userID, reason string) {
	l.admin(ctx, audit.EventWarningIssued, actorID, userID, map[string]string{"reason": reason})
}

// RestrictionChanged logs both directions of the forum restriction flag.
func (l *Logger) RestrictionChanged(ctx context.Context, actorID, userID string, restricted bool) {
	eventType := audit.EventUserUnrestricted
	if restricted {
		eventType = audit.EventUserRestricted
	}
	l.admin(ctx, eventType, actorID, userID, nil)
}

func (l *Logger) VisibilityChanged(ctx context.Context, actorID, userID string, visible bool) {
	l.admin(ctx, audit.EventVisibilityChanged, actorID, userID, map[string]string{"visible": strconv.FormatBool(visible)})
}

func (l *Logger) UserDeleted(ctx context.Context, actorID, userID, email string) {
	l.admin(ctx, audit.EventUserDeleted, actorID, userID, map[string]string{"email": email})
}

func (l *Logger) BroadcastSent(ctx context.Context, actorID string, recipients, failed int) {
	l.admin(ctx, audit.EventBroadcastSent, actorID, "", map[string]string{
		"recipients": strconv.Itoa(recipients),
		"failed":     strconv.Itoa(failed),
	})
}

// EventChanged logs a calendar event mutation. eventType is one of the
// audit.EventEvent* constants.
func (l *Logger) EventChanged(ctx context.Context, eventType, actorID, eventID, title string) {
	l.admin(ctx, eventType, actorID, "", map[string]string{"event_id": eventID, "title": title})
}

func (l *Logger) ResourceStatusChanged(ctx context.Context, actorID, resourceID, uploaderID, status string) {
	l.admin(ctx, audit.EventResourceStatusChanged, actorID, uploaderID, map[string]string{
		"resource_id": resourceID,
		"status":      status,
	})
}

func (l *Logger) ResourceDeleted(ctx context.Context, actorID, resourceID string) {
	l.admin(ctx, audit.EventResourceDeleted, actorID, "", map[string]string{"resource_id": resourceID})
}

func (l *Logger) DepartmentCreated(ctx context.Context, actorID, departmentID, code string) {
	l.admin(ctx, audit.EventDepartmentCreated, actorID, "", map[string]string{"department_id": departmentID, "code": code})
}

func (l *Logger) DepartmentDeleted(ctx context.Context, actorID, departmentID string) {
	l.admin(ctx, audit.EventDepartmentDeleted, actorID, "", map[string]string{"department_id": departmentID})
}

// PostModerated logs a flag, unflag or admin delete of forum content.
func (l *Logger) PostModerated(ctx context.Context, actorID, kind, id, action string) {
	l.admin(ctx, audit.EventPostModerated, actorID, "", map[string]string{"kind": kind, "id": id, "action": action})
}
