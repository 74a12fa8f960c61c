package audit

import (
	"context"
	"time"

	"guildkeeper/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

const (
	EventBan           = "ban"
	EventKick          = "kick"
	EventDMLogged      = "dm_logged"
	EventDMLogFailed   = "dm_log_failed"
	EventRoleGranted   = "role_granted"
	EventRoleFailed    = "role_grant_failed"
	EventWelcomeFailed = "welcome_failed"
	EventAnswerFailed  = "answer_failed"
	EventActionFailed  = "action_failed"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	if l == nil {
		return
	}
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: l.now(),
	}
	if l.store != nil {
		if err := l.store.AddAuditLog(ctx, entry); err != nil {
			l.logger.Warn("audit store write failed", zap.String("event", event), zap.Error(err))
		}
	}
	fields := []zap.Field{zap.String("level", level), zap.String("guild_id", guildID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details)}
	switch level {
	case LevelCrit:
		l.logger.Error("audit", fields...)
	case LevelWarn:
		l.logger.Warn("audit", fields...)
	default:
		l.logger.Info("audit", fields...)
	}
}
