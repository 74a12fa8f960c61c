package welcome

import (
	"context"
	"fmt"

	"guildkeeper/internal/gateway"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/settings"

	"go.uber.org/zap"
)

type Module struct {
	settings *settings.Settings
	gateway  gateway.Gateway
	audit    *audit.Logger
	logger   *zap.Logger
}

func New(cfg *settings.Settings, gw gateway.Gateway, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{settings: cfg, gateway: gw, audit: auditLogger, logger: logger}
}

type Result struct {
	Welcomed    bool
	RoleGranted bool
	WelcomeErr  error
	RoleErr     error
}

func (m *Module) HandleJoin(ctx context.Context, event gateway.MemberEvent) Result {
	var result Result
	if event.GuildID == "" || event.Member.ID == "" {
		return result
	}
	result.Welcomed, result.WelcomeErr = m.welcome(ctx, event)
	if result.WelcomeErr != nil {
		m.logger.Warn("welcome message failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.Member.ID), zap.Error(result.WelcomeErr))
		m.audit.Log(ctx, audit.LevelWarn, event.GuildID, event.Member.ID, audit.EventWelcomeFailed, result.WelcomeErr.Error())
	}
	result.RoleGranted, result.RoleErr = m.grantRole(ctx, event)
	if result.RoleErr != nil {
		m.logger.Warn("auto role failed", zap.String("guild_id", event.GuildID), zap.String("user_id", event.Member.ID), zap.Error(result.RoleErr))
		m.audit.Log(ctx, audit.LevelWarn, event.GuildID, event.Member.ID, audit.EventRoleFailed, result.RoleErr.Error())
	}
	return result
}

func (m *Module) welcome(ctx context.Context, event gateway.MemberEvent) (bool, error) {
	message, ok := m.settings.Welcome(event.Member.Mention)
	if !ok {
		return false, nil
	}
	channelID, err := m.gateway.SystemChannel(ctx, event.GuildID)
	if err != nil {
		return false, fmt.Errorf("resolve system channel: %w", err)
	}
	if channelID == "" {
		return false, nil
	}
	if err := m.gateway.Send(ctx, channelID, message); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Module) grantRole(ctx context.Context, event gateway.MemberEvent) (bool, error) {
	roleID := m.settings.AutoRoleID
	if roleID == "" {
		return false, nil
	}
	exists, err := m.gateway.RoleExists(ctx, event.GuildID, roleID)
	if err != nil {
		return false, fmt.Errorf("resolve role %s: %w", roleID, err)
	}
	if !exists {
		return false, nil
	}
	if err := m.gateway.GrantRole(ctx, event.GuildID, event.Member.ID, roleID); err != nil {
		return false, err
	}
	m.audit.Log(ctx, audit.LevelInfo, event.GuildID, event.Member.ID, audit.EventRoleGranted, "role="+roleID)
	return true, nil
}
