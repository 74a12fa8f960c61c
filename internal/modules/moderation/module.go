package moderation

import (
	"context"
	"fmt"
	"strings"

	"guildkeeper/internal/gateway"
	"guildkeeper/internal/modules/audit"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const DefaultReason = "No reason provided"

const (
	CommandBan  = "ban"
	CommandKick = "kick"
)

const deniedReply = "You do not have permission to use this command."

type action struct {
	permission int64
	event      string
	verb       string
	apply      func(gw gateway.Gateway, ctx context.Context, guildID, userID, reason string) error
}

var actions = map[string]action{
	CommandBan: {
		permission: discordgo.PermissionBanMembers,
		event:      audit.EventBan,
		verb:       "banned",
		apply:      gateway.Gateway.Ban,
	},
	CommandKick: {
		permission: discordgo.PermissionKickMembers,
		event:      audit.EventKick,
		verb:       "kicked",
		apply:      gateway.Gateway.Kick,
	},
}

func IsCommand(name string) bool {
	_, ok := actions[name]
	return ok
}

type Result struct {
	Action string
	Target gateway.User
	Reason string
	// Denied is set when the author lacks the permission, MissingTarget when
	// no member was mentioned. Neither is an error.
	Denied        bool
	MissingTarget bool
	Err           error
}

type Module struct {
	gateway gateway.Gateway
	audit   *audit.Logger
	logger  *zap.Logger
}

func New(gw gateway.Gateway, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{gateway: gw, audit: auditLogger, logger: logger}
}

func (m *Module) Handle(ctx context.Context, event gateway.MessageEvent, name string, args []string) Result {
	act, ok := actions[name]
	if !ok {
		return Result{Err: fmt.Errorf("unknown moderation command %q", name)}
	}
	result := Result{Action: name}

	if event.GuildID == "" || !event.Can(act.permission) {
		result.Denied = true
		m.reply(ctx, event, deniedReply)
		return result
	}
	if len(event.Mentions) == 0 {
		result.MissingTarget = true
		m.reply(ctx, event, fmt.Sprintf("You need to mention a user to %s.", name))
		return result
	}

	result.Target = event.Mentions[0]
	result.Reason = DefaultReason
	if len(args) > 1 {
		result.Reason = strings.Join(args[1:], " ")
	}

	detail := fmt.Sprintf("moderator=%s reason=%s", event.Author.ID, result.Reason)
	if err := act.apply(m.gateway, ctx, event.GuildID, result.Target.ID, result.Reason); err != nil {
		result.Err = err
		m.logger.Error("moderation action failed", zap.String("action", name), zap.String("guild_id", event.GuildID), zap.String("user_id", result.Target.ID), zap.Error(err))
		m.audit.Log(ctx, audit.LevelWarn, event.GuildID, result.Target.ID, audit.EventActionFailed, fmt.Sprintf("action=%s %s error=%v", name, detail, err))
	} else {
		m.audit.Log(ctx, audit.LevelWarn, event.GuildID, result.Target.ID, act.event, detail)
	}

	m.reply(ctx, event, fmt.Sprintf("Successfully %s %s.", act.verb, result.Target.Tag))
	return result
}

func (m *Module) reply(ctx context.Context, event gateway.MessageEvent, content string) {
	if err := m.gateway.Reply(ctx, event.Ref(), content); err != nil {
		m.logger.Warn("moderation reply failed", zap.String("channel_id", event.ChannelID), zap.Error(err))
	}
}
