package gateway

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

type User struct {
	ID      string
	Tag     string
	Mention string
	Bot     bool
}

type MessageRef struct {
	ID        string
	ChannelID string
	GuildID   string
}

type MessageEvent struct {
	ID        string
	ChannelID string
	GuildID   string
	Author    User
	Direct    bool
	Content   string
	// Permissions of the author in the channel; zero for direct messages.
	Permissions int64
	Mentions    []User
}

func (e MessageEvent) Ref() MessageRef {
	return MessageRef{ID: e.ID, ChannelID: e.ChannelID, GuildID: e.GuildID}
}

// Can reports whether the author holds permission, administrators hold all.
func (e MessageEvent) Can(permission int64) bool {
	if e.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return e.Permissions&permission == permission
}

type MemberEvent struct {
	GuildID string
	Member  User
}

type Gateway interface {
	Reply(ctx context.Context, to MessageRef, content string) error
	ReplyEmbed(ctx context.Context, to MessageRef, embed *discordgo.MessageEmbed) error
	Send(ctx context.Context, channelID, content string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
	SystemChannel(ctx context.Context, guildID string) (string, error)
}
