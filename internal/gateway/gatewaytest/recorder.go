// Package gatewaytest provides an in-memory gateway.Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"

	"guildkeeper/internal/gateway"

	"github.com/bwmarrin/discordgo"
)

type Reply struct {
	To      gateway.MessageRef
	Content string
	Embed   *discordgo.MessageEmbed
}

type Sent struct {
	ChannelID string
	Content   string
}

type Action struct {
	Kind    string
	GuildID string
	UserID  string
	Value   string
}

// Recorder records every call. Set the *Err fields to make the matching call
// fail; Roles and SystemChannels answer lookups per guild.
type Recorder struct {
	mu      sync.Mutex
	Replies []Reply
	Sent    []Sent
	Actions []Action

	ReplyErr       error
	SendErr        error
	BanErr         error
	KickErr        error
	GrantErr       error
	LookupErr      error
	Roles          map[string][]string
	SystemChannels map[string]string
}

func New() *Recorder {
	return &Recorder{Roles: map[string][]string{}, SystemChannels: map[string]string{}}
}

func (r *Recorder) Reply(_ context.Context, to gateway.MessageRef, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, Reply{To: to, Content: content})
	return r.ReplyErr
}

func (r *Recorder) ReplyEmbed(_ context.Context, to gateway.MessageRef, embed *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Replies = append(r.Replies, Reply{To: to, Embed: embed})
	return r.ReplyErr
}

func (r *Recorder) Send(_ context.Context, channelID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = append(r.Sent, Sent{ChannelID: channelID, Content: content})
	return r.SendErr
}

func (r *Recorder) Ban(_ context.Context, guildID, userID, reason string) error {
	return r.action("ban", guildID, userID, reason, r.BanErr)
}

func (r *Recorder) Kick(_ context.Context, guildID, userID, reason string) error {
	return r.action("kick", guildID, userID, reason, r.KickErr)
}

func (r *Recorder) GrantRole(_ context.Context, guildID, userID, roleID string) error {
	return r.action("grant_role", guildID, userID, roleID, r.GrantErr)
}

func (r *Recorder) RoleExists(_ context.Context, guildID, roleID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LookupErr != nil {
		return false, r.LookupErr
	}
	for _, id := range r.Roles[guildID] {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Recorder) SystemChannel(_ context.Context, guildID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.LookupErr != nil {
		return "", r.LookupErr
	}
	return r.SystemChannels[guildID], nil
}

func (r *Recorder) action(kind, guildID, userID, value string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Actions = append(r.Actions, Action{Kind: kind, GuildID: guildID, UserID: userID, Value: value})
	return err
}

func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Replies) + len(r.Sent) + len(r.Actions)
}

var _ gateway.Gateway = (*Recorder)(nil)
