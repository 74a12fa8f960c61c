package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Gateway over a discordgo session. The REST calls do not
// take a context; ctx is accepted for interface symmetry.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) Reply(ctx context.Context, to MessageRef, content string) error {
	_ = ctx
	_, err := d.session.ChannelMessageSendReply(to.ChannelID, content, reference(to))
	return err
}

func (d *Discord) ReplyEmbed(ctx context.Context, to MessageRef, embed *discordgo.MessageEmbed) error {
	_ = ctx
	_, err := d.session.ChannelMessageSendComplex(to.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: reference(to),
	})
	return err
}

func (d *Discord) Send(ctx context.Context, channelID, content string) error {
	_ = ctx
	_, err := d.session.ChannelMessageSend(channelID, content)
	return err
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (d *Discord) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	_ = ctx
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Discord) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	_ = ctx
	if role, err := d.session.State.Role(guildID, roleID); err == nil && role != nil {
		return true, nil
	}
	roles, err := d.session.GuildRoles(guildID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.ID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (d *Discord) SystemChannel(ctx context.Context, guildID string) (string, error) {
	_ = ctx
	if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil {
		return guild.SystemChannelID, nil
	}
	guild, err := d.session.Guild(guildID)
	if err != nil {
		return "", err
	}
	return guild.SystemChannelID, nil
}

func (d *Discord) SetPresence(status, activity string) error {
	data := discordgo.UpdateStatusData{Status: status}
	if activity != "" {
		data.Activities = []*discordgo.Activity{{Name: activity, Type: discordgo.ActivityTypeGame}}
	}
	return d.session.UpdateStatusComplex(data)
}

func (d *Discord) SetAvatar(dataURI string) error {
	body := map[string]string{"avatar": dataURI}
	_, err := d.session.RequestWithBucketID("PATCH", discordgo.EndpointUser("@me"), body, discordgo.EndpointUsers)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (d *Discord) MessageEvent(msg *discordgo.MessageCreate) MessageEvent {
	event := MessageEvent{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
		Author:    userFrom(msg.Author),
		Direct:    msg.GuildID == "",
		Content:   msg.Content,
	}
	for _, mention := range msg.Mentions {
		if mention != nil {
			event.Mentions = append(event.Mentions, userFrom(mention))
		}
	}
	if !event.Direct && msg.Author != nil {
		if perms, err := d.session.UserChannelPermissions(msg.Author.ID, msg.ChannelID); err == nil {
			event.Permissions = perms
		}
	}
	return event
}

func MemberEventFrom(event *discordgo.GuildMemberAdd) MemberEvent {
	if event.Member == nil {
		return MemberEvent{}
	}
	return MemberEvent{GuildID: event.Member.GuildID, Member: userFrom(event.Member.User)}
}

func userFrom(user *discordgo.User) User {
	if user == nil {
		return User{}
	}
	return User{ID: user.ID, Tag: Tag(user), Mention: user.Mention(), Bot: user.Bot}
}

// Tag is the stable display identifier of a user: "name#1234", or just the
// username for accounts without a discriminator.
func Tag(user *discordgo.User) string {
	if user.Discriminator == "" || user.Discriminator == "0" {
		return user.Username
	}
	return user.Username + "#" + user.Discriminator
}

func reference(to MessageRef) *discordgo.MessageReference {
	return &discordgo.MessageReference{MessageID: to.ID, ChannelID: to.ChannelID, GuildID: to.GuildID}
}
