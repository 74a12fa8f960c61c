package gateway

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestTag(t *testing.T) {
	if got := Tag(&discordgo.User{Username: "alice", Discriminator: "0042"}); got != "alice#0042" {
		t.Fatalf("unexpected tag %q", got)
	}
	if got := Tag(&discordgo.User{Username: "bob", Discriminator: "0"}); got != "bob" {
		t.Fatalf("unexpected tag %q", got)
	}
}

func TestDirectMessageEvent(t *testing.T) {
	d := NewDiscord(&discordgo.Session{})
	msg := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "dm1",
		Content:   "hello",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
	}}
	event := d.MessageEvent(msg)
	if !event.Direct {
		t.Fatalf("expected direct message")
	}
	if event.Author.Tag != "alice" || event.Author.Mention != "<@u1>" {
		t.Fatalf("unexpected author %+v", event.Author)
	}
	if event.Permissions != 0 {
		t.Fatalf("direct messages carry no permissions")
	}
}

func TestCan(t *testing.T) {
	event := MessageEvent{Permissions: discordgo.PermissionKickMembers}
	if !event.Can(discordgo.PermissionKickMembers) {
		t.Fatalf("expected kick permission")
	}
	if event.Can(discordgo.PermissionBanMembers) {
		t.Fatalf("unexpected ban permission")
	}
	admin := MessageEvent{Permissions: discordgo.PermissionAdministrator}
	if !admin.Can(discordgo.PermissionBanMembers) {
		t.Fatalf("administrators hold every permission")
	}
}

func TestMemberEventFrom(t *testing.T) {
	event := MemberEventFrom(&discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "u1", Username: "carol"}}})
	if event.GuildID != "g1" || event.Member.ID != "u1" {
		t.Fatalf("unexpected member event %+v", event)
	}
}
