package dispatch

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	redirectColor = 0xFFD700
	answerColor   = 0x0099FF

	// Discord rejects embed descriptions longer than this many characters.
	maxDescription = 4096
)

func redirectEmbed(channelID string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Channel Redirect",
		Description: fmt.Sprintf("I can't answer that here, but you can find more information in our dedicated channel: <#%s>", channelID),
		Color:       redirectColor,
	}
}

func answerEmbed(text, footer string, at time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Answering your question...",
		Description: truncate(text, maxDescription),
		Color:       answerColor,
		Timestamp:   at.UTC().Format(time.RFC3339),
	}
	if footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer}
	}
	return embed
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
