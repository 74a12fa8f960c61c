package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"guildkeeper/internal/dmlog"
	"guildkeeper/internal/gateway"
	"guildkeeper/internal/generator"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/modules/moderation"
	"guildkeeper/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	AckReply     = "Thanks for your message! Your DM has been logged."
	ApologyReply = "I'm sorry, I encountered an error and cannot respond right now."

	discordLinkPhrase = "discord link"
)

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeIgnored
	OutcomeDirectMessage
	OutcomeModeration
	OutcomeCustomCommand
	OutcomeDiscordLink
	OutcomeRedirect
	OutcomeAnswer
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDirectMessage:
		return "direct_message"
	case OutcomeModeration:
		return "moderation"
	case OutcomeCustomCommand:
		return "custom_command"
	case OutcomeDiscordLink:
		return "discord_link"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeAnswer:
		return "answer"
	default:
		return "none"
	}
}

// DMLog accepts entries without blocking the caller; the channel reports the
// write outcome once.
type DMLog interface {
	Submit(entry dmlog.Entry) <-chan error
}

type Config struct {
	Prefix string
	Footer string
}

type Pipeline struct {
	cfg        Config
	settings   *settings.Settings
	gateway    gateway.Gateway
	dms        DMLog
	answers    generator.Generator
	moderation *moderation.Module
	audit      *audit.Logger
	logger     *zap.Logger
	now        func() time.Time
	selfID     atomic.Value
	pending    sync.WaitGroup
}

func New(cfg Config, s *settings.Settings, gw gateway.Gateway, dms DMLog, answers generator.Generator, auditLogger *audit.Logger, logger *zap.Logger) *Pipeline {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	p := &Pipeline{
		cfg:        cfg,
		settings:   s,
		gateway:    gw,
		dms:        dms,
		answers:    answers,
		moderation: moderation.New(gw, auditLogger, logger.Named("moderation")),
		audit:      auditLogger,
		logger:     logger,
		now:        time.Now,
	}
	p.selfID.Store("")
	return p
}

func (p *Pipeline) SetSelfID(id string) {
	p.selfID.Store(id)
}

func (p *Pipeline) Wait() {
	p.pending.Wait()
}

func (p *Pipeline) HandleMessage(ctx context.Context, event gateway.MessageEvent) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("dispatch panic", zap.Any("panic", r), zap.String("message_id", event.ID), zap.String("channel_id", event.ChannelID))
			outcome = OutcomeNone
		}
	}()
	outcome = p.route(ctx, event)
	if outcome != OutcomeIgnored {
		p.logger.Debug("message dispatched", zap.String("message_id", event.ID), zap.String("stage", outcome.String()))
	}
	return outcome
}

func (p *Pipeline) route(ctx context.Context, event gateway.MessageEvent) Outcome {
	if p.isSelf(event.Author) {
		return OutcomeIgnored
	}
	if event.Direct {
		p.logDirectMessage(ctx, event)
		return OutcomeDirectMessage
	}

	if name, args, ok := p.parseCommand(event.Content); ok {
		if moderation.IsCommand(name) {
			p.moderation.Handle(ctx, event, name, args)
			return OutcomeModeration
		}
		if response, found := p.settings.CustomResponse(name); found {
			p.reply(ctx, event, response)
			return OutcomeCustomCommand
		}
	}

	lowered := strings.ToLower(event.Content)
	if strings.Contains(lowered, discordLinkPhrase) {
		content := fmt.Sprintf("Hey, %s, here is the link: %s", event.Author.Mention, p.settings.DiscordLink)
		if err := p.gateway.Send(ctx, event.ChannelID, content); err != nil {
			p.logger.Warn("discord link reply failed", zap.String("channel_id", event.ChannelID), zap.Error(err))
		}
		return OutcomeDiscordLink
	}

	if !strings.HasSuffix(event.Content, "?") {
		return OutcomeNone
	}
	if channelID, found := p.settings.ChannelKeywords.Match(lowered); found {
		p.replyEmbed(ctx, event, redirectEmbed(channelID))
		return OutcomeRedirect
	}
	p.answer(ctx, event)
	return OutcomeAnswer
}

func (p *Pipeline) isSelf(author gateway.User) bool {
	if author.Bot || author.ID == "" {
		return true
	}
	self, _ := p.selfID.Load().(string)
	return self != "" && author.ID == self
}

func (p *Pipeline) parseCommand(content string) (string, []string, bool) {
	if !strings.HasPrefix(content, p.cfg.Prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(p.cfg.Prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

func (p *Pipeline) logDirectMessage(ctx context.Context, event gateway.MessageEvent) {
	entry := dmlog.NewEntry(p.now(), event.Author.Tag, event.Content)
	result := p.dms.Submit(entry)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()
		p.recordDMResult(context.WithoutCancel(ctx), event, <-result)
	}()

	p.logger.Info("direct message", zap.String("user_id", event.Author.ID), zap.String("author", event.Author.Tag))
	p.reply(ctx, event, AckReply)
}

func (p *Pipeline) recordDMResult(ctx context.Context, event gateway.MessageEvent, err error) {
	if err != nil {
		p.logger.Error("dm log append failed", zap.String("user_id", event.Author.ID), zap.Error(err))
		p.audit.Log(ctx, audit.LevelWarn, "", event.Author.ID, audit.EventDMLogFailed, err.Error())
		return
	}
	p.audit.Log(ctx, audit.LevelInfo, "", event.Author.ID, audit.EventDMLogged, "author="+event.Author.Tag)
}

func (p *Pipeline) answer(ctx context.Context, event gateway.MessageEvent) {
	text, err := p.answers.Generate(ctx, event.Content)
	if err != nil {
		kind := generator.KindOf(err)
		p.logger.Warn("answer generation failed", zap.String("kind", kind.String()), zap.String("channel_id", event.ChannelID), zap.Error(err))
		p.audit.Log(ctx, audit.LevelWarn, event.GuildID, event.Author.ID, audit.EventAnswerFailed, "kind="+kind.String())
		text = ApologyReply
	}
	p.replyEmbed(ctx, event, answerEmbed(text, p.cfg.Footer, p.now()))
}

func (p *Pipeline) reply(ctx context.Context, event gateway.MessageEvent, content string) {
	if err := p.gateway.Reply(ctx, event.Ref(), content); err != nil {
		p.logger.Warn("reply failed", zap.String("channel_id", event.ChannelID), zap.String("message_id", event.ID), zap.Error(err))
	}
}

func (p *Pipeline) replyEmbed(ctx context.Context, event gateway.MessageEvent, embed *discordgo.MessageEmbed) {
	if err := p.gateway.ReplyEmbed(ctx, event.Ref(), embed); err != nil {
		p.logger.Warn("embed reply failed", zap.String("channel_id", event.ChannelID), zap.String("message_id", event.ID), zap.Error(err))
	}
}
