package bot

import (
	"context"
	"net/http"
	"sync"
	"time"

	"guildkeeper/internal/avatar"
	"guildkeeper/internal/config"
	"guildkeeper/internal/dispatch"
	"guildkeeper/internal/dmlog"
	"guildkeeper/internal/gateway"
	"guildkeeper/internal/generator"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/modules/welcome"
	"guildkeeper/internal/settings"
	"guildkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	retentionInterval = 24 * time.Hour
	avatarTimeout     = 30 * time.Second
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	settings   *settings.Settings
	store      *storage.Store
	audit      *audit.Logger
	session    *discordgo.Session
	gateway    *gateway.Discord
	dms        *dmlog.Store
	pipeline   *dispatch.Pipeline
	welcome    *welcome.Module
	httpClient *http.Client
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	// handlers counts event handlers in flight; no new ones start once
	// stopping is set.
	handlersMu sync.Mutex
	stopping   bool
	handlers   sync.WaitGroup
}

// New wires the message pipeline and member handler to a discord session.
// store may be nil, in which case audit records only reach the logger and
// retention cleanup is skipped.
func New(cfg config.Config, logger *zap.Logger, s *settings.Settings, store *storage.Store, auditLogger *audit.Logger, answers generator.Generator) (*Bot, error) {
	if err := cfg.RequireDiscord(); err != nil {
		return nil, err
	}
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	gw := gateway.NewDiscord(session)
	dms := dmlog.Open(cfg.DMLogPath, logger.Named("dmlog"))

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		settings:   s,
		store:      store,
		audit:      auditLogger,
		session:    session,
		gateway:    gw,
		dms:        dms,
		httpClient: &http.Client{Timeout: avatarTimeout},
		stop:       make(chan struct{}),
	}
	b.pipeline = dispatch.New(dispatch.Config{
		Prefix: cfg.CommandPrefix,
		Footer: generator.Footer(cfg.Generator.Provider),
	}, s, gw, dms, answers, auditLogger, logger.Named("dispatch"))
	b.welcome = welcome.New(s, gw, auditLogger, logger.Named("welcome"))

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)

	if err := b.session.Open(); err != nil {
		return err
	}

	b.startRetention()
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	b.stopOnce.Do(func() { close(b.stop) })
	b.handlersMu.Lock()
	b.stopping = true
	b.handlersMu.Unlock()
	if b.session != nil {
		_ = b.session.Close()
	}

	done := make(chan struct{})
	go func() {
		b.handlers.Wait()
		b.pipeline.Wait()
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("shutdown timed out waiting for pending work")
	}
	b.dms.Close()
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	if !b.enter() {
		return
	}
	defer b.handlers.Done()
	if event.User != nil {
		b.pipeline.SetSelfID(event.User.ID)
		b.logger.Info("discord ready", zap.String("user", gateway.Tag(event.User)), zap.Int("guilds", len(event.Guilds)))
	}

	if err := b.gateway.SetPresence(b.settings.Status, b.settings.Activity); err != nil {
		b.logger.Warn("presence update failed", zap.Error(err))
	}

	if b.settings.AvatarURL == "" {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), avatarTimeout)
		defer cancel()
		b.updateAvatar(ctx, b.settings.AvatarURL)
	}()
}

func (b *Bot) updateAvatar(ctx context.Context, url string) {
	dataURI, err := avatar.Prepare(ctx, b.httpClient, url)
	if err != nil {
		b.logger.Warn("avatar download failed", zap.String("url", url), zap.Error(err))
		return
	}
	if err := b.gateway.SetAvatar(dataURI); err != nil {
		b.logger.Warn("avatar update failed", zap.Error(err))
		return
	}
	b.logger.Info("avatar updated", zap.String("url", url))
}

func (b *Bot) enter() bool {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	if b.stopping {
		return false
	}
	b.handlers.Add(1)
	return true
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg == nil || msg.Message == nil || msg.Author == nil {
		return
	}
	if !b.enter() {
		return
	}
	defer b.handlers.Done()
	b.pipeline.HandleMessage(context.Background(), b.gateway.MessageEvent(msg))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	member := gateway.MemberEventFrom(event)
	if member.GuildID == "" || member.Member.ID == "" {
		return
	}
	if !b.enter() {
		return
	}
	defer b.handlers.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("member handler panic", zap.Any("panic", r), zap.String("guild_id", member.GuildID))
		}
	}()
	b.welcome.HandleJoin(context.Background(), member)
}

func (b *Bot) startRetention() {
	if b.store == nil || b.cfg.RetentionDays <= 0 {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.cleanupAuditLogs()
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				b.cleanupAuditLogs()
			}
		}
	}()
}

func (b *Bot) cleanupAuditLogs() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	removed, err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays)
	if err != nil {
		b.logger.Warn("audit retention cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		b.logger.Info("audit retention cleanup", zap.Int64("removed", removed), zap.Int("retention_days", b.cfg.RetentionDays))
	}
}
