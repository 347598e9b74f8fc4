// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/littlerpg/mcbridge/pkg/console"
)

// Bridge owns the engine's components and ties them to the chat session and
// the periodic task scheduler.
type Bridge struct {
	cfg     *Config
	log     zerolog.Logger
	session *discordgo.Session

	chat         chatService
	console      consoleRunner
	links        *LinkStore
	grants       *GrantStore
	relay        *Relay
	entitlements *Entitlements
	minRole      *MinimumRole

	cron       *cron.Cron
	metricsSrv *http.Server
	// storeEnabled is cleared when the startup console probe fails; store
	// integration (transactions + reconciliation) is disabled for the run.
	storeEnabled bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a bridge from config. The chat session is created but not
// opened; call Start.
func New(cfg *Config, log zerolog.Logger) (*Bridge, error) {
	session, err := discordgo.New("Bot " + cfg.Secrets.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	chat := newDiscordService(session, cfg.GuildID)
	runner := console.NewClient(cfg.Console.Addr, cfg.Secrets.ConsolePassword, cfg.Console.Timeout.Std(), log)
	links := NewLinkStore(filepath.Join(cfg.DataDir, "profile_links.json"), log)
	grants := NewGrantStore(filepath.Join(cfg.DataDir, "store_temporary_purchases.json"), log)
	censor := NewCensor(cfg.Censor.Prefixes, cfg.Censor.Words, cfg.Censor.Bypass)
	profiles := newFTPProfileSource(cfg.Profiles.Addr, cfg.Secrets.FTPUsername, cfg.Secrets.FTPPassword,
		cfg.Profiles.UserdataPath, cfg.Profiles.Timeout.Std(), log)
	revenue := NewRevenueLedger(filepath.Join(cfg.DataDir, "monthly_progress"))

	minRole := NewMinimumRole(cfg, chat, log)
	relay := NewRelay(cfg, chat, runner, links, censor, profiles, log)
	entitlements := NewEntitlements(cfg, chat, runner, links, grants, revenue, minRole, log)

	b := &Bridge{
		cfg:          cfg,
		log:          log.With().Str("component", "bridge").Logger(),
		session:      session,
		chat:         chat,
		console:      runner,
		links:        links,
		grants:       grants,
		relay:        relay,
		entitlements: entitlements,
		minRole:      minRole,
	}
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onGuildMemberAdd)
	return b, nil
}

// Start loads the durable collections, opens the chat session, probes the
// command channel and schedules the periodic tasks.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.links.Load(); err != nil {
		return err
	}
	if err := b.grants.Load(); err != nil {
		return err
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open chat session: %w", err)
	}

	b.storeEnabled = b.console.Probe(b.ctx)
	if !b.storeEnabled {
		b.log.Error().Msg("Could not establish console connection, disabling store integration")
	}

	b.metricsSrv = serveMetrics(b.cfg.MetricsAddr, b.log)

	b.cron = cron.New()
	if b.storeEnabled {
		if _, err := b.cron.AddFunc("@every "+b.cfg.Tasks.Reconcile.Std().String(), b.entitlements.ReconcileTick); err != nil {
			return fmt.Errorf("schedule reconcile: %w", err)
		}
	}
	if _, err := b.cron.AddFunc("@every "+b.cfg.Tasks.MinimumRole.Std().String(), b.minRole.Sweep); err != nil {
		return fmt.Errorf("schedule minimum role sweep: %w", err)
	}
	if _, err := b.cron.AddFunc("@every "+b.cfg.Tasks.NicknameSync.Std().String(), func() {
		b.relay.SyncNicknames(b.ctx)
	}); err != nil {
		return fmt.Errorf("schedule nickname sync: %w", err)
	}
	b.cron.Start()

	b.log.Info().
		Int("links", b.links.Len()).
		Bool("store_enabled", b.storeEnabled).
		Msg("Bridge started")
	return nil
}

// Stop halts the scheduler and closes the chat session. In-flight console
// calls finish or time out on their own connection timeout.
func (b *Bridge) Stop() {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.metricsSrv != nil {
		if err := b.metricsSrv.Close(); err != nil {
			b.log.Error().Err(err).Msg("Failed to close metrics listener")
		}
	}
	if err := b.session.Close(); err != nil {
		b.log.Error().Err(err).Msg("Failed to close chat session")
	}
}

func (b *Bridge) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	// DMs carry profile-claim messages from the game-side link plugin,
	// which may share this bot's account, so the self check comes after.
	if m.GuildID == "" {
		b.handleClaimDM(s, m)
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	switch m.ChannelID {
	case b.cfg.Channels.StoreBackend:
		b.handleTransactionMessage(m.Content)
	case b.cfg.Channels.Relay:
		if m.Author.ID == b.cfg.Relay.GameBotID {
			if groups, ok := matchGroups(b.cfg.gameChatRe, m.Content); ok {
				b.relay.RelayGameMessage(b.ctx, groups["id"], groups["text"])
			}
			return
		}
		b.relay.RelayChatMessage(b.ctx, displayName(m), m.Content, m.Author.Bot)
	}
}

// handleClaimDM routes a claim DM: the author must be the link plugin and
// the DM recipient is the account being linked.
func (b *Bridge) handleClaimDM(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID != b.cfg.Relay.ClaimBotID {
		return
	}
	channel, err := s.Channel(m.ChannelID)
	if err != nil {
		b.log.Error().Err(err).Str("channel_id", m.ChannelID).Msg("Failed to resolve claim DM recipient")
		return
	}
	if len(channel.Recipients) == 0 {
		return
	}
	user := channel.Recipients[0]
	b.relay.HandleClaimMessage(b.ctx, m.Author.ID, user.ID, user.Username, m.Content)
}

func (b *Bridge) handleTransactionMessage(content string) {
	if !b.storeEnabled {
		b.log.Warn().Msg("Dropping transaction, store integration is disabled")
		return
	}
	var tx Transaction
	if err := json.Unmarshal([]byte(content), &tx); err != nil {
		b.log.Error().Err(err).Str("content", content).Msg("Failed to parse transaction payload")
		return
	}
	b.entitlements.ProcessTransaction(b.ctx, tx)
}

func (b *Bridge) onGuildMemberAdd(_ *discordgo.Session, g *discordgo.GuildMemberAdd) {
	if g.GuildID != b.cfg.GuildID {
		return
	}
	b.minRole.HandleMemberJoin(memberFromDiscord(g.Member))
}

func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	return m.Author.Username
}
