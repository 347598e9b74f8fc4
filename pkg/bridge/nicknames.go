// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"strings"

	"github.com/littlerpg/mcbridge/pkg/bridge/mcfmt"
)

// SyncNicknames walks the identity registry and aligns each member's chat
// nickname with their in-game name, preferring the profile nickname with
// formatting codes stripped. Per-member failures are logged and skipped so
// one bad profile cannot abort the pass.
func (r *Relay) SyncNicknames(ctx context.Context) {
	skip := make(map[string]bool, len(r.cfg.Relay.NicknameSyncSkip))
	for _, id := range r.cfg.Relay.NicknameSyncSkip {
		skip[id] = true
	}

	links := r.links.All()
	var found, neededChange, changed int
	for chatID, link := range links {
		member, err := r.chat.Member(chatID)
		if err != nil {
			r.log.Debug().Str("chat_id", chatID).Str("game_handle", link.GameHandle).Msg("Nickname sync: member not in guild")
			continue
		}
		found++
		if skip[chatID] {
			continue
		}

		final := link.GameHandle
		result, err := r.profiles.Fetch(ctx, link.GameID)
		if err != nil {
			r.log.Error().Err(err).Str("chat_id", chatID).Msg("Nickname sync: profile fetch failed")
		} else if result.Found && result.Data.Nickname != "" {
			final = mcfmt.Strip(result.Data.Nickname)
		}

		if strings.EqualFold(member.DisplayName, final) {
			continue
		}
		neededChange++
		if err := r.chat.SetNickname(chatID, final); err != nil {
			r.log.Error().Err(err).Str("chat_id", chatID).Str("nick", final).Msg("Nickname sync: edit failed")
			continue
		}
		changed++
	}

	r.log.Info().
		Int("found", found).
		Int("linked", len(links)).
		Int("changed", changed).
		Int("needed_change", neededChange).
		Msg("Nickname sync complete")
}
