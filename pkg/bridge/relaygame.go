// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"fmt"

	"github.com/littlerpg/mcbridge/pkg/bridge/mcfmt"
)

// RelayGameMessage handles one inbound game-channel chat message from the
// game account gameID. The sender must have a live identity link; their
// display name is enriched from the profile source when available. The
// message is dispatched as a single in-game broadcast plus a forwarded chat
// embed.
func (r *Relay) RelayGameMessage(ctx context.Context, gameID, text string) {
	if r.censor.ShouldBlock(text) {
		blockedMessages.Inc()
		r.reply("That message was blocked by the chat filter and was not forwarded.")
		return
	}

	_, link, ok := r.links.ByGameID(gameID)
	if !ok {
		r.reply("Could not find your username!\nHave you linked your Discord account on the Minecraft server?")
		return
	}

	result, err := r.profiles.Fetch(ctx, gameID)
	if err != nil {
		r.log.Error().Err(err).Str("game_id", gameID).Msg("Profile fetch failed")
		r.reply("Failed to send: could not reach the game server.")
		r.notifyOperator("Profile fetch failed for game id `%s` (%s): %v", gameID, link.GameHandle, err)
		return
	}

	displayName := link.GameHandle
	if result.Found && result.Data.Nickname != "" {
		displayName = result.Data.Nickname
	}
	cleanName := mcfmt.Strip(displayName)

	var name []mcfmt.Segment
	if cleanName == displayName {
		name = []mcfmt.Segment{{Text: displayName, Color: "gray"}}
	} else {
		name = mcfmt.Decode(displayName)
	}

	if err := r.broadcast(ctx, tagSegments(name, text)); err != nil {
		r.log.Error().Err(err).Str("game_id", gameID).Msg("Game message broadcast failed")
		r.notifyOperator("Relay broadcast failed for `%s`: %v", cleanName, err)
		return
	}

	embed := fmt.Sprintf("**[Discord] %s:** %s", cleanName, text)
	if err := r.chat.SendEmbed(r.cfg.Channels.Relay, "Relay", embed); err != nil {
		r.log.Error().Err(err).Msg("Failed to forward relayed message to chat")
	}
	relayedMessages.WithLabelValues("game_to_chat").Inc()
}

// reply posts a short notice back to the relay channel.
func (r *Relay) reply(content string) {
	if err := r.chat.SendMessage(r.cfg.Channels.Relay, content); err != nil {
		r.log.Error().Err(err).Msg("Failed to post relay notice")
	}
}
