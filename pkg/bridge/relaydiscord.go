// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"strings"

	"github.com/littlerpg/mcbridge/pkg/bridge/mcfmt"
)

// RelayChatMessage forwards one message from the relay chat channel into the
// game. Automated authors are skipped and filtered messages are dropped
// silently.
func (r *Relay) RelayChatMessage(ctx context.Context, displayName, content string, bot bool) {
	if bot {
		return
	}
	if r.censor.ShouldBlock(content) {
		blockedMessages.Inc()
		return
	}

	name := []mcfmt.Segment{{Text: displayName, Color: "gray"}}
	if err := r.broadcast(ctx, tagSegments(name, content)); err != nil {
		r.log.Error().Err(err).Str("author", displayName).Msg("Chat message broadcast failed")
		r.notifyOperator("Relay broadcast failed for `%s`: %v", displayName, err)
		return
	}
	relayedMessages.WithLabelValues("chat_to_game").Inc()
}

// HandleClaimMessage parses a profile-link DM and, when it matches the claim
// pattern, records the identity link and promotes the member. Claims name
// the game identity being linked, so they are only accepted when authored by
// the configured link-plugin account; the linked user is the DM recipient.
// First-time links also dispatch the verification reward command and a
// confirmation DM. The return value reports whether a claim was handled.
func (r *Relay) HandleClaimMessage(ctx context.Context, authorID, userID, userHandle, content string) bool {
	if authorID != r.cfg.Relay.ClaimBotID {
		return false
	}
	groups, ok := matchGroups(r.cfg.claimRe, content)
	if !ok {
		return false
	}
	gameHandle, gameID := groups["name"], groups["uuid"]
	if gameHandle == "" || gameID == "" {
		return false
	}

	_, _, existed := r.links.ByGameID(gameID)

	prev, err := r.links.Upsert(userID, IdentityLink{
		GameID:     gameID,
		GameHandle: gameHandle,
		ChatHandle: userHandle,
	})
	if err != nil {
		r.log.Error().Err(err).Str("chat_id", userID).Msg("Failed to persist identity link")
		return true
	}
	event := r.log.Info().Str("chat_id", userID).Str("game_handle", gameHandle)
	if prev != nil {
		event = event.Str("previous_game_handle", prev.GameHandle)
	}
	event.Msg("Linked account")

	if !existed {
		if cmd := r.cfg.Relay.VerifyRewardCommand; cmd != "" {
			rendered := strings.ReplaceAll(cmd, "{username}", gameHandle)
			if _, err := r.console.Run(ctx, []string{rendered}); err != nil {
				consoleFailures.Inc()
				r.log.Error().Err(err).Msg("Verification reward command failed")
			}
		}
		notice := "For verifying, you have been given 1 Boost key!\n" +
			"If you do not see it, please run the ``/keys`` command to see if you have a virtual key.\n" +
			"If you did not receive a key, please contact staff."
		if err := r.chat.DirectMessage(userID, notice); err != nil {
			r.log.Error().Err(err).Str("chat_id", userID).Msg("Failed to DM link confirmation")
		}
	}

	if err := r.chat.AddRoles(userID, []string{r.cfg.Roles.Alternate}); err != nil {
		r.log.Error().Err(err).Str("chat_id", userID).Msg("Failed to grant linked role")
	}
	if err := r.chat.RemoveRoles(userID, []string{r.cfg.Roles.Base}); err != nil {
		r.log.Error().Err(err).Str("chat_id", userID).Msg("Failed to revoke base role")
	}
	return true
}
