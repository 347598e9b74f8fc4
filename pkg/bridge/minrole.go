// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"fmt"

	"github.com/rs/zerolog"
)

// MinimumRole enforces the membership invariant: every non-bot member holds
// the base role or the alternate role, never both and never neither.
type MinimumRole struct {
	chat chatService
	cfg  *Config
	log  zerolog.Logger
}

// NewMinimumRole wires the invariant checker.
func NewMinimumRole(cfg *Config, chat chatService, log zerolog.Logger) *MinimumRole {
	return &MinimumRole{
		chat: chat,
		cfg:  cfg,
		log:  log.With().Str("component", "minrole").Logger(),
	}
}

// Sweep checks every guild member. Per-member failures are logged and
// skipped so one member cannot abort the pass.
func (m *MinimumRole) Sweep() {
	members, err := m.chat.Members()
	if err != nil {
		m.log.Error().Err(err).Msg("Minimum role sweep: failed to fetch members")
		return
	}
	for _, member := range members {
		if member.Bot {
			continue
		}
		m.CheckMember(member, true)
	}
}

// CheckMember restores the invariant for one member. A member with neither
// role gets the base role (with an operator warning unless warn is false,
// so a routine expiry does not re-trigger the warning); a member with both
// loses the base role, which is routine and only logged.
func (m *MinimumRole) CheckMember(member *Member, warn bool) {
	hasBase := member.HasRole(m.cfg.Roles.Base)
	hasAlt := member.HasRole(m.cfg.Roles.Alternate)

	switch {
	case !hasBase && !hasAlt:
		if err := m.chat.AddRoles(member.ID, []string{m.cfg.Roles.Base}); err != nil {
			m.log.Error().Err(err).Str("chat_id", member.ID).Msg("Failed to grant base role")
			return
		}
		if warn {
			notice := fmt.Sprintf("Warning: <@%s> was missing the base role. Adding.", member.ID)
			if err := m.chat.SendMessage(m.cfg.Channels.Operator, notice); err != nil {
				m.log.Error().Err(err).Msg("Failed to post minimum role warning")
			}
		} else {
			m.log.Info().Str("chat_id", member.ID).Msg("Granted base role")
		}
	case hasBase && hasAlt:
		if err := m.chat.RemoveRoles(member.ID, []string{m.cfg.Roles.Base}); err != nil {
			m.log.Error().Err(err).Str("chat_id", member.ID).Msg("Failed to remove redundant base role")
			return
		}
		m.log.Info().Str("chat_id", member.ID).Msg("Removed redundant base role")
	}
}

// HandleMemberJoin grants the base role immediately on join when the member
// holds neither role, without waiting for the next sweep.
func (m *MinimumRole) HandleMemberJoin(member *Member) {
	if member.Bot || member.HasRole(m.cfg.Roles.Base) || member.HasRole(m.cfg.Roles.Alternate) {
		return
	}
	if err := m.chat.AddRoles(member.ID, []string{m.cfg.Roles.Base}); err != nil {
		m.log.Error().Err(err).Str("chat_id", member.ID).Msg("Failed to grant base role on join")
	}
}
