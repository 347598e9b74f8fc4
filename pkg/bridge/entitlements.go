// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/util/jsontime"

	"github.com/littlerpg/mcbridge/pkg/bridge/mcfmt"
)

// Transaction mirrors the JSON payload the storefront posts into the store
// backend channel. It is consumed once per purchase event.
type Transaction struct {
	UserName string          `json:"user_name"`
	Gross    float64         `json:"gross"`
	Currency string          `json:"currency"`
	Item     TransactionItem `json:"item"`
}

// TransactionItem describes the purchased item.
type TransactionItem struct {
	FriendlyName string      `json:"friendly_name"`
	Commands     []string    `json:"commands"`
	DiscordRoles []RoleEntry `json:"discord_roles"`
}

// RoleEntry is one chat-role mutation attached to a purchased item.
type RoleEntry struct {
	Name string `json:"name"`
	// Add defaults to true when absent from the payload.
	Add          *bool `json:"add"`
	DurationDays int   `json:"duration_days"`
}

func (e RoleEntry) add() bool {
	return e.Add == nil || *e.Add
}

// Entitlements processes purchase transactions and reconciles temporary
// grants on a schedule.
type Entitlements struct {
	chat    chatService
	console consoleRunner
	links   *LinkStore
	grants  *GrantStore
	revenue *RevenueLedger
	minRole *MinimumRole
	cfg     *Config
	log     zerolog.Logger
	now     func() time.Time
}

// NewEntitlements wires the entitlement manager.
func NewEntitlements(cfg *Config, chat chatService, console consoleRunner, links *LinkStore, grants *GrantStore, revenue *RevenueLedger, minRole *MinimumRole, log zerolog.Logger) *Entitlements {
	return &Entitlements{
		chat:    chat,
		console: console,
		links:   links,
		grants:  grants,
		revenue: revenue,
		minRole: minRole,
		cfg:     cfg,
		log:     log.With().Str("component", "entitlements").Logger(),
		now:     time.Now,
	}
}

// ProcessTransaction handles one purchase: audit logging, in-game command
// dispatch, and chat role grants. A command dispatch failure is logged but
// does not abort role handling.
func (e *Entitlements) ProcessTransaction(ctx context.Context, tx Transaction) {
	transactionsProcessed.Inc()
	e.auditTransaction(tx)
	e.dispatchCommands(ctx, tx)
	e.applyRoles(tx)
}

func (e *Entitlements) auditTransaction(tx Transaction) {
	line := fmt.Sprintf("__[%s]__\n``%s`` bought ``%s``\n$%.2f %s",
		e.now().Format("2006-01-02 15:04:05 MST"), tx.UserName, tx.Item.FriendlyName, tx.Gross, tx.Currency)
	if err := e.chat.SendMessage(e.cfg.Channels.StoreLog, line); err != nil {
		e.log.Error().Err(err).Msg("Failed to post transaction audit line")
	}
	if err := e.revenue.Add(e.now(), tx.Gross); err != nil {
		e.log.Error().Err(err).Msg("Failed to update revenue ledger")
	}
}

// dispatchCommands renders the item's command templates with the
// purchaser's game handle and appends one purchase announcement broadcast.
func (e *Entitlements) dispatchCommands(ctx context.Context, tx Transaction) {
	if len(tx.Item.Commands) == 0 {
		return
	}
	commands := make([]string, 0, len(tx.Item.Commands)+1)
	for _, tmpl := range tx.Item.Commands {
		commands = append(commands, strings.ReplaceAll(tmpl, "{username}", tx.UserName))
	}

	announcement, err := mcfmt.Tellraw([]mcfmt.Segment{
		{Text: "[LittleRpg Store] ", Color: "green"},
		{Text: tx.UserName, Color: "white", Bold: true},
		{Text: " has purchased ", Color: "white"},
		{Text: tx.Item.FriendlyName, Color: "white", Bold: true},
		{Text: "!", Color: "white"},
	})
	if err == nil {
		commands = append(commands, "tellraw @a "+announcement)
	}

	if _, err := e.console.Run(ctx, commands); err != nil {
		consoleFailures.Inc()
		e.log.Error().Err(err).Str("user", tx.UserName).Msg("Purchase command batch failed")
	}
}

// applyRoles resolves the purchaser and applies the item's role entries as
// one batched grant call and one batched revoke call. Timed grants are
// persisted and announced to operators for manual audit.
func (e *Entitlements) applyRoles(tx Transaction) {
	if len(tx.Item.DiscordRoles) == 0 {
		return
	}

	chatID, ok := e.links.ByGameHandle(tx.UserName)
	if !ok {
		e.notifyOperator("Could not find %s's discord, but they bought something with a role!", tx.UserName)
		return
	}
	member, err := e.chat.Member(chatID)
	if err != nil {
		e.notifyOperator("%s isn't in the discord anymore, but they bought something with a role!", tx.UserName)
		return
	}

	var toAdd, toRemove []string
	var temp []TemporaryGrant
	now := e.now()
	for _, entry := range tx.Item.DiscordRoles {
		roleID, ok := e.cfg.Roles.Purchasable[entry.Name]
		if !ok {
			e.log.Warn().Str("role", entry.Name).Msg("Purchased role is not configured")
			continue
		}
		if !entry.add() {
			toRemove = append(toRemove, roleID)
			continue
		}
		toAdd = append(toAdd, roleID)
		if entry.DurationDays > 0 {
			expiry := now.Add(time.Duration(entry.DurationDays) * 24 * time.Hour)
			temp = append(temp, TemporaryGrant{RoleID: roleID, Expiry: jsontime.Unix{Time: expiry}})
			e.notifyOperator("%s (%s) has purchased a temporary role (%s for %d days).\n"+
				"Automatic role strip, or notification if failed, will occur, but keep an eye out regardless.",
				tx.UserName, member.Username, entry.Name, entry.DurationDays)
		}
	}

	if len(temp) > 0 {
		if err := e.grants.Append(chatID, temp); err != nil {
			e.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to persist temporary grants")
		}
	}
	if len(toAdd) > 0 {
		if err := e.chat.AddRoles(chatID, toAdd); err != nil {
			e.notifyOperator("Failed to grant purchased roles to %s: %v", tx.UserName, err)
		}
	}
	if len(toRemove) > 0 {
		if err := e.chat.RemoveRoles(chatID, toRemove); err != nil {
			e.notifyOperator("Failed to revoke purchased role removals for %s: %v", tx.UserName, err)
		}
	}
}

// ReconcileTick expires temporary grants. For each chat account holding
// grants: missing members are skipped with a log line; expired grants are
// pruned from memory exactly once and their roles revoked, a revoke failure
// notifying operators without stopping the pass; the member's minimum-role
// invariant is re-checked with warnings suppressed. Storage is persisted
// once after the full pass, so a crash mid-pass can only cause a redundant,
// idempotent revoke attempt next tick.
func (e *Entitlements) ReconcileTick() {
	now := e.now()
	for _, chatID := range e.grants.ChatIDs() {
		member, err := e.chat.Member(chatID)
		if err != nil {
			e.log.Warn().Str("chat_id", chatID).Msg("Reconcile: member not found, skipping")
			continue
		}

		for _, grant := range e.grants.Prune(chatID, now) {
			grantsExpired.Inc()
			if err := e.chat.RemoveRoles(chatID, []string{grant.RoleID}); err != nil {
				e.notifyOperator("Could not remove temporary role `%s` from <@%s>: %v", grant.RoleID, chatID, err)
				continue
			}
			e.notifyOperator("Removed temporary role `%s` from <@%s>", grant.RoleID, chatID)
		}

		e.minRole.CheckMember(member, false)
	}

	if err := e.grants.Persist(); err != nil {
		e.log.Error().Err(err).Msg("Reconcile: failed to persist grants")
	}
}

func (e *Entitlements) notifyOperator(format string, args ...any) {
	if err := e.chat.SendMessage(e.cfg.Channels.Operator, fmt.Sprintf(format, args...)); err != nil {
		e.log.Error().Err(err).Msg("Failed to notify operator channel")
	}
}
