// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package bridge links a Discord community to a live Minecraft server: it
// keeps a durable identity link between the two account systems, relays
// chat in both directions with rich-text translation, executes purchase
// commands over the remote console, and enforces membership entitlements on
// a schedule.
//
// # Core Types
//
// [Bridge] owns the components, the Discord session, and the periodic task
// scheduler.
//
// [LinkStore] is the identity-link registry: the single writer of
// chat-account to game-account links, persisted as an atomically rewritten
// JSON datafile.
//
// [Relay] forwards messages between the relay channel and the game server,
// gated by the content filter, and handles profile-claim DMs and nickname
// sync.
//
// [Entitlements] processes purchase transactions, records temporary role
// grants, and expires them during reconciliation ticks. [MinimumRole]
// enforces the base-or-alternate role invariant for every member.
//
// # Durable State
//
// Two collections persist across restarts: identity links and temporary
// grants. Both are loaded wholesale at startup and rewritten wholesale on
// mutation; each is guarded by its own lock so concurrent event handlers
// cannot interleave read-modify-write cycles.
//
// # Sub-packages
//
//   - mcfmt converts Minecraft legacy formatting codes to structured
//     segments and tellraw JSON.
package bridge
