// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type entitlementsFixture struct {
	ent     *Entitlements
	chat    *fakeChat
	console *fakeConsole
	links   *LinkStore
	grants  *GrantStore
	cfg     *Config
	now     time.Time
}

func newEntitlementsFixture(t *testing.T) *entitlementsFixture {
	t.Helper()
	cfg := testConfig(t)
	chat := newFakeChat()
	console := &fakeConsole{online: true}
	links := NewLinkStore(filepath.Join(cfg.DataDir, "profile_links.json"), testLogger())
	if err := links.Load(); err != nil {
		t.Fatal(err)
	}
	grants := NewGrantStore(filepath.Join(cfg.DataDir, "grants.json"), testLogger())
	if err := grants.Load(); err != nil {
		t.Fatal(err)
	}
	revenue := NewRevenueLedger(filepath.Join(cfg.DataDir, "monthly_progress"))
	minRole := NewMinimumRole(cfg, chat, testLogger())
	ent := NewEntitlements(cfg, chat, console, links, grants, revenue, minRole, testLogger())

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ent.now = func() time.Time { return now }
	return &entitlementsFixture{
		ent:     ent,
		chat:    chat,
		console: console,
		links:   links,
		grants:  grants,
		cfg:     cfg,
		now:     now,
	}
}

func vipTransaction() Transaction {
	return Transaction{
		UserName: "Steve",
		Gross:    9.99,
		Currency: "USD",
		Item: TransactionItem{
			FriendlyName: "VIP Rank",
			Commands:     []string{"give {username} vip_kit"},
			DiscordRoles: []RoleEntry{{Name: "VIP", DurationDays: 30}},
		},
	}
}

func TestProcessTransaction(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if _, err := f.links.Upsert("discord-1", IdentityLink{GameID: "uuid-1", GameHandle: "Steve"}); err != nil {
		t.Fatal(err)
	}
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Username: "steve#0", Roles: []string{"role-alt"}}

	f.ent.ProcessTransaction(context.Background(), vipTransaction())

	commands := f.console.allCommands()
	if len(commands) != 2 {
		t.Fatalf("console received %d commands, want kit command plus announcement", len(commands))
	}
	if commands[0] != "give Steve vip_kit" {
		t.Errorf("commands[0] = %q, want templated kit command", commands[0])
	}
	if !strings.Contains(commands[1], "[LittleRpg Store]") || !strings.Contains(commands[1], "VIP Rank") {
		t.Errorf("commands[1] = %q, want purchase announcement", commands[1])
	}

	audit := f.chat.messages[f.cfg.Channels.StoreLog]
	if len(audit) != 1 || !strings.Contains(audit[0], "``Steve`` bought ``VIP Rank``") || !strings.Contains(audit[0], "$9.99 USD") {
		t.Errorf("store log = %q, want audit line", audit)
	}

	if got := f.chat.added["discord-1"]; len(got) != 1 || len(got[0]) != 1 || got[0][0] != "role-vip" {
		t.Fatalf("added = %v, want one batched grant of role-vip", got)
	}

	stored := f.grants.Get("discord-1")
	if len(stored) != 1 {
		t.Fatalf("stored grants = %+v, want 1", stored)
	}
	wantExpiry := f.now.Add(30 * 24 * time.Hour)
	if stored[0].RoleID != "role-vip" || !stored[0].Expiry.Equal(wantExpiry) {
		t.Errorf("grant = %+v, want role-vip expiring %v", stored[0], wantExpiry)
	}

	notices := f.chat.messages[f.cfg.Channels.Operator]
	if len(notices) != 1 || !strings.Contains(notices[0], "temporary role") {
		t.Errorf("operator notices = %q, want temporary-role audit notice", notices)
	}
}

func TestProcessTransactionPermanentRole(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if _, err := f.links.Upsert("discord-1", IdentityLink{GameID: "uuid-1", GameHandle: "Steve"}); err != nil {
		t.Fatal(err)
	}
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Username: "steve#0"}

	tx := vipTransaction()
	tx.Item.DiscordRoles = []RoleEntry{{Name: "VIP"}}
	f.ent.ProcessTransaction(context.Background(), tx)

	if got := f.chat.added["discord-1"]; len(got) != 1 || got[0][0] != "role-vip" {
		t.Fatalf("added = %v, want role-vip grant", got)
	}
	if stored := f.grants.Get("discord-1"); len(stored) != 0 {
		t.Errorf("stored grants = %+v, want none for a permanent role", stored)
	}
}

func TestProcessTransactionRoleRemoval(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if _, err := f.links.Upsert("discord-1", IdentityLink{GameID: "uuid-1", GameHandle: "Steve"}); err != nil {
		t.Fatal(err)
	}
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-vip"}}

	remove := false
	tx := vipTransaction()
	tx.Item.Commands = nil
	tx.Item.DiscordRoles = []RoleEntry{{Name: "VIP", Add: &remove}}
	f.ent.ProcessTransaction(context.Background(), tx)

	if got := f.chat.removed["discord-1"]; len(got) != 1 || got[0][0] != "role-vip" {
		t.Fatalf("removed = %v, want batched role-vip removal", got)
	}
	if got := f.chat.added["discord-1"]; len(got) != 0 {
		t.Errorf("added = %v, want nothing", got)
	}
}

func TestProcessTransactionUnlinkedPurchaser(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)

	f.ent.ProcessTransaction(context.Background(), vipTransaction())

	notices := f.chat.messages[f.cfg.Channels.Operator]
	if len(notices) != 1 || !strings.Contains(notices[0], "Could not find Steve's discord") {
		t.Errorf("operator notices = %q, want unlinked-purchaser notice", notices)
	}
	if len(f.chat.added) != 0 {
		t.Errorf("added = %v, want no role mutations", f.chat.added)
	}
}

func TestProcessTransactionDepartedPurchaser(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if _, err := f.links.Upsert("discord-1", IdentityLink{GameID: "uuid-1", GameHandle: "Steve"}); err != nil {
		t.Fatal(err)
	}

	f.ent.ProcessTransaction(context.Background(), vipTransaction())

	notices := f.chat.messages[f.cfg.Channels.Operator]
	if len(notices) != 1 || !strings.Contains(notices[0], "isn't in the discord anymore") {
		t.Errorf("operator notices = %q, want departed-purchaser notice", notices)
	}
}

func TestProcessTransactionCommandFailureStillGrantsRoles(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if _, err := f.links.Upsert("discord-1", IdentityLink{GameID: "uuid-1", GameHandle: "Steve"}); err != nil {
		t.Fatal(err)
	}
	f.chat.members["discord-1"] = &Member{ID: "discord-1"}
	f.console.err = errMemberNotFound

	f.ent.ProcessTransaction(context.Background(), vipTransaction())

	if got := f.chat.added["discord-1"]; len(got) != 1 {
		t.Errorf("added = %v, want role grant despite command failure", got)
	}
}

func TestReconcileTickRemovesExpiredGrant(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-alt", "role-vip"}}
	if err := f.grants.Append("discord-1", []TemporaryGrant{grantAt("role-vip", f.now.Add(-time.Minute))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()

	if got := f.chat.removed["discord-1"]; len(got) != 1 || got[0][0] != "role-vip" {
		t.Fatalf("removed = %v, want one role-vip revoke", got)
	}
	notices := f.chat.messages[f.cfg.Channels.Operator]
	if len(notices) != 1 || !strings.Contains(notices[0], "Removed temporary role") {
		t.Errorf("operator notices = %q, want removal notice", notices)
	}

	// Durable state reflects the removal after the pass.
	reloaded := NewGrantStore(filepath.Join(f.cfg.DataDir, "grants.json"), testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if ids := reloaded.ChatIDs(); len(ids) != 0 {
		t.Errorf("persisted grants for %v, want none", ids)
	}
}

func TestReconcileTickSecondPassIsNoop(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-alt", "role-vip"}}
	if err := f.grants.Append("discord-1", []TemporaryGrant{grantAt("role-vip", f.now.Add(-time.Minute))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()
	f.ent.ReconcileTick()

	if got := f.chat.removed["discord-1"]; len(got) != 1 {
		t.Errorf("removed = %v, want exactly one revoke across two ticks", got)
	}
}

func TestReconcileTickKeepsActiveGrants(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-alt", "role-vip"}}
	if err := f.grants.Append("discord-1", []TemporaryGrant{grantAt("role-vip", f.now.Add(time.Hour))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()

	if got := f.chat.removed["discord-1"]; len(got) != 0 {
		t.Errorf("removed = %v, want no revoke for an active grant", got)
	}
	if got := f.grants.Get("discord-1"); len(got) != 1 {
		t.Errorf("grants = %+v, want active grant retained", got)
	}
}

func TestReconcileTickRevokeFailureNotifiesAndContinues(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-alt", "role-vip"}}
	f.chat.removeErr = errMemberNotFound
	if err := f.grants.Append("discord-1", []TemporaryGrant{grantAt("role-vip", f.now.Add(-time.Minute))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()

	notices := f.chat.messages[f.cfg.Channels.Operator]
	if len(notices) != 1 || !strings.Contains(notices[0], "Could not remove temporary role") {
		t.Errorf("operator notices = %q, want revoke failure notice", notices)
	}
}

func TestReconcileTickSkipsMissingMembers(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	if err := f.grants.Append("discord-gone", []TemporaryGrant{grantAt("role-vip", f.now.Add(-time.Minute))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()

	if len(f.chat.removed) != 0 {
		t.Errorf("removed = %v, want nothing for a departed member", f.chat.removed)
	}
	// The grant survives for when the member returns.
	if got := f.grants.Get("discord-gone"); len(got) != 1 {
		t.Errorf("grants = %+v, want grant retained", got)
	}
}

func TestReconcileTickRestoresMinimumRole(t *testing.T) {
	t.Parallel()
	f := newEntitlementsFixture(t)
	// Member whose only roles were purchased; after expiry they hold neither
	// the base nor the alternate role.
	f.chat.members["discord-1"] = &Member{ID: "discord-1", Roles: []string{"role-vip"}}
	if err := f.grants.Append("discord-1", []TemporaryGrant{grantAt("role-vip", f.now.Add(-time.Minute))}); err != nil {
		t.Fatal(err)
	}

	f.ent.ReconcileTick()

	if got := f.chat.added["discord-1"]; len(got) != 1 || got[0][0] != "role-base" {
		t.Errorf("added = %v, want base role restored", got)
	}
	// The restoration is routine; only the removal itself is announced.
	for _, notice := range f.chat.messages[f.cfg.Channels.Operator] {
		if strings.Contains(notice, "missing the base role") {
			t.Errorf("unexpected warning notice %q during reconcile", notice)
		}
	}
}

func TestRevenueLedgerAccumulates(t *testing.T) {
	t.Parallel()
	ledger := NewRevenueLedger(filepath.Join(t.TempDir(), "monthly_progress"))
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)

	if err := ledger.Add(march, 9.25); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Add(march, 5.75); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Add(april, 1.00); err != nil {
		t.Fatal(err)
	}

	got, err := ledger.Total(march)
	if err != nil {
		t.Fatal(err)
	}
	if got != 15.00 {
		t.Errorf("Total(march) = %v, want 15.00", got)
	}
	got, err = ledger.Total(april)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1.00 {
		t.Errorf("Total(april) = %v, want 1.00", got)
	}
}
