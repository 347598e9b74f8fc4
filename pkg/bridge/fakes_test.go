// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// fakeChat records every chatService call so tests can assert on what the
// engine did without a live Discord session.
type fakeChat struct {
	mu       sync.Mutex
	messages map[string][]string
	embeds   map[string][]string
	dms      map[string][]string
	members  map[string]*Member
	added    map[string][][]string
	removed  map[string][][]string
	nicks    map[string]string

	sendErr   error
	addErr    error
	removeErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		messages: make(map[string][]string),
		embeds:   make(map[string][]string),
		dms:      make(map[string][]string),
		members:  make(map[string]*Member),
		added:    make(map[string][][]string),
		removed:  make(map[string][][]string),
		nicks:    make(map[string]string),
	}
}

func (f *fakeChat) SendMessage(channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages[channelID] = append(f.messages[channelID], content)
	return nil
}

func (f *fakeChat) SendEmbed(channelID, _, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds[channelID] = append(f.embeds[channelID], description)
	return nil
}

func (f *fakeChat) DirectMessage(userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeChat) Member(userID string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	member, ok := f.members[userID]
	if !ok {
		return nil, errMemberNotFound
	}
	return member, nil
}

func (f *fakeChat) Members() ([]*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Member, 0, len(f.members))
	for _, m := range f.members {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeChat) AddRoles(userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.added[userID] = append(f.added[userID], roleIDs)
	return nil
}

func (f *fakeChat) RemoveRoles(userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed[userID] = append(f.removed[userID], roleIDs)
	return nil
}

func (f *fakeChat) SetNickname(userID, nick string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nicks[userID] = nick
	return nil
}

type fakeChatError string

func (e fakeChatError) Error() string { return string(e) }

const errMemberNotFound = fakeChatError("member not found")

// fakeConsole records dispatched command batches.
type fakeConsole struct {
	mu      sync.Mutex
	batches [][]string
	err     error
	online  bool
}

func (f *fakeConsole) Run(_ context.Context, commands []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, commands)
	if f.err != nil {
		return nil, f.err
	}
	return make([]string, len(commands)), nil
}

func (f *fakeConsole) Probe(context.Context) bool { return f.online }

func (f *fakeConsole) allCommands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, batch := range f.batches {
		out = append(out, batch...)
	}
	return out
}

// fakeProfiles serves profiles from a map; absent ids are not found.
type fakeProfiles struct {
	profiles map[string]ProfileData
	err      error
}

func (f *fakeProfiles) Fetch(_ context.Context, gameID string) (ProfileResult, error) {
	if f.err != nil {
		return ProfileResult{}, f.err
	}
	data, ok := f.profiles[gameID]
	return ProfileResult{Found: ok, Data: data}, nil
}

func testConfig(t interface{ TempDir() string }) *Config {
	return &Config{
		GuildID: "guild",
		DataDir: t.TempDir(),
		Channels: ChannelsConfig{
			Relay:        "chan-relay",
			StoreBackend: "chan-store",
			StoreLog:     "chan-storelog",
			Operator:     "chan-operator",
		},
		Roles: RolesConfig{
			Base:      "role-base",
			Alternate: "role-alt",
			Purchasable: map[string]string{
				"VIP": "role-vip",
			},
		},
		Relay: RelayConfig{
			ClaimPattern:        `account (?P<name>\S+) \((?P<uuid>[0-9a-f-]+)\)`,
			GameChatPattern:     `^(?P<id>[0-9a-f-]+):(?P<text>.*)$`,
			GameBotID:           "game-bot",
			ClaimBotID:          "claim-bot",
			VerifyRewardCommand: "crate give {username}",
		},
		Console:  ConsoleConfig{Addr: "127.0.0.1:25575", Timeout: Duration(time.Second)},
		Profiles: ProfilesConfig{Addr: "127.0.0.1:21", UserdataPath: "/userdata", Timeout: Duration(time.Second)},
		Tasks: TasksConfig{
			Reconcile:    Duration(time.Minute),
			MinimumRole:  Duration(30 * time.Second),
			NicknameSync: Duration(5 * time.Minute),
		},
		claimRe:    regexp.MustCompile(`account (?P<name>\S+) \((?P<uuid>[0-9a-f-]+)\)`),
		gameChatRe: regexp.MustCompile(`^(?P<id>[0-9a-f-]+):(?P<text>.*)$`),
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
