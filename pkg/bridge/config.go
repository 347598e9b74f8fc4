// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Duration is a yaml-friendly wrapper around time.Duration that accepts
// values like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full bridge configuration. Every recognized option is
// enumerated here; unknown keys in the file are rejected at load time and
// missing required keys fail fast with a named error.
type Config struct {
	GuildID     string `yaml:"guild_id"`
	DataDir     string `yaml:"data_dir"`
	MetricsAddr string `yaml:"metrics_addr"`

	Channels ChannelsConfig `yaml:"channels"`
	Roles    RolesConfig    `yaml:"roles"`
	Relay    RelayConfig    `yaml:"relay"`
	Censor   CensorConfig   `yaml:"censor"`
	Console  ConsoleConfig  `yaml:"console"`
	Profiles ProfilesConfig `yaml:"profiles"`
	Tasks    TasksConfig    `yaml:"tasks"`

	Secrets Secrets `yaml:"-"`

	claimRe    *regexp.Regexp
	gameChatRe *regexp.Regexp
}

// ChannelsConfig names the chat channels the engine posts to.
type ChannelsConfig struct {
	// Relay carries the bidirectional chat<->game traffic.
	Relay string `yaml:"relay"`
	// StoreBackend receives raw transaction JSON from the storefront.
	StoreBackend string `yaml:"store_backend"`
	// StoreLog receives human-readable purchase audit lines.
	StoreLog string `yaml:"store_log"`
	// Operator receives failure notices and entitlement audit warnings.
	Operator string `yaml:"operator"`
}

// RolesConfig names the chat roles the engine manages.
type RolesConfig struct {
	// Base is the minimum role every non-bot member must hold.
	Base string `yaml:"base"`
	// Alternate supersedes Base; holding both is corrected by removing Base.
	Alternate string `yaml:"alternate"`
	// Purchasable maps storefront role names to chat role ids.
	Purchasable map[string]string `yaml:"purchasable"`
}

// RelayConfig controls message relaying and account linking.
type RelayConfig struct {
	// ClaimPattern parses profile-link DMs. Must contain named groups
	// "name" and "uuid".
	ClaimPattern string `yaml:"claim_pattern"`
	// GameChatPattern parses game chat lines posted by the game-side
	// bridge account. Must contain named groups "id" and "text".
	GameChatPattern string `yaml:"game_chat_pattern"`
	// GameBotID is the chat account the game-side bridge posts as.
	GameBotID string `yaml:"game_bot_id"`
	// ClaimBotID is the chat account the game-side link plugin sends claim
	// DMs as. Claims from any other author are ignored.
	ClaimBotID string `yaml:"claim_bot_id"`
	// VerifyRewardCommand is run once when an account links for the first
	// time; "{username}" is substituted with the game handle.
	VerifyRewardCommand string `yaml:"verify_reward_command"`
	// NicknameSyncSkip lists chat account ids exempt from nickname sync.
	NicknameSyncSkip []string `yaml:"nickname_sync_skip"`
}

// CensorConfig holds the content-filter block lists.
type CensorConfig struct {
	Prefixes []string          `yaml:"prefixes"`
	Words    []string          `yaml:"words"`
	Bypass   map[string]string `yaml:"bypass"`
}

// ConsoleConfig points at the game server's remote console.
type ConsoleConfig struct {
	Addr    string   `yaml:"addr"`
	Timeout Duration `yaml:"timeout"`
}

// ProfilesConfig points at the game server's FTP share.
type ProfilesConfig struct {
	Addr         string   `yaml:"addr"`
	UserdataPath string   `yaml:"userdata_path"`
	Timeout      Duration `yaml:"timeout"`
}

// TasksConfig sets the cadence of the periodic tasks.
type TasksConfig struct {
	Reconcile    Duration `yaml:"reconcile"`
	MinimumRole  Duration `yaml:"minimum_role"`
	NicknameSync Duration `yaml:"nickname_sync"`
}

// Secrets are read from the environment, never from the config file.
type Secrets struct {
	DiscordToken    string `env:"DISCORD_BOT_TOKEN,notEmpty"`
	ConsolePassword string `env:"MINECRAFT_RCON_PASSWORD,notEmpty"`
	FTPUsername     string `env:"MINECRAFT_FTP_USERNAME,notEmpty"`
	FTPPassword     string `env:"MINECRAFT_FTP_PASSWORD,notEmpty"`
}

// LoadConfig reads and validates the YAML config at path and the secrets
// from the environment.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, fmt.Errorf("config secrets: %w", err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates config YAML. Secrets are not touched;
// LoadConfig layers them on top.
func ParseConfig(raw []byte) (*Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		DataDir:     "data",
		MetricsAddr: ":29321",
		Console:     ConsoleConfig{Timeout: Duration(5 * time.Second)},
		Profiles:    ProfilesConfig{Timeout: Duration(10 * time.Second)},
		Tasks: TasksConfig{
			Reconcile:    Duration(60 * time.Second),
			MinimumRole:  Duration(30 * time.Second),
			NicknameSync: Duration(5 * time.Minute),
		},
	}
}

// Validate checks that every required option is present, naming the first
// missing one.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"guild_id", c.GuildID},
		{"channels.relay", c.Channels.Relay},
		{"channels.store_backend", c.Channels.StoreBackend},
		{"channels.store_log", c.Channels.StoreLog},
		{"channels.operator", c.Channels.Operator},
		{"roles.base", c.Roles.Base},
		{"roles.alternate", c.Roles.Alternate},
		{"relay.claim_pattern", c.Relay.ClaimPattern},
		{"relay.game_chat_pattern", c.Relay.GameChatPattern},
		{"relay.game_bot_id", c.Relay.GameBotID},
		{"relay.claim_bot_id", c.Relay.ClaimBotID},
		{"console.addr", c.Console.Addr},
		{"profiles.addr", c.Profiles.Addr},
		{"profiles.userdata_path", c.Profiles.UserdataPath},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: %s is required", r.key)
		}
	}
	return nil
}

// PostProcess compiles the message patterns and checks their capture groups.
func (c *Config) PostProcess() error {
	var err error
	c.claimRe, err = regexp.Compile(c.Relay.ClaimPattern)
	if err != nil {
		return fmt.Errorf("config: relay.claim_pattern: %w", err)
	}
	if err := requireGroups(c.claimRe, "name", "uuid"); err != nil {
		return fmt.Errorf("config: relay.claim_pattern: %w", err)
	}
	c.gameChatRe, err = regexp.Compile(c.Relay.GameChatPattern)
	if err != nil {
		return fmt.Errorf("config: relay.game_chat_pattern: %w", err)
	}
	if err := requireGroups(c.gameChatRe, "id", "text"); err != nil {
		return fmt.Errorf("config: relay.game_chat_pattern: %w", err)
	}
	return nil
}

func requireGroups(re *regexp.Regexp, groups ...string) error {
	have := make(map[string]bool)
	for _, name := range re.SubexpNames() {
		have[name] = true
	}
	for _, g := range groups {
		if !have[g] {
			return fmt.Errorf("missing named group %q", g)
		}
	}
	return nil
}

// matchGroups applies re to text and returns the named capture groups, or
// false when the text does not match.
func matchGroups(re *regexp.Regexp, text string) (map[string]string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(m) {
			groups[name] = m[i]
		}
	}
	return groups, true
}
