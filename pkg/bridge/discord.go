// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Member is the engine's view of a chat guild member.
type Member struct {
	ID          string
	Username    string
	DisplayName string
	Roles       []string
	Bot         bool
}

// HasRole reports whether the member currently holds roleID.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// chatService is the chat-platform surface the engine consumes. The
// production implementation wraps a Discord session; tests inject a fake.
type chatService interface {
	SendMessage(channelID, content string) error
	SendEmbed(channelID, title, description string) error
	DirectMessage(userID, content string) error
	Member(userID string) (*Member, error)
	Members() ([]*Member, error)
	AddRoles(userID string, roleIDs []string) error
	RemoveRoles(userID string, roleIDs []string) error
	SetNickname(userID, nick string) error
}

// discordService adapts a discordgo session to the chatService surface for
// one guild.
type discordService struct {
	session *discordgo.Session
	guildID string
}

func newDiscordService(session *discordgo.Session, guildID string) *discordService {
	return &discordService{session: session, guildID: guildID}
}

func (d *discordService) SendMessage(channelID, content string) error {
	_, err := d.session.ChannelMessageSend(channelID, content)
	return err
}

func (d *discordService) SendEmbed(channelID, title, description string) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
	})
	return err
}

func (d *discordService) DirectMessage(userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("create DM channel: %w", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content)
	return err
}

func (d *discordService) Member(userID string) (*Member, error) {
	member, err := d.session.GuildMember(d.guildID, userID)
	if err != nil {
		return nil, err
	}
	return memberFromDiscord(member), nil
}

// Members fetches the full guild member list, following pagination.
func (d *discordService) Members() ([]*Member, error) {
	var out []*Member
	after := ""
	for {
		page, err := d.session.GuildMembers(d.guildID, after, 1000)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, m := range page {
			out = append(out, memberFromDiscord(m))
		}
		after = page[len(page)-1].User.ID
	}
}

// AddRoles applies one batched grant. The REST surface is per-role, so the
// batch is expanded here; a mid-batch failure stops the remainder.
func (d *discordService) AddRoles(userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		if err := d.session.GuildMemberRoleAdd(d.guildID, userID, roleID); err != nil {
			return fmt.Errorf("add role %s: %w", roleID, err)
		}
	}
	return nil
}

func (d *discordService) RemoveRoles(userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		if err := d.session.GuildMemberRoleRemove(d.guildID, userID, roleID); err != nil {
			return fmt.Errorf("remove role %s: %w", roleID, err)
		}
	}
	return nil
}

func (d *discordService) SetNickname(userID, nick string) error {
	return d.session.GuildMemberNickname(d.guildID, userID, nick)
}

func memberFromDiscord(m *discordgo.Member) *Member {
	display := m.Nick
	if display == "" && m.User != nil {
		display = m.User.Username
	}
	out := &Member{
		ID:          "",
		DisplayName: display,
		Roles:       m.Roles,
	}
	if m.User != nil {
		out.ID = m.User.ID
		out.Username = m.User.Username
		out.Bot = m.User.Bot
	}
	return out
}
