// Copyright 2025-2026 LittleRpg Community

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ProfileData holds the fields the bridge uses from a game profile file.
type ProfileData struct {
	Nickname string `yaml:"nickname"`
}

// ProfileResult is the tri-state outcome of a profile lookup: Found false
// means the profile does not exist, which is a normal branch, not an error.
// Transport failures are returned as an error alongside a zero result.
type ProfileResult struct {
	Found bool
	Data  ProfileData
}

// profileSource fetches extended profile data for a game account.
type profileSource interface {
	Fetch(ctx context.Context, gameID string) (ProfileResult, error)
}

// ftpProfileSource retrieves per-user profile files from the game server's
// FTP share. Each lookup is a fresh short-lived session.
type ftpProfileSource struct {
	addr     string
	username string
	password string
	dir      string
	timeout  time.Duration
	log      zerolog.Logger
}

func newFTPProfileSource(addr, username, password, dir string, timeout time.Duration, log zerolog.Logger) *ftpProfileSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ftpProfileSource{
		addr:     addr,
		username: username,
		password: password,
		dir:      dir,
		timeout:  timeout,
		log:      log.With().Str("component", "profiles").Logger(),
	}
}

// Fetch retrieves <dir>/<gameID>.yml. A file-unavailable reply from the
// server means the profile does not exist and is reported as not found, not
// as an error.
func (f *ftpProfileSource) Fetch(ctx context.Context, gameID string) (ProfileResult, error) {
	conn, err := ftp.Dial(f.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(f.timeout))
	if err != nil {
		return ProfileResult{}, fmt.Errorf("profile fetch connect: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(f.username, f.password); err != nil {
		return ProfileResult{}, fmt.Errorf("profile fetch login: %w", err)
	}

	resp, err := conn.Retr(path.Join(f.dir, gameID+".yml"))
	if err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable {
			return ProfileResult{Found: false}, nil
		}
		return ProfileResult{}, fmt.Errorf("profile fetch retrieve: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return ProfileResult{}, fmt.Errorf("profile fetch read: %w", err)
	}

	var data ProfileData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return ProfileResult{}, fmt.Errorf("profile parse %s: %w", gameID, err)
	}
	return ProfileResult{Found: true, Data: data}, nil
}
