// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bridge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/littlerpg/mcbridge/pkg/bridge/mcfmt"
)

// consoleRunner is the command-channel surface the engine consumes. The
// production implementation is *console.Client; tests inject a fake.
type consoleRunner interface {
	Run(ctx context.Context, commands []string) ([]string, error)
	Probe(ctx context.Context) bool
}

// Relay forwards messages between the chat relay channel and the game
// server, gating both directions through the content filter. Failed
// dispatches are reported once and never retried; the next message attempt
// is independent.
type Relay struct {
	chat     chatService
	console  consoleRunner
	links    *LinkStore
	censor   *Censor
	profiles profileSource
	cfg      *Config
	log      zerolog.Logger
}

// NewRelay wires a relay from its collaborators.
func NewRelay(cfg *Config, chat chatService, console consoleRunner, links *LinkStore, censor *Censor, profiles profileSource, log zerolog.Logger) *Relay {
	return &Relay{
		chat:     chat,
		console:  console,
		links:    links,
		censor:   censor,
		profiles: profiles,
		cfg:      cfg,
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// broadcast dispatches one in-game broadcast built from segments.
func (r *Relay) broadcast(ctx context.Context, segments []mcfmt.Segment) error {
	payload, err := mcfmt.Tellraw(segments)
	if err != nil {
		return err
	}
	if _, err := r.console.Run(ctx, []string{"tellraw @a " + payload}); err != nil {
		consoleFailures.Inc()
		return err
	}
	return nil
}

// notifyOperator posts a one-line failure notice to the operator channel.
func (r *Relay) notifyOperator(format string, args ...any) {
	if err := r.chat.SendMessage(r.cfg.Channels.Operator, fmt.Sprintf(format, args...)); err != nil {
		r.log.Error().Err(err).Msg("Failed to notify operator channel")
	}
}

// tagSegments builds the broadcast component list: a "[Discord]" tag, the
// sender's (possibly styled) name, a separator and the message text.
func tagSegments(name []mcfmt.Segment, content string) []mcfmt.Segment {
	segments := []mcfmt.Segment{
		{Text: "[", Color: "white"},
		{Text: "Discord", Color: "blue"},
		{Text: "] ", Color: "white"},
	}
	segments = append(segments, name...)
	segments = append(segments,
		mcfmt.Segment{Text: " >> ", Color: "gray", Bold: true},
		mcfmt.Segment{Text: content, Color: "white"},
	)
	return segments
}
