// Copyright 2025-2026 LittleRpg Community
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command mcbridge runs the Discord<->Minecraft bridge and entitlement
// engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/littlerpg/mcbridge/pkg/bridge"
)

// Filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	var (
		configPath    = flag.String("config", "config.yaml", "path to the config file")
		exampleConfig = flag.Bool("example-config", false, "print the example config and exit")
		version       = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *exampleConfig {
		fmt.Print(bridge.ExampleConfig)
		return
	}
	if *version {
		fmt.Printf("mcbridge %s (%s, built %s)\n", Tag, Commit, BuildTime)
		return
	}

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.StampMilli,
	}).With().Timestamp().Logger()

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	b, err := bridge.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bridge")
	}
	if err := b.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bridge")
	}
	log.Info().Str("version", Tag).Str("commit", Commit).Msg("mcbridge is running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	b.Stop()
}
