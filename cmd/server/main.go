// Command server runs the whitelist registration service.
//
// Configuration is entirely environment-driven:
//
//	PORT                   listen port (default 8080)
//	DB_PATH                SQLite file (default data/registry.db)
//	JWT_SECRET             session signing secret, required
//	                       (generate with: openssl rand -hex 32)
//	DISCORD_CLIENT_ID      Discord application credentials
//	DISCORD_CLIENT_SECRET
//	DISCORD_CALLBACK_URL   must match the app's redirect URI
//	                       (default http://localhost:<port>/auth/callback)
//	DISCORD_GUILD_ID       the community server to require membership of
//	X_PROFILE_URL          the X profile visitors are asked to follow
//	STATIC_DIR             optional frontend bundle to serve at /
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/whitelist-registry/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/registry.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET not set — refusing to start without a session signing key")
		os.Exit(1)
	}

	callbackURL := os.Getenv("DISCORD_CALLBACK_URL")
	if callbackURL == "" {
		callbackURL = fmt.Sprintf("http://localhost:%d/auth/callback", port)
	}

	guildID := os.Getenv("DISCORD_GUILD_ID")
	if guildID == "" {
		logger.Warn("DISCORD_GUILD_ID not set — the Discord gate will never verify anyone")
	}

	xProfileURL := os.Getenv("X_PROFILE_URL")
	if xProfileURL == "" {
		xProfileURL = "https://x.com"
	}

	cfg := server.Config{
		Port:                port,
		DBPath:              dbPath,
		JWTSecret:           jwtSecret,
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordCallbackURL:  callbackURL,
		DiscordGuildID:      guildID,
		XProfileURL:         xProfileURL,
		StaticDir:           os.Getenv("STATIC_DIR"),
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
