package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/user"

	"github.com/dmitrijs2005/lockbox/internal/buildinfo"
	"github.com/dmitrijs2005/lockbox/internal/cli"
	"github.com/dmitrijs2005/lockbox/internal/config"
	"github.com/dmitrijs2005/lockbox/internal/filex"
	"github.com/dmitrijs2005/lockbox/internal/gateway"
	"github.com/dmitrijs2005/lockbox/internal/handler"
	"github.com/dmitrijs2005/lockbox/internal/identity"
	"github.com/dmitrijs2005/lockbox/internal/logging"
	"github.com/dmitrijs2005/lockbox/internal/session"
	"github.com/dmitrijs2005/lockbox/internal/storage"
	"github.com/dmitrijs2005/lockbox/internal/vault"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// resolveUser reuses the persisted profile identity when the vault already
// exists, so reissued tokens keep carrying the same subject. A fresh vault
// gets an identity derived from the OS user.
func resolveUser(ctx context.Context, store storage.Store) identity.UserInfo {
	if profile, err := store.LoadProfile(ctx); err == nil && profile != nil {
		return identity.UserInfo{Email: profile.Email, ID: profile.UserID}
	}

	name := "lockbox"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return identity.UserInfo{
		Email: fmt.Sprintf("%s@%s", name, host),
		ID:    uuid.NewString(),
	}
}

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	path, err := filex.EnsureParentDir(cfg.StoragePath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	store, err := storage.Open(ctx, cfg.StorageBackend, path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	provider, err := identity.NewLocalProvider(resolveUser(ctx, store), cfg.TokenValidity)
	if err != nil {
		log.Fatalf("%v", err)
	}

	sessions := session.NewManager(provider, logger, cfg.SessionIdleTimeout)
	v := vault.New(store, sessions, provider, logger, cfg.CacheTTL)
	sessions.OnExpired(v.ClearCache)

	gate := gateway.New(v, logger, gateway.Options{
		Grace:       cfg.VerificationGrace,
		Penalty:     cfg.LockoutPenalty,
		RevealFor:   cfg.RevealAutoHide,
		MaxAttempts: cfg.MaxVerifyAttempts,
	}, v.ClearCache)

	h := handler.New(v, gate, sessions, logger)

	app := cli.NewApp(h, sessions)
	app.Run(ctx)
}
