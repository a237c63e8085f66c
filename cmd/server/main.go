package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"blog/internal/auth"
	"blog/internal/blog"
	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/handlers"
	"blog/internal/policy"
	"blog/internal/store"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.AvatarDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("create dir", "dir", dir, "err", err)
			os.Exit(1)
		}
	}

	dbc, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("open db", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}
	defer dbc.Close()

	if err := db.Migrate(dbc); err != nil {
		log.Error("migrate db", "err", err)
		os.Exit(1)
	}

	adminHash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Error("hash admin password", "err", err)
		os.Exit(1)
	}
	if err := db.SeedAdmin(dbc, cfg.AdminUsername, adminHash); err != nil {
		log.Error("seed admin", "err", err)
		os.Exit(1)
	}
	if err := db.SeedSamplePost(dbc, cfg.AdminUsername); err != nil {
		log.Error("seed sample post", "err", err)
		os.Exit(1)
	}

	st := store.New(dbc)
	pol := policy.New(cfg.AdminUsername)
	svc := blog.New(st, pol)
	sessions := auth.NewManager(dbc, cfg.SessionTTL)

	h := handlers.New(svc, sessions, log, cfg.AvatarDir)

	mux := http.NewServeMux()
	h.Routes(mux)

	// static files and uploaded avatars
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("./web/static"))))
	mux.Handle("/avatars/", http.StripPrefix("/avatars/", http.FileServer(http.Dir(cfg.AvatarDir))))

	handler := handlers.WithLogging(handlers.WithRecover(mux, log), log)

	log.Info("listening", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
