package db

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, err
	}
	return db, db.Ping()
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			bio TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT 'default.jpg',
			theme_preference TEXT NOT NULL DEFAULT 'light'
				CHECK(theme_preference IN ('light','dark','system')),
			blur_effect INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions(
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS posts(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			comment_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS comments(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id INTEGER NOT NULL REFERENCES posts(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			pinned INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS themes(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			is_default INTEGER NOT NULL DEFAULT 0,
			primary_color TEXT NOT NULL,
			secondary_color TEXT NOT NULL,
			accent_color TEXT NOT NULL,
			background_color TEXT NOT NULL,
			text_color TEXT NOT NULL,
			text_secondary TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);`,
		// Built-in themes
		`INSERT OR IGNORE INTO themes
			(name,is_default,primary_color,secondary_color,accent_color,background_color,text_color,text_secondary) VALUES
			('Light',1,'#4a90d9','#6ba3e0','#f5a623','#ffffff','#1a1a1a','#666666'),
			('Dark',0,'#3a6ea8','#2c5282','#f5a623','#121212','#eeeeee','#999999');`,
	}
	ctx := context.Background()
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates the admin account on first run. The password hash is
// computed by the caller; nothing happens if the username already exists.
func SeedAdmin(db *sql.DB, username, passwordHash string) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO users(username,password_hash,bio,created_at)
		VALUES(?,?,?,?)`, username, passwordHash, "Site administrator", time.Now())
	return err
}

// SeedSamplePost publishes a welcome post under the admin account the
// first time the blog starts with an empty posts table.
func SeedSamplePost(db *sql.DB, adminUsername string) error {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.Exec(`INSERT INTO posts(user_id,title,content,created_at)
		SELECT id, ?, ?, ? FROM users WHERE username = ?`,
		"Welcome",
		"Welcome to the blog. Register an account, write a post, and join the discussion in the community section.",
		time.Now(), adminUsername)
	return err
}
