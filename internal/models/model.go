package models

import "time"

type User struct {
	ID              int64
	Username        string
	PasswordHash    string
	Bio             string
	Avatar          string
	ThemePreference string
	BlurEffect      bool
	CreatedAt       time.Time
}

type Post struct {
	ID           int64
	UserID       int64
	Title        string
	Content      string
	CreatedAt    time.Time
	CommentCount int
	Author       string
}

type Comment struct {
	ID        int64
	PostID    int64
	UserID    int64
	Content   string
	CreatedAt time.Time
	Pinned    bool
	Author    string
}

// Theme is read-only reference data seeded at startup.
type Theme struct {
	ID              int64
	Name            string
	IsDefault       bool
	PrimaryColor    string
	SecondaryColor  string
	AccentColor     string
	BackgroundColor string
	TextColor       string
	TextSecondary   string
}
