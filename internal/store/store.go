// Package store is the SQLite persistence layer. Every comment mutation
// and its comment_count recount commit in one transaction, so the
// denormalized count can never drift from the live rows.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blog/internal/apperr"
	"blog/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for wiring (sessions share it).
func (s *Store) DB() *sql.DB { return s.db }

// --- users

func (s *Store) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username,password_hash,bio,avatar,theme_preference,blur_effect,created_at)
		 VALUES(?,?,?,COALESCE(NULLIF(?,''),'default.jpg'),COALESCE(NULLIF(?,''),'light'),?,?)`,
		u.Username, u.PasswordHash, u.Bio, u.Avatar, u.ThemePreference, u.BlurEffect, u.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,username,password_hash,bio,avatar,theme_preference,blur_effect,created_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,username,password_hash,bio,avatar,theme_preference,blur_effect,created_at
		 FROM users WHERE username = ?`, username))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Bio, &u.Avatar,
		&u.ThemePreference, &u.BlurEffect, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) UpdateUserSettings(ctx context.Context, id int64, username, bio, theme string, blur bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET username=?, bio=?, theme_preference=?, blur_effect=? WHERE id=?`,
		username, bio, theme, blur, id)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return requireRow(res)
}

func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

func (s *Store) UpdateUserAvatar(ctx context.Context, id int64, avatar string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET avatar=? WHERE id=?`, avatar, id)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return requireRow(res)
}

func (s *Store) UpdateUserThemePreference(ctx context.Context, id int64, theme string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET theme_preference=? WHERE id=?`, theme, id)
	if err != nil {
		return fmt.Errorf("update theme preference: %w", err)
	}
	return requireRow(res)
}

func (s *Store) UpdateUserBlurEffect(ctx context.Context, id int64, blur bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET blur_effect=? WHERE id=?`, blur, id)
	if err != nil {
		return fmt.Errorf("update blur effect: %w", err)
	}
	return requireRow(res)
}

func (s *Store) AllUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,username,password_hash,bio,avatar,theme_preference,blur_effect,created_at
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Bio, &u.Avatar,
			&u.ThemePreference, &u.BlurEffect, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- posts

func (s *Store) CreatePost(ctx context.Context, p *models.Post) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts(user_id,title,content,created_at) VALUES(?,?,?,?)`,
		p.UserID, p.Title, p.Content, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) PostByID(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := s.db.QueryRowContext(ctx,
		`SELECT p.id,p.user_id,p.title,p.content,p.created_at,p.comment_count,u.username
		 FROM posts p JOIN users u ON u.id=p.user_id WHERE p.id = ?`, id).
		Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt, &p.CommentCount, &p.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return &p, nil
}

func (s *Store) Posts(ctx context.Context) ([]models.Post, error) {
	return s.queryPosts(ctx,
		`SELECT p.id,p.user_id,p.title,p.content,p.created_at,p.comment_count,u.username
		 FROM posts p JOIN users u ON u.id=p.user_id ORDER BY p.created_at DESC, p.id DESC`)
}

func (s *Store) PostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	return s.queryPosts(ctx,
		`SELECT p.id,p.user_id,p.title,p.content,p.created_at,p.comment_count,u.username
		 FROM posts p JOIN users u ON u.id=p.user_id
		 WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
}

func (s *Store) queryPosts(ctx context.Context, q string, args ...any) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Content, &p.CreatedAt,
			&p.CommentCount, &p.Author); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, id int64, title, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET title=?, content=? WHERE id=?`, title, content, id)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return requireRow(res)
}

// DeletePost removes the post and all of its comments as one explicit
// multi-row deletion. The comments go first so the transaction never
// holds orphan rows, and no schema-level cascade is relied on.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE post_id=?`, id); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id=?`, id)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return requireRow(res)
	})
}

// --- comments

// CreateComment inserts the comment and recounts the parent post's
// comment_count in the same transaction.
func (s *Store) CreateComment(ctx context.Context, c *models.Comment) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO comments(post_id,user_id,content,created_at,pinned)
			 VALUES(?,?,?,?,?)`, c.PostID, c.UserID, c.Content, c.CreatedAt, c.Pinned)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return recount(ctx, tx, c.PostID)
	})
	return id, err
}

func (s *Store) CommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	var c models.Comment
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id,c.post_id,c.user_id,c.content,c.created_at,c.pinned,u.username
		 FROM comments c JOIN users u ON u.id=c.user_id WHERE c.id = ?`, id).
		Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt, &c.Pinned, &c.Author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}

// DeleteComment removes the comment and recounts its post in the same
// transaction.
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var postID int64
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM comments WHERE id=?`, id).Scan(&postID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup comment: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id); err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		return recount(ctx, tx, postID)
	})
}

func (s *Store) SetCommentPinned(ctx context.Context, id int64, pinned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET pinned=? WHERE id=?`, pinned, id)
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	return requireRow(res)
}

// CommentsByPost returns the display ordering: pinned first, then newest
// first. The id tiebreak keeps sub-second inserts in a stable order.
func (s *Store) CommentsByPost(ctx context.Context, postID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id,c.post_id,c.user_id,c.content,c.created_at,c.pinned,u.username
		 FROM comments c JOIN users u ON u.id=c.user_id
		 WHERE c.post_id = ?
		 ORDER BY c.pinned DESC, c.created_at DESC, c.id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt,
			&c.Pinned, &c.Author); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CommentCount is the live aggregate, used by tests to cross-check the
// denormalized posts.comment_count.
func (s *Store) CommentCount(ctx context.Context, postID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id=?`, postID).Scan(&n)
	return n, err
}

// --- themes

func (s *Store) Themes(ctx context.Context) ([]models.Theme, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,is_default,primary_color,secondary_color,accent_color,
		        background_color,text_color,text_secondary
		 FROM themes ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		var t models.Theme
		if err := rows.Scan(&t.ID, &t.Name, &t.IsDefault, &t.PrimaryColor, &t.SecondaryColor,
			&t.AccentColor, &t.BackgroundColor, &t.TextColor, &t.TextSecondary); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

// --- helpers

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// recount refreshes a post's denormalized comment_count from the live
// rows. Always a full aggregate, never an increment, so any prior drift
// heals on the next mutation.
func recount(ctx context.Context, tx *sql.Tx, postID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE posts SET comment_count = (SELECT COUNT(*) FROM comments WHERE post_id=?)
		 WHERE id=?`, postID, postID)
	if err != nil {
		return fmt.Errorf("recount comments: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
