package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbc, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })
	require.NoError(t, db.Migrate(dbc))
	return New(dbc)
}

func mustUser(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), &models.User{
		Username: name, PasswordHash: "x", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

func mustPost(t *testing.T, s *Store, userID int64, title string) int64 {
	t.Helper()
	id, err := s.CreatePost(context.Background(), &models.Post{
		UserID: userID, Title: title, Content: "body", CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

func mustComment(t *testing.T, s *Store, postID, userID int64, content string) int64 {
	t.Helper()
	id, err := s.CreateComment(context.Background(), &models.Comment{
		PostID: postID, UserID: userID, Content: content, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

// requireCountConsistent checks the denormalized counter against the
// live aggregate.
func requireCountConsistent(t *testing.T, s *Store, postID int64) {
	t.Helper()
	ctx := context.Background()
	p, err := s.PostByID(ctx, postID)
	require.NoError(t, err)
	live, err := s.CommentCount(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, live, p.CommentCount, "comment_count drifted from live rows")
}

func TestCommentCountRecountsOnInsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u, "hello")

	requireCountConsistent(t, s, p)

	c1 := mustComment(t, s, p, u, "first")
	requireCountConsistent(t, s, p)
	mustComment(t, s, p, u, "second")
	requireCountConsistent(t, s, p)

	post, err := s.PostByID(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, post.CommentCount)

	require.NoError(t, s.DeleteComment(ctx, c1))
	requireCountConsistent(t, s, p)

	post, err = s.PostByID(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 1, post.CommentCount)
}

func TestRecountHealsDrift(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u, "hello")
	mustComment(t, s, p, u, "one")

	// Corrupt the counter directly; the next mutation must heal it.
	_, err := s.db.ExecContext(ctx, `UPDATE posts SET comment_count = 99 WHERE id=?`, p)
	require.NoError(t, err)

	mustComment(t, s, p, u, "two")
	post, err := s.PostByID(ctx, p)
	require.NoError(t, err)
	require.Equal(t, 2, post.CommentCount)
}

func TestDeletePostCascadesComments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u, "hello")
	mustComment(t, s, p, u, "one")
	mustComment(t, s, p, u, "two")

	require.NoError(t, s.DeletePost(ctx, p))

	_, err := s.PostByID(ctx, p)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// No orphan comments may remain for the deleted post id.
	n, err := s.CommentCount(ctx, p)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCommentOrderingPinnedFirstThenNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := mustUser(t, s, "alice")
	p := mustPost(t, s, u, "hello")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]int64, 3)
	for i := range ids {
		id, err := s.CreateComment(ctx, &models.Comment{
			PostID: p, UserID: u, Content: "c", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		ids[i] = id
	}

	// Pin the oldest; it must come first, then the rest newest-first.
	require.NoError(t, s.SetCommentPinned(ctx, ids[0], true))

	comments, err := s.CommentsByPost(ctx, p)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	require.Equal(t, ids[0], comments[0].ID)
	require.True(t, comments[0].Pinned)
	require.Equal(t, ids[2], comments[1].ID)
	require.Equal(t, ids[1], comments[2].ID)
}

func TestDeleteAbsentCommentIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteComment(context.Background(), 12345)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPinAbsentCommentIsNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.SetCommentPinned(context.Background(), 12345, true)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUserByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := mustUser(t, s, "alice")
	u, err := s.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "light", u.ThemePreference)
	require.Equal(t, "default.jpg", u.Avatar)

	_, err = s.UserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestThemesSeeded(t *testing.T) {
	s := newTestStore(t)

	themes, err := s.Themes(context.Background())
	require.NoError(t, err)
	require.Len(t, themes, 2)
	require.Equal(t, "Light", themes[0].Name)
	require.True(t, themes[0].IsDefault)
}
