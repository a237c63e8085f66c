package blog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"blog/internal/apperr"
	"blog/internal/db"
	"blog/internal/policy"
	"blog/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dbc, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })
	require.NoError(t, db.Migrate(dbc))
	return New(store.New(dbc), policy.New("admin"))
}

func register(t *testing.T, s *Service, username string) policy.Actor {
	t.Helper()
	u, err := s.Register(context.Background(), username, "password123")
	require.NoError(t, err)
	return policy.Actor{ID: u.ID, Username: u.Username}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	register(t, s, "alice")

	u, err := s.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)

	_, err = s.Authenticate(ctx, "alice", "wrongpassword")
	require.ErrorIs(t, err, apperr.ErrAuthentication)
	_, err = s.Authenticate(ctx, "nobody", "password123")
	require.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "ab", "password123")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.Register(ctx, "alice", "short")
	require.ErrorIs(t, err, apperr.ErrValidation)

	register(t, s, "alice")
	_, err = s.Register(ctx, "alice", "password123")
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestOnlyAuthorMayMutatePost(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	bob := register(t, s, "bobby")
	admin := register(t, s, "admin")

	p, err := s.CreatePost(ctx, alice, "Title", "content")
	require.NoError(t, err)

	require.ErrorIs(t, s.UpdatePost(ctx, bob, p.ID, "x", "y"), apperr.ErrForbidden)
	require.ErrorIs(t, s.DeletePost(ctx, bob, p.ID), apperr.ErrForbidden)
	// The admin moderates comments, not posts.
	require.ErrorIs(t, s.DeletePost(ctx, admin, p.ID), apperr.ErrForbidden)

	require.NoError(t, s.UpdatePost(ctx, alice, p.ID, "New Title", "new content"))
	got, err := s.Post(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "New Title", got.Title)
	require.Equal(t, alice.ID, got.UserID, "author never changes")

	require.NoError(t, s.DeletePost(ctx, alice, p.ID))
	_, err = s.Post(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommentDeletePermissions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	bob := register(t, s, "bobby")
	carol := register(t, s, "carol")
	admin := register(t, s, "admin")

	p, err := s.CreatePost(ctx, alice, "Title", "content")
	require.NoError(t, err)

	c, err := s.CreateComment(ctx, bob, p.ID, "bob says hi")
	require.NoError(t, err)

	// Neither the post author nor an unrelated user may delete someone
	// else's comment.
	require.ErrorIs(t, s.DeleteComment(ctx, carol, c.ID), apperr.ErrForbidden)
	require.ErrorIs(t, s.DeleteComment(ctx, alice, c.ID), apperr.ErrForbidden)

	require.NoError(t, s.DeleteComment(ctx, bob, c.ID))

	c2, err := s.CreateComment(ctx, bob, p.ID, "again")
	require.NoError(t, err)
	require.NoError(t, s.DeleteComment(ctx, admin, c2.ID))
}

func TestPinPermissionsAndToggle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	bob := register(t, s, "bobby")
	admin := register(t, s, "admin")

	p, err := s.CreatePost(ctx, alice, "Title", "content")
	require.NoError(t, err)
	c, err := s.CreateComment(ctx, bob, p.ID, "hi")
	require.NoError(t, err)

	// The comment's own author may not pin it on someone else's post.
	_, err = s.TogglePin(ctx, bob, c.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	pinned, err := s.TogglePin(ctx, alice, c.ID)
	require.NoError(t, err)
	require.True(t, pinned)

	// Pin is a toggle: a second request unpins.
	pinned, err = s.TogglePin(ctx, admin, c.ID)
	require.NoError(t, err)
	require.False(t, pinned)

	// Double-toggle left everything as it was.
	got, err := s.Comment(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, got.Pinned)
	post, err := s.Post(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 1, post.CommentCount)
}

func TestMutatingAbsentCommentIsNotFound(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")

	require.ErrorIs(t, s.DeleteComment(ctx, alice, 999), apperr.ErrNotFound)
	_, err := s.TogglePin(ctx, alice, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.CreateComment(ctx, alice, 999, "on a missing post")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommentValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	p, err := s.CreatePost(ctx, alice, "Title", "content")
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, alice, p.ID, "")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.CreateComment(ctx, alice, p.ID, strings.Repeat("x", 501))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = s.CreateComment(ctx, policy.Actor{}, p.ID, "anonymous")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSettingsValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	register(t, s, "bobby")

	err := s.UpdateSettings(ctx, alice, Settings{Username: "alice", ThemePreference: "blue"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	err = s.UpdateSettings(ctx, alice, Settings{Username: "bobby", ThemePreference: "dark"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	err = s.UpdateSettings(ctx, alice, Settings{
		Username: "alice", Bio: "hi there", ThemePreference: "dark", BlurEffect: false,
	})
	require.NoError(t, err)

	u, err := s.User(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "dark", u.ThemePreference)
	require.Equal(t, "hi there", u.Bio)
	require.False(t, u.BlurEffect)

	// Keeping your own username is not a conflict.
	err = s.UpdateSettings(ctx, alice, Settings{Username: "alice", ThemePreference: "system"})
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")

	err := s.ChangePassword(ctx, alice, "wrongcurrent", "newpassword1")
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	err = s.ChangePassword(ctx, alice, "password123", "short")
	require.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, s.ChangePassword(ctx, alice, "password123", "newpassword1"))

	_, err = s.Authenticate(ctx, "alice", "password123")
	require.ErrorIs(t, err, apperr.ErrAuthentication)
	_, err = s.Authenticate(ctx, "alice", "newpassword1")
	require.NoError(t, err)
}

func TestThemePreferenceAPI(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")

	require.ErrorIs(t, s.UpdateThemePreference(ctx, alice, "blue"), apperr.ErrValidation)
	require.NoError(t, s.UpdateThemePreference(ctx, alice, "system"))

	u, err := s.User(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "system", u.ThemePreference)

	require.NoError(t, s.UpdateBlurEffect(ctx, alice, false))
	u, err = s.User(ctx, alice.ID)
	require.NoError(t, err)
	require.False(t, u.BlurEffect)
}

func TestAdminOverview(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	alice := register(t, s, "alice")
	admin := register(t, s, "admin")
	_, err := s.CreatePost(ctx, alice, "Title", "content")
	require.NoError(t, err)

	_, err = s.Admin(ctx, alice)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	overview, err := s.Admin(ctx, admin)
	require.NoError(t, err)
	require.Len(t, overview.Users, 2)
	require.Len(t, overview.Posts, 1)
}

// TestModerationScenario walks the full flow: a post gains three
// comments, the admin pins one, the post author deletes another, and the
// count and ordering stay consistent throughout.
func TestModerationScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u1 := register(t, s, "alice")
	u2 := register(t, s, "bobby")
	u3 := register(t, s, "carol")
	admin := register(t, s, "admin")

	p, err := s.CreatePost(ctx, u1, "A", "content")
	require.NoError(t, err)

	c2, err := s.CreateComment(ctx, u2, p.ID, "from bobby")
	require.NoError(t, err)
	c3, err := s.CreateComment(ctx, u3, p.ID, "from carol")
	require.NoError(t, err)
	c1, err := s.CreateComment(ctx, u1, p.ID, "from alice")
	require.NoError(t, err)

	post, err := s.Post(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, post.CommentCount)

	pinned, err := s.TogglePin(ctx, admin, c2.ID)
	require.NoError(t, err)
	require.True(t, pinned)

	comments, err := s.Comments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	require.Equal(t, c2.ID, comments[0].ID, "pinned comment first")
	require.Equal(t, c1.ID, comments[1].ID, "then newest")
	require.Equal(t, c3.ID, comments[2].ID)

	// Owning the post grants pin rights, not delete rights over other
	// people's comments.
	require.ErrorIs(t, s.DeleteComment(ctx, u1, c3.ID), apperr.ErrForbidden)
	require.NoError(t, s.DeleteComment(ctx, admin, c3.ID))

	post, err = s.Post(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 2, post.CommentCount)

	comments, err = s.Comments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	for _, c := range comments {
		require.NotEqual(t, c3.ID, c.ID)
	}
}
