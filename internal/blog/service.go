// Package blog implements the application's actions: posting,
// commenting, moderation (delete/pin) and account settings. Every
// mutation takes the acting identity explicitly and is checked against
// the authorization policy before it touches the store.
package blog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blog/internal/apperr"
	"blog/internal/auth"
	"blog/internal/models"
	"blog/internal/policy"
	"blog/internal/store"
)

const (
	minUsernameLen = 4
	maxUsernameLen = 20
	minPasswordLen = 8
	maxPasswordLen = 20
	maxTitleLen    = 100
	maxCommentLen  = 500
	maxBioLen      = 500
)

var validThemes = map[string]bool{"light": true, "dark": true, "system": true}

type Service struct {
	store  *store.Store
	policy *policy.Policy
}

func New(st *store.Store, pol *policy.Policy) *Service {
	return &Service{store: st, policy: pol}
}

// --- accounts

func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	if l := len(username); l < minUsernameLen || l > maxUsernameLen {
		return nil, fmt.Errorf("%w: username must be %d-%d characters", apperr.ErrValidation, minUsernameLen, maxUsernameLen)
	}
	if l := len(password); l < minPasswordLen || l > maxPasswordLen {
		return nil, fmt.Errorf("%w: password must be %d-%d characters", apperr.ErrValidation, minPasswordLen, maxPasswordLen)
	}
	if _, err := s.store.UserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", apperr.ErrConflict)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Username: username, PasswordHash: hash, BlurEffect: true, CreatedAt: time.Now()}
	u.ID, err = s.store.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks a username/password pair and returns the user.
// Wrong username and wrong password fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.store.UserByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: wrong username or password", apperr.ErrAuthentication)
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, fmt.Errorf("%w: wrong username or password", apperr.ErrAuthentication)
	}
	return u, nil
}

// --- posts

func (s *Service) CreatePost(ctx context.Context, actor policy.Actor, title, content string) (*models.Post, error) {
	if actor.ID == 0 {
		return nil, apperr.ErrForbidden
	}
	if err := validatePostInput(title, content); err != nil {
		return nil, err
	}
	p := &models.Post{UserID: actor.ID, Title: title, Content: content, CreatedAt: time.Now()}
	id, err := s.store.CreatePost(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.store.PostByID(ctx, id)
}

func (s *Service) UpdatePost(ctx context.Context, actor policy.Actor, postID int64, title, content string) error {
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return err
	}
	if !s.policy.CanEditPost(actor, p) {
		return fmt.Errorf("%w: only the author may edit a post", apperr.ErrForbidden)
	}
	if err := validatePostInput(title, content); err != nil {
		return err
	}
	return s.store.UpdatePost(ctx, postID, title, content)
}

// DeletePost removes the post and all of its comments.
func (s *Service) DeletePost(ctx context.Context, actor policy.Actor, postID int64) error {
	p, err := s.store.PostByID(ctx, postID)
	if err != nil {
		return err
	}
	if !s.policy.CanEditPost(actor, p) {
		return fmt.Errorf("%w: only the author may delete a post", apperr.ErrForbidden)
	}
	return s.store.DeletePost(ctx, postID)
}

func (s *Service) Post(ctx context.Context, postID int64) (*models.Post, error) {
	return s.store.PostByID(ctx, postID)
}

func (s *Service) Posts(ctx context.Context) ([]models.Post, error) {
	return s.store.Posts(ctx)
}

func (s *Service) PostsByUser(ctx context.Context, userID int64) ([]models.Post, error) {
	return s.store.PostsByUser(ctx, userID)
}

func validatePostInput(title, content string) error {
	if title == "" || len(title) > maxTitleLen {
		return fmt.Errorf("%w: title must be 1-%d characters", apperr.ErrValidation, maxTitleLen)
	}
	if content == "" {
		return fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	return nil
}

// --- comments

// CreateComment attaches a comment to an existing post. The insert and
// the parent's recount commit together.
func (s *Service) CreateComment(ctx context.Context, actor policy.Actor, postID int64, content string) (*models.Comment, error) {
	if actor.ID == 0 {
		return nil, apperr.ErrForbidden
	}
	if l := len(content); l < 1 || l > maxCommentLen {
		return nil, fmt.Errorf("%w: comment must be 1-%d characters", apperr.ErrValidation, maxCommentLen)
	}
	if _, err := s.store.PostByID(ctx, postID); err != nil {
		return nil, err
	}
	c := &models.Comment{PostID: postID, UserID: actor.ID, Content: content, CreatedAt: time.Now()}
	id, err := s.store.CreateComment(ctx, c)
	if err != nil {
		return nil, err
	}
	return s.store.CommentByID(ctx, id)
}

// DeleteComment removes a comment. Allowed for its author and the admin.
func (s *Service) DeleteComment(ctx context.Context, actor policy.Actor, commentID int64) error {
	c, err := s.store.CommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	if !s.policy.CanDeleteComment(actor, c) {
		return fmt.Errorf("%w: only the comment author or admin may delete", apperr.ErrForbidden)
	}
	return s.store.DeleteComment(ctx, commentID)
}

// TogglePin flips a comment's pinned flag. Allowed for the parent post's
// author and the admin. Pinning an already-pinned comment unpins it.
func (s *Service) TogglePin(ctx context.Context, actor policy.Actor, commentID int64) (pinned bool, err error) {
	c, err := s.store.CommentByID(ctx, commentID)
	if err != nil {
		return false, err
	}
	p, err := s.store.PostByID(ctx, c.PostID)
	if err != nil {
		return false, err
	}
	if !s.policy.CanPinComment(actor, p) {
		return false, fmt.Errorf("%w: only the post author or admin may pin comments", apperr.ErrForbidden)
	}
	if err := s.store.SetCommentPinned(ctx, commentID, !c.Pinned); err != nil {
		return false, err
	}
	return !c.Pinned, nil
}

// Comments returns a post's comments in display order: pinned first,
// then newest first.
func (s *Service) Comments(ctx context.Context, postID int64) ([]models.Comment, error) {
	return s.store.CommentsByPost(ctx, postID)
}

func (s *Service) Comment(ctx context.Context, id int64) (*models.Comment, error) {
	return s.store.CommentByID(ctx, id)
}

// --- settings

type Settings struct {
	Username        string
	Bio             string
	ThemePreference string
	BlurEffect      bool
}

// UpdateSettings validates and persists profile changes. A username
// change fails with a conflict when the name belongs to someone else.
func (s *Service) UpdateSettings(ctx context.Context, actor policy.Actor, in Settings) error {
	if actor.ID == 0 {
		return apperr.ErrForbidden
	}
	if l := len(in.Username); l < minUsernameLen || l > maxUsernameLen {
		return fmt.Errorf("%w: username must be %d-%d characters", apperr.ErrValidation, minUsernameLen, maxUsernameLen)
	}
	if len(in.Bio) > maxBioLen {
		return fmt.Errorf("%w: bio must be at most %d characters", apperr.ErrValidation, maxBioLen)
	}
	if !validThemes[in.ThemePreference] {
		return fmt.Errorf("%w: invalid theme preference %q", apperr.ErrValidation, in.ThemePreference)
	}
	if other, err := s.store.UserByUsername(ctx, in.Username); err == nil {
		if other.ID != actor.ID {
			return fmt.Errorf("%w: username already taken", apperr.ErrConflict)
		}
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return s.store.UpdateUserSettings(ctx, actor.ID, in.Username, in.Bio, in.ThemePreference, in.BlurEffect)
}

// ChangePassword verifies the current credential before accepting a new
// one.
func (s *Service) ChangePassword(ctx context.Context, actor policy.Actor, current, next string) error {
	u, err := s.store.UserByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(current, u.PasswordHash) {
		return fmt.Errorf("%w: current password is wrong", apperr.ErrAuthentication)
	}
	if l := len(next); l < minPasswordLen || l > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d characters", apperr.ErrValidation, minPasswordLen, maxPasswordLen)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, actor.ID, hash)
}

// UpdateThemePreference is the JSON API variant: just the enum field.
func (s *Service) UpdateThemePreference(ctx context.Context, actor policy.Actor, theme string) error {
	if actor.ID == 0 {
		return apperr.ErrForbidden
	}
	if !validThemes[theme] {
		return fmt.Errorf("%w: invalid theme preference %q", apperr.ErrValidation, theme)
	}
	return s.store.UpdateUserThemePreference(ctx, actor.ID, theme)
}

func (s *Service) UpdateBlurEffect(ctx context.Context, actor policy.Actor, blur bool) error {
	if actor.ID == 0 {
		return apperr.ErrForbidden
	}
	return s.store.UpdateUserBlurEffect(ctx, actor.ID, blur)
}

func (s *Service) UpdateAvatar(ctx context.Context, actor policy.Actor, filename string) error {
	if actor.ID == 0 {
		return apperr.ErrForbidden
	}
	return s.store.UpdateUserAvatar(ctx, actor.ID, filename)
}

// --- lookups

func (s *Service) User(ctx context.Context, id int64) (*models.User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.store.UserByUsername(ctx, username)
}

func (s *Service) Themes(ctx context.Context) ([]models.Theme, error) {
	return s.store.Themes(ctx)
}

func (s *Service) IsAdmin(a policy.Actor) bool {
	return s.policy.IsAdmin(a)
}

// --- admin

type AdminOverview struct {
	Users []models.User
	Posts []models.Post
}

// Admin returns the moderation overview: every user and every post.
func (s *Service) Admin(ctx context.Context, actor policy.Actor) (*AdminOverview, error) {
	if !s.policy.CanViewAdmin(actor) {
		return nil, fmt.Errorf("%w: admin only", apperr.ErrForbidden)
	}
	users, err := s.store.AllUsers(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.Posts(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminOverview{Users: users, Posts: posts}, nil
}
