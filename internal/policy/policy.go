// Package policy holds the pure authorization decisions. Every check
// takes the acting identity explicitly; there is no ambient current-user
// state anywhere in the core.
package policy

import "blog/internal/models"

// Actor is the identity attempting an action. A zero Actor (ID 0) is an
// anonymous visitor and is denied everything here.
type Actor struct {
	ID       int64
	Username string
}

// Policy answers allow/deny questions for post and comment mutation.
// Admin is a single distinguished account identified by a reserved
// username. That is a known simplification carried over from the
// original system; the name lives here so the comparison happens in
// exactly one place.
type Policy struct {
	AdminUsername string
}

func New(adminUsername string) *Policy {
	return &Policy{AdminUsername: adminUsername}
}

func (p *Policy) IsAdmin(a Actor) bool {
	return a.ID != 0 && a.Username == p.AdminUsername
}

// CanEditPost reports whether the actor may update or delete the post.
// Only the author may; the admin gets no special rights over posts.
func (p *Policy) CanEditPost(a Actor, post *models.Post) bool {
	return a.ID != 0 && a.ID == post.UserID
}

// CanDeleteComment reports whether the actor may delete the comment:
// its author, or the admin.
func (p *Policy) CanDeleteComment(a Actor, c *models.Comment) bool {
	if a.ID == 0 {
		return false
	}
	return a.ID == c.UserID || p.IsAdmin(a)
}

// CanPinComment reports whether the actor may pin or unpin comments on
// the given post: the post's author, or the admin.
func (p *Policy) CanPinComment(a Actor, post *models.Post) bool {
	if a.ID == 0 {
		return false
	}
	return a.ID == post.UserID || p.IsAdmin(a)
}

// CanViewAdmin reports whether the actor may see the admin area
// (all users, all posts).
func (p *Policy) CanViewAdmin(a Actor) bool {
	return p.IsAdmin(a)
}
