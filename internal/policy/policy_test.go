package policy

import (
	"testing"

	"blog/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanEditPost(t *testing.T) {
	pol := New("admin")
	post := &models.Post{ID: 1, UserID: 10}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"author", Actor{ID: 10, Username: "alice"}, true},
		{"other user", Actor{ID: 11, Username: "bob"}, false},
		{"admin has no post rights", Actor{ID: 1, Username: "admin"}, false},
		{"anonymous", Actor{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pol.CanEditPost(tt.actor, post))
		})
	}
}

func TestCanDeleteComment(t *testing.T) {
	pol := New("admin")
	comment := &models.Comment{ID: 5, PostID: 1, UserID: 10}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"comment author", Actor{ID: 10, Username: "alice"}, true},
		{"other user", Actor{ID: 11, Username: "bob"}, false},
		{"admin", Actor{ID: 1, Username: "admin"}, true},
		{"anonymous", Actor{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pol.CanDeleteComment(tt.actor, comment))
		})
	}
}

func TestCanPinComment(t *testing.T) {
	pol := New("admin")
	post := &models.Post{ID: 1, UserID: 10}

	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{"post author", Actor{ID: 10, Username: "alice"}, true},
		{"comment author but not post author", Actor{ID: 11, Username: "bob"}, false},
		{"admin", Actor{ID: 1, Username: "admin"}, true},
		{"anonymous", Actor{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pol.CanPinComment(tt.actor, post))
		})
	}
}

func TestCanViewAdmin(t *testing.T) {
	pol := New("admin")

	assert.True(t, pol.CanViewAdmin(Actor{ID: 1, Username: "admin"}))
	assert.False(t, pol.CanViewAdmin(Actor{ID: 2, Username: "alice"}))
	assert.False(t, pol.CanViewAdmin(Actor{}))

	// The reserved name alone is not enough without an identity.
	assert.False(t, pol.CanViewAdmin(Actor{ID: 0, Username: "admin"}))
}

func TestAdminUsernameIsConfigurable(t *testing.T) {
	pol := New("moderator")

	assert.True(t, pol.IsAdmin(Actor{ID: 7, Username: "moderator"}))
	assert.False(t, pol.IsAdmin(Actor{ID: 1, Username: "admin"}))
}
