package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"blog/internal/apperr"
	"blog/internal/auth"
	"blog/internal/blog"
	"blog/internal/models"
	"blog/internal/policy"

	"github.com/google/uuid"
)

type Handler struct {
	svc       *blog.Service
	sessions  *auth.Manager
	tpls      *template.Template
	log       *slog.Logger
	avatarDir string
}

func New(svc *blog.Service, sessions *auth.Manager, log *slog.Logger, avatarDir string) *Handler {
	tpls := template.Must(template.ParseGlob(filepath.Join("web", "templates", "*.html")))
	return &Handler{svc: svc, sessions: sessions, tpls: tpls, log: log, avatarDir: avatarDir}
}

// Routes registers every endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /register", h.RegisterForm)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)

	mux.HandleFunc("GET /post/new", h.RequireAuth(h.NewPostForm))
	mux.HandleFunc("POST /post/new", h.RequireAuth(h.CreatePost))
	mux.HandleFunc("GET /post/{id}", h.ShowPost)
	mux.HandleFunc("GET /post/{id}/update", h.RequireAuth(h.EditPostForm))
	mux.HandleFunc("POST /post/{id}/update", h.RequireAuth(h.UpdatePost))
	mux.HandleFunc("POST /post/{id}/delete", h.RequireAuth(h.DeletePost))

	mux.HandleFunc("GET /community", h.Community)
	mux.HandleFunc("GET /community/post/{id}", h.CommunityPost)
	mux.HandleFunc("POST /community/post/{id}", h.RequireAuth(h.CreateComment))
	mux.HandleFunc("POST /comment/{id}/delete", h.RequireAuth(h.DeleteComment))
	mux.HandleFunc("POST /comment/{id}/pin", h.RequireAuth(h.PinComment))

	mux.HandleFunc("GET /settings", h.RequireAuth(h.SettingsForm))
	mux.HandleFunc("POST /settings", h.RequireAuth(h.UpdateSettings))
	mux.HandleFunc("POST /settings/password", h.RequireAuth(h.ChangePassword))

	mux.HandleFunc("GET /user/{username}", h.UserPosts)
	mux.HandleFunc("GET /admin", h.RequireAuth(h.Admin))

	mux.HandleFunc("POST /api/update-theme-preference", h.RequireAuth(h.APIUpdateThemePreference))
	mux.HandleFunc("POST /api/update-blur-effect", h.RequireAuth(h.APIUpdateBlurEffect))
}

// actor resolves the acting identity from the session cookie. A zero
// Actor means anonymous.
func (h *Handler) actor(r *http.Request) policy.Actor {
	uid, ok := h.sessions.CurrentUserID(r)
	if !ok {
		return policy.Actor{}
	}
	u, err := h.svc.User(r.Context(), uid)
	if err != nil {
		return policy.Actor{}
	}
	return policy.Actor{ID: u.ID, Username: u.Username}
}

func (h *Handler) currentUser(r *http.Request) *models.User {
	uid, ok := h.sessions.CurrentUserID(r)
	if !ok {
		return nil
	}
	u, err := h.svc.User(r.Context(), uid)
	if err != nil {
		return nil
	}
	return u
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		h.NotFound(w, r)
	case errors.Is(err, apperr.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, apperr.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperr.ErrAuthentication):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		h.log.Error("internal error", "path", r.URL.Path, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrNotFound
	}
	return id, nil
}

// -------- Pages

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)

	var posts []models.Post
	var err error
	if user != nil {
		posts, err = h.svc.PostsByUser(r.Context(), user.ID)
	} else {
		posts, err = h.svc.Posts(r.Context())
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, "home", map[string]any{
		"Title": "Home",
		"User":  user,
		"Posts": posts,
	})
}

func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "register", map[string]any{"Title": "Register"})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if password != r.FormValue("confirm_password") {
		http.Error(w, "Passwords do not match", http.StatusBadRequest)
		return
	}

	if _, err := h.svc.Register(r.Context(), username, password); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, "login", map[string]any{
		"Title":      "Login",
		"Registered": r.URL.Query().Get("registered") == "1",
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	u, err := h.svc.Authenticate(r.Context(), username, password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.sessions.DestroyAll(u.ID)
	if err := h.sessions.Create(w, u.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// -------- Posts

func (h *Handler) NewPostForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "edit_post", map[string]any{
		"Title":  "New Post",
		"Legend": "New Post",
		"User":   h.currentUser(r),
		"Action": "/post/new",
	})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))

	p, err := h.svc.CreatePost(r.Context(), h.actor(r), title, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/post/"+strconv.FormatInt(p.ID, 10), http.StatusSeeOther)
}

func (h *Handler) ShowPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	p, err := h.svc.Post(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user := h.currentUser(r)
	h.render(w, "post", map[string]any{
		"Title":   p.Title,
		"Post":    p,
		"User":    user,
		"IsOwner": user != nil && user.ID == p.UserID,
	})
}

func (h *Handler) EditPostForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	p, err := h.svc.Post(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user := h.currentUser(r)
	if user == nil || user.ID != p.UserID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	h.render(w, "edit_post", map[string]any{
		"Title":  "Update Post",
		"Legend": "Update Post",
		"User":   user,
		"Post":   p,
		"Action": "/post/" + strconv.FormatInt(p.ID, 10) + "/update",
	})
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	content := strings.TrimSpace(r.FormValue("content"))
	if err := h.svc.UpdatePost(r.Context(), h.actor(r), id, title, content); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/post/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	if err := h.svc.DeletePost(r.Context(), h.actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// -------- Community & comments

func (h *Handler) Community(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Posts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "community", map[string]any{
		"Title": "Community",
		"User":  h.currentUser(r),
		"Posts": posts,
	})
}

func (h *Handler) CommunityPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	p, err := h.svc.Post(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	comments, err := h.svc.Comments(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user := h.currentUser(r)
	actor := h.actor(r)
	h.render(w, "community_post", map[string]any{
		"Title":    p.Title,
		"Post":     p,
		"Comments": comments,
		"User":     user,
		"CanPin":   actor.ID != 0 && (actor.ID == p.UserID || h.svc.IsAdmin(actor)),
		"IsAdmin":  h.svc.IsAdmin(actor),
	})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	content := strings.TrimSpace(r.FormValue("content"))
	if _, err := h.svc.CreateComment(r.Context(), h.actor(r), id, content); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/community/post/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	c, err := h.svc.Comment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteComment(r.Context(), h.actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/community/post/"+strconv.FormatInt(c.PostID, 10), http.StatusSeeOther)
}

func (h *Handler) PinComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	c, err := h.svc.Comment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.svc.TogglePin(r.Context(), h.actor(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/community/post/"+strconv.FormatInt(c.PostID, 10), http.StatusSeeOther)
}

// -------- Settings

func (h *Handler) SettingsForm(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(r)
	themes, err := h.svc.Themes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "settings", map[string]any{
		"Title":  "Settings",
		"User":   user,
		"Themes": themes,
	})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	// Avatar uploads arrive on the same form.
	if err := r.ParseMultipartForm(5 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Bad form", http.StatusBadRequest)
		return
	}

	actor := h.actor(r)
	in := blog.Settings{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Bio:             strings.TrimSpace(r.FormValue("bio")),
		ThemePreference: r.FormValue("theme_preference"),
		BlurEffect:      r.FormValue("blur_effect") == "on" || r.FormValue("blur_effect") == "true",
	}
	if err := h.svc.UpdateSettings(r.Context(), actor, in); err != nil {
		h.fail(w, r, err)
		return
	}

	if file, header, err := r.FormFile("profile_picture"); err == nil {
		defer file.Close()
		if err := h.saveAvatar(r, actor, header.Filename, file); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	current := r.FormValue("current_password")
	next := r.FormValue("new_password")
	if next != r.FormValue("confirm_new_password") {
		http.Error(w, "Passwords do not match", http.StatusBadRequest)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), h.actor(r), current, next); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

// -------- Profiles & admin

func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	u, err := h.svc.UserByUsername(r.Context(), username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	posts, err := h.svc.PostsByUser(r.Context(), u.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "user_posts", map[string]any{
		"Title":   u.Username,
		"Profile": u,
		"Posts":   posts,
		"User":    h.currentUser(r),
	})
}

func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Admin(r.Context(), h.actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, "admin", map[string]any{
		"Title": "Admin",
		"User":  h.currentUser(r),
		"Users": overview.Users,
		"Posts": overview.Posts,
	})
}

// -------- JSON API

func (h *Handler) APIUpdateThemePreference(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid json")
		return
	}
	theme, ok := body["theme_preference"].(string)
	if !ok {
		writeJSONError(w, "Invalid theme_preference")
		return
	}
	if err := h.svc.UpdateThemePreference(r.Context(), h.actor(r), theme); err != nil {
		writeJSONError(w, "Invalid theme_preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "theme_preference": theme})
}

func (h *Handler) APIUpdateBlurEffect(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid json")
		return
	}
	// The flag must arrive as a JSON boolean; numbers and strings are
	// rejected, not coerced.
	blur, ok := body["blur_effect"].(bool)
	if !ok {
		writeJSONError(w, "Invalid blur_effect value")
		return
	}
	if err := h.svc.UpdateBlurEffect(r.Context(), h.actor(r), blur); err != nil {
		writeJSONError(w, "Invalid blur_effect value")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "blur_effect": blur})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": msg})
}

// -------- Misc

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	h.tpls.ExecuteTemplate(w, "notfound", map[string]any{"Title": "Not Found"})
}

func (h *Handler) render(w http.ResponseWriter, name string, data map[string]any) {
	if err := h.tpls.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("render template", "template", name, "err", err)
	}
}

// saveAvatar stores the uploaded file under a random name and points the
// user's avatar at it. The previous file is removed unless it is the
// shared default. Files are stored as uploaded; no resizing.
func (h *Handler) saveAvatar(r *http.Request, actor policy.Actor, original string, file io.Reader) error {
	ext := strings.ToLower(filepath.Ext(original))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return apperr.ErrValidation
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(h.avatarDir, name))
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return err
	}

	old, err := h.svc.User(r.Context(), actor.ID)
	if err == nil && old.Avatar != "" && old.Avatar != "default.jpg" {
		os.Remove(filepath.Join(h.avatarDir, old.Avatar))
	}
	return h.svc.UpdateAvatar(r.Context(), actor, name)
}
