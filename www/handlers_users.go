package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"adslink/config"
	"adslink/logging"
)

// UserData holds display data for a user row.
type UserData struct {
	Username           string
	Role               string
	MustChangePassword bool
	IsSelf             bool
}

// handleUsersPage renders the user management page.
func (h *Handlers) handleUsersPage(w http.ResponseWriter, r *http.Request) {
	current, _, _ := h.sessions.getUser(r)
	cfg := h.managers.GetConfig()

	rows := []UserData{}
	for _, u := range cfg.Web.UI.Users {
		rows = append(rows, UserData{
			Username:           u.Username,
			Role:               u.Role,
			MustChangePassword: u.MustChangePassword,
			IsSelf:             u.Username == current,
		})
	}

	h.renderTemplate(w, "users.html", map[string]interface{}{
		"User":  h.getUserInfo(r),
		"Page":  "users",
		"Users": rows,
	})
}

// handleUserCreate creates a new web user with a forced password change.
func (h *Handlers) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	role := r.FormValue("role")

	fail := func(msg string) {
		h.renderTemplate(w, "users.html", map[string]interface{}{
			"User":  h.getUserInfo(r),
			"Page":  "users",
			"Error": msg,
		})
	}

	if username == "" {
		fail("Username is required")
		return
	}
	if len(password) < 8 {
		fail("Password must be at least 8 characters")
		return
	}
	if role != config.RoleAdmin && role != config.RoleViewer {
		role = config.RoleViewer
	}

	cfg := h.managers.GetConfig()
	if cfg.FindWebUser(username) != nil {
		fail("User already exists")
		return
	}

	hash, err := hashPassword(password)
	if err != nil {
		fail("Failed to hash password")
		return
	}

	cfg.Lock()
	cfg.AddWebUser(config.WebUser{
		Username:           username,
		PasswordHash:       hash,
		Role:               role,
		MustChangePassword: true,
	})
	if err := cfg.UnlockAndSave(h.managers.GetConfigPath()); err != nil {
		logging.DebugLog("www", "failed to save config after user create: %v", err)
	}

	logging.DebugLog("www", "created web user %q with role %s", username, role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// handleUserDelete removes a web user. Users cannot delete themselves.
func (h *Handlers) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	current, _, _ := h.sessions.getUser(r)

	if username == current {
		http.Error(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}

	cfg := h.managers.GetConfig()
	cfg.Lock()
	removed := cfg.RemoveWebUser(username)
	if err := cfg.UnlockAndSave(h.managers.GetConfigPath()); err != nil {
		logging.DebugLog("www", "failed to save config after user delete: %v", err)
	}

	if removed {
		logging.DebugLog("www", "deleted web user %q", username)
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// handleUserRole changes a user's role. Users cannot demote themselves.
func (h *Handlers) handleUserRole(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	role := r.FormValue("role")
	current, _, _ := h.sessions.getUser(r)

	if username == current {
		http.Error(w, "Cannot change your own role", http.StatusBadRequest)
		return
	}
	if role != config.RoleAdmin && role != config.RoleViewer {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	cfg := h.managers.GetConfig()
	user := cfg.FindWebUser(username)
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	cfg.Lock()
	updated := *user
	updated.Role = role
	cfg.UpdateWebUser(username, updated)
	if err := cfg.UnlockAndSave(h.managers.GetConfigPath()); err != nil {
		logging.DebugLog("www", "failed to save config after role change: %v", err)
	}

	logging.DebugLog("www", "changed role of %q to %s", username, role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
