// Package www provides the browser UI: session-authenticated pages for
// targets, publishers, users, and debug logs.
package www

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adslink/bridge"
	"adslink/config"
	"adslink/kafka"
	"adslink/mqtt"
	"adslink/valkey"
)

// Managers provides access to shared backend managers.
type Managers interface {
	GetConfig() *config.Config
	GetConfigPath() string
	GetBridge() *bridge.Manager
	GetMQTTMgr() *mqtt.Manager
	GetValkeyMgr() *valkey.Manager
	GetKafkaMgr() *kafka.Manager
}

// Handlers holds all HTTP handlers for the web UI.
type Handlers struct {
	cfg      *config.WebUIConfig
	managers Managers
	sessions *sessionStore
	tmpl     *template.Template
	eventHub *EventHub
}

// newHandlers creates a new handlers instance.
func newHandlers(cfg *config.WebUIConfig, managers Managers) *Handlers {
	h := &Handlers{
		cfg:      cfg,
		managers: managers,
		sessions: newSessionStore(cfg.SessionSecret),
		eventHub: newEventHub(),
	}

	h.tmpl = template.Must(template.New("").Funcs(template.FuncMap{
		"isAdmin": isAdmin,
		"json": func(v interface{}) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
	}).ParseFS(templatesFS, "templates/*.html"))

	return h
}

// NewRouter creates the web UI router. The returned cleanup function
// stops the SSE event hub.
func NewRouter(cfg *config.WebUIConfig, managers Managers) (chi.Router, *EventHub, func()) {
	h := newHandlers(cfg, managers)

	r := chi.NewRouter()

	// Login/logout (public)
	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLoginSubmit)
	r.Post("/logout", h.handleLogout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)

		// Password change (available before the must-change gate lifts)
		r.Get("/change-password", h.handleChangePasswordPage)
		r.Post("/change-password", h.handleChangePasswordSubmit)

		// SSE endpoint for live symbol values
		r.Get("/events/values", h.handleSSEValues)

		// Pages
		r.Get("/", h.handleDashboard)
		r.Get("/targets", h.handleTargetsPage)
		r.Get("/symbols", h.handleSymbolsPage)
		r.Get("/mqtt", h.handleMQTTPage)
		r.Get("/valkey", h.handleValkeyPage)
		r.Get("/kafka", h.handleKafkaPage)
		r.Get("/debug", h.handleDebugPage)

		// Actions (admin only)
		r.Group(func(r chi.Router) {
			r.Use(h.adminOnlyMiddleware)

			// Target actions
			r.Post("/targets/{name}/connect", h.handleTargetConnect)
			r.Post("/targets/{name}/disconnect", h.handleTargetDisconnect)

			// Broker actions
			r.Post("/mqtt/{name}/start", h.handleMQTTStart)
			r.Post("/mqtt/{name}/stop", h.handleMQTTStop)
			r.Post("/valkey/{name}/start", h.handleValkeyStart)
			r.Post("/valkey/{name}/stop", h.handleValkeyStop)
			r.Post("/kafka/{name}/connect", h.handleKafkaConnect)
			r.Post("/kafka/{name}/disconnect", h.handleKafkaDisconnect)

			// Debug actions
			r.Post("/debug/clear", h.handleDebugClear)
		})

		// User management (admin only)
		r.Route("/users", func(r chi.Router) {
			r.Use(h.adminOnlyMiddleware)
			r.Get("/", h.handleUsersPage)
			r.Post("/", h.handleUserCreate)
			r.Post("/{username}/delete", h.handleUserDelete)
			r.Post("/{username}/role", h.handleUserRole)
		})
	})

	cleanup := func() { h.eventHub.Stop() }
	return r, h.eventHub, cleanup
}

// authMiddleware checks if the user is authenticated.
func (h *Handlers) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _, ok := h.sessions.getUser(r)
		if !ok || username == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		// Verify user still exists in config
		user := h.managers.GetConfig().FindWebUser(username)
		if user == nil {
			h.sessions.clear(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		// Force password change before anything else
		if user.MustChangePassword && r.URL.Path != "/change-password" {
			http.Redirect(w, r, "/change-password", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// adminOnlyMiddleware checks if the user has admin role.
func (h *Handlers) adminOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, role, ok := h.sessions.getUser(r)
		if !ok || !isAdmin(role) {
			http.Error(w, "Forbidden: Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// renderTemplate renders a template with common data.
func (h *Handlers) renderTemplate(w http.ResponseWriter, name string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// getUserInfo returns the current user info for templates.
func (h *Handlers) getUserInfo(r *http.Request) map[string]interface{} {
	username, role, _ := h.sessions.getUser(r)
	return map[string]interface{}{
		"Username": username,
		"Role":     role,
		"IsAdmin":  isAdmin(role),
	}
}
