package www

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"adslink/bridge"
	"adslink/kafka"
	"adslink/logging"
)

// handleLoginPage renders the login form.
func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// Already logged in? Go to dashboard.
	if username, _, ok := h.sessions.getUser(r); ok && username != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderTemplate(w, "login.html", nil)
}

// handleLoginSubmit processes login form submission.
func (h *Handlers) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	user := h.managers.GetConfig().FindWebUser(username)
	if user == nil || !checkPassword(user.PasswordHash, password) {
		logging.DebugLog("www", "failed login attempt for user %q from %s", username, r.RemoteAddr)
		h.renderTemplate(w, "login.html", map[string]interface{}{
			"Error": "Invalid username or password",
		})
		return
	}

	if err := h.sessions.setUser(w, r, user.Username, user.Role); err != nil {
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}

	logging.DebugLog("www", "user %q logged in from %s", username, r.RemoteAddr)

	if user.MustChangePassword {
		http.Redirect(w, r, "/change-password", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the session.
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleChangePasswordPage renders the password change form.
func (h *Handlers) handleChangePasswordPage(w http.ResponseWriter, r *http.Request) {
	username, _, _ := h.sessions.getUser(r)
	user := h.managers.GetConfig().FindWebUser(username)
	forced := user != nil && user.MustChangePassword
	h.renderTemplate(w, "change-password.html", map[string]interface{}{
		"User":   h.getUserInfo(r),
		"Page":   "change-password",
		"Forced": forced,
	})
}

// handleChangePasswordSubmit processes a password change.
func (h *Handlers) handleChangePasswordSubmit(w http.ResponseWriter, r *http.Request) {
	username, _, _ := h.sessions.getUser(r)

	current := r.FormValue("current_password")
	newPass := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	fail := func(msg string) {
		h.renderTemplate(w, "change-password.html", map[string]interface{}{
			"User":  h.getUserInfo(r),
			"Page":  "change-password",
			"Error": msg,
		})
	}

	cfg := h.managers.GetConfig()
	user := cfg.FindWebUser(username)
	if user == nil {
		h.sessions.clear(w, r)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if !checkPassword(user.PasswordHash, current) {
		fail("Current password is incorrect")
		return
	}
	if len(newPass) < 8 {
		fail("New password must be at least 8 characters")
		return
	}
	if newPass != confirm {
		fail("Passwords do not match")
		return
	}

	hash, err := hashPassword(newPass)
	if err != nil {
		fail("Failed to hash password")
		return
	}

	cfg.Lock()
	updated := *user
	updated.PasswordHash = hash
	updated.MustChangePassword = false
	cfg.UpdateWebUser(username, updated)
	if err := cfg.UnlockAndSave(h.managers.GetConfigPath()); err != nil {
		logging.DebugLog("www", "failed to save config after password change: %v", err)
	}

	logging.DebugLog("www", "user %q changed their password", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// TargetData holds display data for a single target row.
type TargetData struct {
	Name          string
	Address       string
	NetId         string
	Port          uint16
	Enabled       bool
	Status        string
	StatusClass   string
	Device        string
	Error         string
	LastSample    string
	Subscriptions int
}

func (h *Handlers) targetData() []TargetData {
	targets := h.managers.GetBridge().ListTargets()
	rows := make([]TargetData, 0, len(targets))
	for _, t := range targets {
		status := t.GetStatus()
		row := TargetData{
			Name:          t.Config.Name,
			Address:       t.Config.Address,
			NetId:         t.Config.NetId,
			Port:          t.Config.Port,
			Enabled:       t.Config.Enabled,
			Status:        status.String(),
			StatusClass:   statusClass(status),
			Subscriptions: len(t.Config.Subscriptions),
		}
		if dev := t.GetDevice(); dev != nil {
			row.Device = dev.String()
		}
		if err := t.GetError(); err != nil {
			row.Error = err.Error()
		}
		if ts := t.GetLastSample(); !ts.IsZero() {
			row.LastSample = ts.Format("15:04:05.000")
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// handleDashboard renders the main dashboard.
func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	cfg := h.managers.GetConfig()
	targets := h.targetData()

	connected := 0
	for _, t := range targets {
		if t.Status == bridge.StatusConnected.String() {
			connected++
		}
	}

	stats := h.managers.GetBridge().GetSampleStats()

	h.renderTemplate(w, "dashboard.html", map[string]interface{}{
		"User":        h.getUserInfo(r),
		"Page":        "dashboard",
		"Namespace":   cfg.Namespace,
		"Targets":     targets,
		"Connected":   connected,
		"MQTTCount":   len(cfg.MQTT),
		"ValkeyCount": len(cfg.Valkey),
		"KafkaCount":  len(cfg.Kafka),
		"SampleRate":  stats.PerSecond,
	})
}

// handleTargetsPage renders the targets page.
func (h *Handlers) handleTargetsPage(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, "targets.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "targets",
		"Targets": h.targetData(),
	})
}

// SymbolData holds display data for a single monitored symbol.
type SymbolData struct {
	Target    string
	Symbol    string
	Hex       string
	Base64    string
	Size      int
	Timestamp string
}

// handleSymbolsPage renders the live symbols page.
func (h *Handlers) handleSymbolsPage(w http.ResponseWriter, r *http.Request) {
	values := h.managers.GetBridge().GetAllCurrentValues()
	rows := make([]SymbolData, 0, len(values))
	for _, v := range values {
		rows = append(rows, SymbolData{
			Target:    v.Target,
			Symbol:    v.Symbol,
			Hex:       hex.EncodeToString(v.Data),
			Base64:    base64.StdEncoding.EncodeToString(v.Data),
			Size:      len(v.Data),
			Timestamp: v.Timestamp.Format("15:04:05.000"),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Target != rows[j].Target {
			return rows[i].Target < rows[j].Target
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	h.renderTemplate(w, "symbols.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "symbols",
		"Symbols": rows,
	})
}

// BrokerData holds display data for a publisher row.
type BrokerData struct {
	Name    string
	Address string
	Enabled bool
	Running bool
	Status  string
	Error   string
}

// handleMQTTPage renders the MQTT publishers page.
func (h *Handlers) handleMQTTPage(w http.ResponseWriter, r *http.Request) {
	rows := []BrokerData{}
	for _, pub := range h.managers.GetMQTTMgr().List() {
		cfg := pub.Config()
		row := BrokerData{
			Name:    pub.Name(),
			Address: pub.Address(),
			Enabled: cfg.Enabled,
			Running: pub.IsRunning(),
		}
		if row.Running {
			row.Status = "Running"
		} else {
			row.Status = "Stopped"
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	h.renderTemplate(w, "mqtt.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "mqtt",
		"Brokers": rows,
	})
}

// handleValkeyPage renders the Valkey publishers page.
func (h *Handlers) handleValkeyPage(w http.ResponseWriter, r *http.Request) {
	rows := []BrokerData{}
	for _, pub := range h.managers.GetValkeyMgr().List() {
		cfg := pub.Config()
		row := BrokerData{
			Name:    cfg.Name,
			Address: pub.Address(),
			Enabled: cfg.Enabled,
			Running: pub.IsRunning(),
		}
		if row.Running {
			row.Status = "Running"
		} else {
			row.Status = "Stopped"
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	h.renderTemplate(w, "valkey.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "valkey",
		"Brokers": rows,
	})
}

// handleKafkaPage renders the Kafka clusters page.
func (h *Handlers) handleKafkaPage(w http.ResponseWriter, r *http.Request) {
	mgr := h.managers.GetKafkaMgr()
	rows := []BrokerData{}
	for _, name := range mgr.ListClusters() {
		row := BrokerData{Name: name}
		if producer := mgr.GetProducer(name); producer != nil {
			row.Address = producer.Config().BrokerList()
			row.Enabled = producer.Config().Enabled
			status := producer.GetStatus()
			row.Status = status.String()
			row.Running = status == kafka.StatusConnected
			if err := producer.GetError(); err != nil {
				row.Error = err.Error()
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	h.renderTemplate(w, "kafka.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "kafka",
		"Brokers": rows,
	})
}

// DebugEntry holds one formatted debug log line for display.
type DebugEntry struct {
	Time     string
	Protocol string
	Message  string
}

// handleDebugPage renders the in-memory debug log.
func (h *Handlers) handleDebugPage(w http.ResponseWriter, r *http.Request) {
	entries := logging.Recent()
	rows := make([]DebugEntry, 0, len(entries))
	// Newest first for display
	for i := len(entries) - 1; i >= 0; i-- {
		rows = append(rows, DebugEntry{
			Time:     entries[i].Time.Format("15:04:05.000"),
			Protocol: entries[i].Protocol,
			Message:  entries[i].Message,
		})
	}
	h.renderTemplate(w, "debug.html", map[string]interface{}{
		"User":    h.getUserInfo(r),
		"Page":    "debug",
		"Entries": rows,
	})
}

// handleDebugClear clears the in-memory debug log.
func (h *Handlers) handleDebugClear(w http.ResponseWriter, r *http.Request) {
	logging.ClearRecent()
	http.Redirect(w, r, "/debug", http.StatusSeeOther)
}

// handleTargetConnect connects a target.
func (h *Handlers) handleTargetConnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.managers.GetBridge().Connect(name); err != nil {
		logging.DebugLog("www", "connect %s failed: %v", name, err)
	}
	// Give the connection attempt a moment before redisplaying status
	time.Sleep(100 * time.Millisecond)
	http.Redirect(w, r, "/targets", http.StatusSeeOther)
}

// handleTargetDisconnect disconnects a target.
func (h *Handlers) handleTargetDisconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.managers.GetBridge().Disconnect(name); err != nil {
		logging.DebugLog("www", "disconnect %s failed: %v", name, err)
	}
	http.Redirect(w, r, "/targets", http.StatusSeeOther)
}

// handleMQTTStart starts an MQTT publisher.
func (h *Handlers) handleMQTTStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if pub := h.managers.GetMQTTMgr().Get(name); pub != nil {
		if err := pub.Start(); err != nil {
			logging.DebugLog("www", "mqtt start %s failed: %v", name, err)
		}
	}
	http.Redirect(w, r, "/mqtt", http.StatusSeeOther)
}

// handleMQTTStop stops an MQTT publisher.
func (h *Handlers) handleMQTTStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if pub := h.managers.GetMQTTMgr().Get(name); pub != nil {
		pub.Stop()
	}
	http.Redirect(w, r, "/mqtt", http.StatusSeeOther)
}

// handleValkeyStart starts a Valkey publisher.
func (h *Handlers) handleValkeyStart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.managers.GetValkeyMgr().Start(name); err != nil {
		logging.DebugLog("www", "valkey start %s failed: %v", name, err)
	}
	http.Redirect(w, r, "/valkey", http.StatusSeeOther)
}

// handleValkeyStop stops a Valkey publisher.
func (h *Handlers) handleValkeyStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.managers.GetValkeyMgr().Stop(name); err != nil {
		logging.DebugLog("www", "valkey stop %s failed: %v", name, err)
	}
	http.Redirect(w, r, "/valkey", http.StatusSeeOther)
}

// handleKafkaConnect connects a Kafka cluster.
func (h *Handlers) handleKafkaConnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.managers.GetKafkaMgr().Connect(name); err != nil {
		logging.DebugLog("www", "kafka connect %s failed: %v", name, err)
	}
	http.Redirect(w, r, "/kafka", http.StatusSeeOther)
}

// handleKafkaDisconnect disconnects a Kafka cluster.
func (h *Handlers) handleKafkaDisconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.managers.GetKafkaMgr().Disconnect(name)
	http.Redirect(w, r, "/kafka", http.StatusSeeOther)
}
