// Package api provides the REST interface for targets and symbol values.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

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

// TargetResponse is the JSON response for target info.
type TargetResponse struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	NetId         string `json:"net_id,omitempty"`
	Port          uint16 `json:"port,omitempty"`
	Status        string `json:"status"`
	DeviceName    string `json:"device_name,omitempty"`
	Error         string `json:"error,omitempty"`
	Subscriptions int    `json:"subscriptions"`
}

// SymbolResponse is the JSON response for a symbol value. Data is the
// raw value, base64-encoded on the wire.
type SymbolResponse struct {
	Target    string `json:"target"`
	Symbol    string `json:"symbol"`
	Data      []byte `json:"data"`
	Size      int    `json:"size"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HealthResponse is the JSON structure for target health status.
type HealthResponse struct {
	Target    string `json:"target"`
	Online    bool   `json:"online"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteRequest is the JSON request for writing a symbol value.
type WriteRequest struct {
	Target string `json:"target"`
	Symbol string `json:"symbol"`
	Data   []byte `json:"data"`
}

// WriteResponse is the JSON response after writing a symbol value.
type WriteResponse struct {
	Target    string `json:"target"`
	Symbol    string `json:"symbol"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// handlers holds the API handler functions.
type handlers struct {
	managers Managers
}

// NewRouter creates the REST API router.
func NewRouter(managers Managers) chi.Router {
	r := chi.NewRouter()
	h := &handlers{managers: managers}

	// Root - list targets
	r.Get("/", h.handleListTargets)

	// Target-specific endpoints
	r.Route("/{target}", func(r chi.Router) {
		r.Get("/", h.handleTargetDetails)
		r.Get("/health", h.handleTargetHealth)
		r.Get("/symbols", h.handleAllSymbols)
		r.Get("/symbols/*", h.handleSingleSymbol)
		r.Post("/write", h.handleWrite)
	})

	return r
}

func (h *handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func targetResponse(target *bridge.ManagedTarget) TargetResponse {
	resp := TargetResponse{
		Name:          target.Config.Name,
		Address:       target.Config.Address,
		NetId:         target.Config.NetId,
		Port:          target.Config.Port,
		Status:        target.GetStatus().String(),
		Subscriptions: len(target.Config.Subscriptions),
	}
	if dev := target.GetDevice(); dev != nil {
		resp.DeviceName = dev.String()
	}
	if err := target.GetError(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func (h *handlers) handleListTargets(w http.ResponseWriter, r *http.Request) {
	targets := h.managers.GetBridge().ListTargets()
	response := make([]TargetResponse, 0, len(targets))

	for _, target := range targets {
		response = append(response, targetResponse(target))
	}

	h.writeJSON(w, response)
}

func (h *handlers) handleTargetDetails(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	name, _ = url.PathUnescape(name)

	target := h.managers.GetBridge().GetTarget(name)
	if target == nil {
		h.writeError(w, http.StatusNotFound, "target not found")
		return
	}

	h.writeJSON(w, targetResponse(target))
}

func (h *handlers) handleTargetHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	name, _ = url.PathUnescape(name)

	target := h.managers.GetBridge().GetTarget(name)
	if target == nil {
		h.writeError(w, http.StatusNotFound, "target not found")
		return
	}

	status := target.GetStatus()
	resp := HealthResponse{
		Target:    target.Config.Name,
		Online:    status == bridge.StatusConnected,
		Status:    status.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := target.GetError(); err != nil {
		resp.Error = err.Error()
	}

	h.writeJSON(w, resp)
}

func (h *handlers) handleAllSymbols(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	name, _ = url.PathUnescape(name)

	target := h.managers.GetBridge().GetTarget(name)
	if target == nil {
		h.writeError(w, http.StatusNotFound, "target not found")
		return
	}

	values := target.GetValues()
	response := make(map[string]SymbolResponse)

	for i := range target.Config.Subscriptions {
		sub := &target.Config.Subscriptions[i]
		key := target.Config.Name + "." + sub.Symbol
		resp := SymbolResponse{
			Target: target.Config.Name,
			Symbol: sub.Symbol,
		}
		if v, ok := values[sub.Symbol]; ok {
			resp.Data = v.Data
			resp.Size = len(v.Data)
			resp.Timestamp = v.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		response[key] = resp
	}

	h.writeJSON(w, response)
}

func (h *handlers) handleSingleSymbol(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	name, _ = url.PathUnescape(name)

	// Symbol name comes from the wildcard (everything after /symbols/)
	symbol := chi.URLParam(r, "*")
	symbol, _ = url.PathUnescape(symbol)

	manager := h.managers.GetBridge()
	target := manager.GetTarget(name)
	if target == nil {
		h.writeError(w, http.StatusNotFound, "target not found")
		return
	}

	sub := subscriptionByName(target.Config, symbol)
	if sub == nil {
		h.writeError(w, http.StatusNotFound, "symbol not subscribed")
		return
	}

	values := target.GetValues()
	if v, ok := values[sub.Symbol]; ok {
		h.writeJSON(w, SymbolResponse{
			Target:    target.Config.Name,
			Symbol:    sub.Symbol,
			Data:      v.Data,
			Size:      len(v.Data),
			Timestamp: v.Timestamp.UTC().Format(time.RFC3339Nano),
		})
		return
	}

	// Not cached yet; read from the device directly
	data, err := manager.ReadSymbol(target.Config.Name, sub.Symbol, sub.Length)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.writeJSON(w, SymbolResponse{
		Target:    target.Config.Name,
		Symbol:    sub.Symbol,
		Data:      data,
		Size:      len(data),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func subscriptionByName(cfg *config.TargetConfig, symbol string) *config.SubscriptionConfig {
	for i := range cfg.Subscriptions {
		if cfg.Subscriptions[i].Symbol == symbol {
			return &cfg.Subscriptions[i]
		}
	}
	return nil
}

func (h *handlers) handleWrite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")
	name, _ = url.PathUnescape(name)

	manager := h.managers.GetBridge()
	target := manager.GetTarget(name)
	if target == nil {
		h.writeError(w, http.StatusNotFound, "target not found")
		return
	}

	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	now := func() string { return time.Now().UTC().Format(time.RFC3339) }

	if req.Target != target.Config.Name {
		w.WriteHeader(http.StatusBadRequest)
		h.writeJSON(w, WriteResponse{
			Target:    req.Target,
			Symbol:    req.Symbol,
			Success:   false,
			Error:     fmt.Sprintf("target name mismatch: URL has '%s', request has '%s'", target.Config.Name, req.Target),
			Timestamp: now(),
		})
		return
	}

	if target.GetStatus() != bridge.StatusConnected {
		w.WriteHeader(http.StatusServiceUnavailable)
		h.writeJSON(w, WriteResponse{
			Target:    req.Target,
			Symbol:    req.Symbol,
			Success:   false,
			Error:     "target not connected",
			Timestamp: now(),
		})
		return
	}

	if !manager.SymbolWritable(req.Target, req.Symbol) {
		w.WriteHeader(http.StatusForbidden)
		h.writeJSON(w, WriteResponse{
			Target:    req.Target,
			Symbol:    req.Symbol,
			Success:   false,
			Error:     "symbol is not writable",
			Timestamp: now(),
		})
		return
	}

	if len(req.Data) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		h.writeJSON(w, WriteResponse{
			Target:    req.Target,
			Symbol:    req.Symbol,
			Success:   false,
			Error:     "data is required",
			Timestamp: now(),
		})
		return
	}

	resultChan := make(chan error, 1)
	go func() {
		resultChan <- manager.WriteSymbol(req.Target, req.Symbol, req.Data)
	}()

	var writeErr error
	select {
	case writeErr = <-resultChan:
	case <-time.After(3 * time.Second):
		writeErr = fmt.Errorf("write timeout: target did not respond within 3 seconds")
	}

	resp := WriteResponse{
		Target:    req.Target,
		Symbol:    req.Symbol,
		Success:   writeErr == nil,
		Timestamp: now(),
	}
	if writeErr != nil {
		resp.Error = writeErr.Error()
		w.WriteHeader(http.StatusInternalServerError)
	}

	h.writeJSON(w, resp)
}
