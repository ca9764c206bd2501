// Package bridge connects ADS targets to the configured publishers. It
// manages one client connection per target, keeps subscriptions alive,
// and aggregates pushed samples into batched change callbacks.
package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adslink/ads"
	"adslink/ams"
	"adslink/client"
	"adslink/config"
	"adslink/logging"
)

// ConnectionStatus represents the state of a target connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// SymbolValue is the last sample received for one subscribed symbol.
type SymbolValue struct {
	Symbol    string
	Data      []byte
	Timestamp time.Time
}

// ValueChange represents a symbol sample delivered by a target.
type ValueChange struct {
	Target    string
	Symbol    string
	Data      []byte
	Timestamp time.Time
}

// SampleStats tracks sample throughput for debugging.
type SampleStats struct {
	LastSampleTime time.Time
	SamplesSeen    int
	ActiveHandles  int
	PerSecond      float64
	LastError      error
}

// ManagedTarget represents an ADS target under management.
type ManagedTarget struct {
	Config     *config.TargetConfig
	Client     *client.Client
	Device     *client.DeviceInfo
	Values     map[string]*SymbolValue
	Handles    map[string]ads.NotificationHandle
	Status     ConnectionStatus
	LastError  error
	LastSample time.Time
	mu         sync.RWMutex
}

// GetStatus returns the current connection status thread-safely.
func (t *ManagedTarget) GetStatus() ConnectionStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetError returns the last error thread-safely.
func (t *ManagedTarget) GetError() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.LastError
}

// GetValues returns a copy of the current symbol values.
func (t *ManagedTarget) GetValues() map[string]*SymbolValue {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make(map[string]*SymbolValue, len(t.Values))
	for k, v := range t.Values {
		result[k] = v
	}
	return result
}

// GetDevice returns the target's device identity.
func (t *ManagedTarget) GetDevice() *client.DeviceInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Device
}

// GetLastSample returns when the target last delivered a sample.
func (t *ManagedTarget) GetLastSample() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.LastSample
}

// subscriptionFor returns the subscription config for a symbol, if any.
func (t *ManagedTarget) subscriptionFor(symbol string) *config.SubscriptionConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.Config.Subscriptions {
		if t.Config.Subscriptions[i].Symbol == symbol {
			return &t.Config.Subscriptions[i]
		}
	}
	return nil
}

// Manager manages multiple target connections and their subscriptions.
type Manager struct {
	targets map[string]*ManagedTarget
	workers map[string]*targetWorker
	mu      sync.RWMutex

	batchInterval time.Duration

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Callbacks
	onChange       func()
	onValueChange  func(changes []ValueChange)
	onHealthChange func(target string, online bool, status, errMsg string)

	// Batched update channels
	changeChan  chan []ValueChange
	statusDirty int32

	// Aggregated stats
	lastStats SampleStats
	statsMu   sync.RWMutex
}

// NewManager creates a new bridge manager.
func NewManager() *Manager {
	return &Manager{
		targets:       make(map[string]*ManagedTarget),
		workers:       make(map[string]*targetWorker),
		batchInterval: 100 * time.Millisecond,
		changeChan:    make(chan []ValueChange, 100),
	}
}

// SetOnChange sets a callback that fires when target status changes.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// SetOnValueChange sets a callback that fires when symbol values change.
func (m *Manager) SetOnValueChange(fn func(changes []ValueChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onValueChange = fn
}

// SetOnHealthChange sets a callback that fires when a target goes online
// or offline.
func (m *Manager) SetOnHealthChange(fn func(target string, online bool, status, errMsg string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onHealthChange = fn
}

// markStatusDirty signals that status consumers need a refresh.
func (m *Manager) markStatusDirty() {
	atomic.StoreInt32(&m.statusDirty, 1)
}

// sendChanges sends value changes to the aggregator channel.
func (m *Manager) sendChanges(changes []ValueChange) {
	select {
	case m.changeChan <- changes:
	default:
		// Channel full, drop oldest and retry
		select {
		case <-m.changeChan:
		default:
		}
		select {
		case m.changeChan <- changes:
		default:
		}
	}
}

// notifyHealth fires the health callback, if one is set.
func (m *Manager) notifyHealth(target string, online bool, status, errMsg string) {
	m.mu.RLock()
	fn := m.onHealthChange
	m.mu.RUnlock()
	if fn != nil {
		fn(target, online, status, errMsg)
	}
}

// AddTarget adds a target to management.
func (m *Manager) AddTarget(cfg *config.TargetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.targets[cfg.Name]; exists {
		return nil // Already exists
	}

	target := &ManagedTarget{
		Config:  cfg,
		Status:  StatusDisconnected,
		Values:  make(map[string]*SymbolValue),
		Handles: make(map[string]ads.NotificationHandle),
	}
	m.targets[cfg.Name] = target

	// If manager is running, start a worker for this target
	if m.running {
		worker := newTargetWorker(target, m)
		m.workers[cfg.Name] = worker
		worker.Start()
	}

	return nil
}

// RemoveTarget removes a target from management and disconnects it.
func (m *Manager) RemoveTarget(name string) error {
	m.mu.Lock()
	target, exists := m.targets[name]
	worker := m.workers[name]
	if exists {
		delete(m.targets, name)
		delete(m.workers, name)
	}
	m.mu.Unlock()

	// Stop worker first (outside lock)
	if worker != nil {
		worker.Stop()
	}

	if exists {
		m.disconnectTarget(target)
	}

	m.markStatusDirty()
	return nil
}

// GetTarget returns the managed target with the given name.
func (m *Manager) GetTarget(name string) *ManagedTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.targets[name]
}

// ListTargets returns all managed targets.
func (m *Manager) ListTargets() []*ManagedTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ManagedTarget, 0, len(m.targets))
	for _, target := range m.targets {
		result = append(result, target)
	}
	return result
}

// Connect establishes a connection to the named target in the background.
func (m *Manager) Connect(name string) error {
	m.mu.RLock()
	target, exists := m.targets[name]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("target not found: %s", name)
	}

	go m.connectTarget(target)
	return nil
}

// Disconnect closes the connection to the named target.
func (m *Manager) Disconnect(name string) error {
	m.mu.RLock()
	target, exists := m.targets[name]
	m.mu.RUnlock()

	if !exists {
		return nil
	}

	m.disconnectTarget(target)
	return nil
}

// disconnectTarget tears down subscriptions and closes the client.
func (m *Manager) disconnectTarget(target *ManagedTarget) {
	target.mu.Lock()
	cli := target.Client
	handles := target.Handles
	name := target.Config.Name
	target.Client = nil
	target.Handles = make(map[string]ads.NotificationHandle)
	target.Status = StatusDisconnected
	target.LastError = nil
	target.Device = nil
	target.mu.Unlock()

	if cli != nil {
		// Best-effort teardown; the device drops notifications for a
		// closed port either way.
		for _, h := range handles {
			cli.Unsubscribe(h)
		}
		cli.Close()
		logging.DebugLog("bridge", "%s: disconnected", name)
	}

	m.markStatusDirty()
	m.notifyHealth(name, false, StatusDisconnected.String(), "")
}

// connectTarget establishes a connection and subscribes the configured
// symbols. Runs in a worker or background goroutine.
func (m *Manager) connectTarget(target *ManagedTarget) error {
	target.mu.Lock()
	if target.Status == StatusConnecting || target.Status == StatusConnected {
		target.mu.Unlock()
		return nil
	}
	target.Status = StatusConnecting
	target.LastError = nil
	cfg := target.Config
	target.mu.Unlock()
	m.markStatusDirty()

	opts := []client.Option{}
	if cfg.NetId != "" {
		netId, err := ams.ParseNetId(cfg.NetId)
		if err != nil {
			m.setTargetError(target, fmt.Errorf("invalid net id %q: %w", cfg.NetId, err))
			return err
		}
		opts = append(opts, client.WithTargetNetId(netId))
	}
	if cfg.Port != 0 {
		opts = append(opts, client.WithTargetPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, client.WithTimeout(cfg.Timeout))
	}

	cli, err := client.Dial(cfg.Address, opts...)
	if err != nil {
		m.setTargetError(target, err)
		return err
	}

	// Identity is informational; a device that refuses the request can
	// still serve subscriptions.
	var device *client.DeviceInfo
	if info, err := cli.ReadDeviceInfo(); err == nil {
		device = &info
	}

	target.mu.Lock()
	target.Client = cli
	target.Device = device
	target.Status = StatusConnected
	target.mu.Unlock()
	m.markStatusDirty()

	logging.DebugLog("bridge", "%s: connected to %s", cfg.Name, cfg.Address)
	m.notifyHealth(cfg.Name, true, StatusConnected.String(), "")

	// Subscribe configured symbols. A symbol that fails to resolve is
	// logged and skipped so the rest still flows.
	for i := range cfg.Subscriptions {
		sub := &cfg.Subscriptions[i]
		if err := m.subscribeSymbol(target, cli, sub); err != nil {
			logging.DebugError("bridge", fmt.Sprintf("%s: subscribe %s", cfg.Name, sub.Symbol), err)
		}
	}

	return nil
}

// setTargetError records a connection failure on the target.
func (m *Manager) setTargetError(target *ManagedTarget, err error) {
	target.mu.Lock()
	target.Status = StatusError
	target.LastError = err
	name := target.Config.Name
	target.mu.Unlock()
	m.markStatusDirty()
	m.notifyHealth(name, false, StatusError.String(), err.Error())
}

// subscribeSymbol registers one device notification and wires its samples
// into the change aggregator.
func (m *Manager) subscribeSymbol(target *ManagedTarget, cli *client.Client, sub *config.SubscriptionConfig) error {
	opts := client.DefaultSubscribeOptions()
	if sub.Mode == config.SubscriptionModeCyclic {
		opts.Mode = ads.TransServerCycle
	}
	if sub.CycleTime > 0 {
		opts.CycleTime = sub.CycleTime
	}
	if sub.MaxDelay > 0 {
		opts.MaxDelay = sub.MaxDelay
	}

	targetName := target.Config.Name
	symbol := sub.Symbol

	handle, err := cli.SubscribeSymbol(symbol, sub.Length, opts, func(s ads.TimestampedSample) {
		ts := s.Timestamp.Time()
		target.mu.Lock()
		target.Values[symbol] = &SymbolValue{
			Symbol:    symbol,
			Data:      s.Data,
			Timestamp: ts,
		}
		target.LastSample = ts
		target.mu.Unlock()

		m.sendChanges([]ValueChange{{
			Target:    targetName,
			Symbol:    symbol,
			Data:      s.Data,
			Timestamp: ts,
		}})
	})
	if err != nil {
		return err
	}

	target.mu.Lock()
	target.Handles[symbol] = handle
	target.mu.Unlock()
	return nil
}

// Start begins background supervision for all targets.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})

	// Start workers for all existing targets
	for name, target := range m.targets {
		worker := newTargetWorker(target, m)
		m.workers[name] = worker
		worker.Start()
	}
	m.mu.Unlock()

	// Start the batched update loop
	m.wg.Add(1)
	go m.batchedUpdateLoop()

	// Start the stats aggregator
	m.wg.Add(1)
	go m.statsAggregatorLoop()
}

// Stop halts all supervision and disconnects everything.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)

	workers := make([]*targetWorker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.workers = make(map[string]*targetWorker)
	m.mu.Unlock()

	// Stop workers outside of lock
	for _, w := range workers {
		w.Stop()
	}

	m.wg.Wait()

	m.DisconnectAll()
}

// batchedUpdateLoop aggregates changes and fires callbacks at a
// controlled rate.
func (m *Manager) batchedUpdateLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.batchInterval)
	defer ticker.Stop()

	var pendingChanges []ValueChange

	for {
		select {
		case <-m.stopChan:
			// Flush any remaining changes
			if len(pendingChanges) > 0 {
				m.flushValueChanges(pendingChanges)
			}
			return

		case changes := <-m.changeChan:
			pendingChanges = append(pendingChanges, changes...)

		case <-ticker.C:
			if atomic.CompareAndSwapInt32(&m.statusDirty, 1, 0) {
				m.mu.RLock()
				fn := m.onChange
				m.mu.RUnlock()
				if fn != nil {
					fn()
				}
			}

			if len(pendingChanges) > 0 {
				m.flushValueChanges(pendingChanges)
				pendingChanges = nil
			}
		}
	}
}

// flushValueChanges calls the value change callback with accumulated changes.
func (m *Manager) flushValueChanges(changes []ValueChange) {
	m.mu.RLock()
	fn := m.onValueChange
	m.mu.RUnlock()
	if fn != nil && len(changes) > 0 {
		fn(changes)
	}
}

// statsAggregatorLoop periodically aggregates stats from all targets.
func (m *Manager) statsAggregatorLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.aggregateStats()
		}
	}
}

func (m *Manager) aggregateStats() {
	targets := m.ListTargets()

	stats := SampleStats{}
	for _, t := range targets {
		t.mu.RLock()
		stats.SamplesSeen += len(t.Values)
		stats.ActiveHandles += len(t.Handles)
		if t.LastSample.After(stats.LastSampleTime) {
			stats.LastSampleTime = t.LastSample
		}
		if t.LastError != nil {
			stats.LastError = t.LastError
		}
		t.mu.RUnlock()
	}

	m.statsMu.Lock()
	m.lastStats = stats
	m.statsMu.Unlock()
}

// GetSampleStats returns the last aggregated stats.
func (m *Manager) GetSampleStats() SampleStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.lastStats
}

// ReadSymbol reads a symbol's current value from a connected target.
func (m *Manager) ReadSymbol(targetName, symbol string, length uint32) ([]byte, error) {
	m.mu.RLock()
	target, exists := m.targets[targetName]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("target not found: %s", targetName)
	}

	target.mu.RLock()
	cli := target.Client
	status := target.Status
	target.mu.RUnlock()

	if cli == nil || status != StatusConnected {
		return nil, fmt.Errorf("target not connected: %s", targetName)
	}

	return cli.ReadSymbol(symbol, length)
}

// WriteSymbol writes raw bytes to a symbol on a connected target.
func (m *Manager) WriteSymbol(targetName, symbol string, data []byte) error {
	m.mu.RLock()
	target, exists := m.targets[targetName]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("target not found: %s", targetName)
	}

	target.mu.RLock()
	cli := target.Client
	status := target.Status
	target.mu.RUnlock()

	if cli == nil || status != StatusConnected {
		return fmt.Errorf("target not connected: %s", targetName)
	}

	return cli.WriteSymbol(symbol, data)
}

// SymbolWritable reports whether a symbol is configured for writes. Only
// subscribed symbols are writable through the bridge.
func (m *Manager) SymbolWritable(targetName, symbol string) bool {
	m.mu.RLock()
	target, exists := m.targets[targetName]
	m.mu.RUnlock()

	if !exists {
		return false
	}
	return target.subscriptionFor(symbol) != nil
}

// LoadFromConfig adds all targets from configuration.
func (m *Manager) LoadFromConfig(cfg *config.Config) {
	for i := range cfg.Targets {
		m.AddTarget(&cfg.Targets[i])
	}
}

// ConnectEnabled connects all targets marked as enabled.
func (m *Manager) ConnectEnabled() {
	m.mu.RLock()
	targets := make([]*ManagedTarget, 0)
	for _, target := range m.targets {
		if target.Config.Enabled {
			targets = append(targets, target)
		}
	}
	m.mu.RUnlock()

	for _, target := range targets {
		go m.connectTarget(target)
	}
}

// DisconnectAll disconnects all targets.
func (m *Manager) DisconnectAll() {
	m.mu.RLock()
	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		m.Disconnect(name)
	}
}

// GetAllCurrentValues returns all currently cached symbol values for all
// targets. Used for the initial publish when a broker connects.
func (m *Manager) GetAllCurrentValues() []ValueChange {
	targets := m.ListTargets()

	var results []ValueChange
	for _, target := range targets {
		target.mu.RLock()
		name := target.Config.Name
		for symbol, val := range target.Values {
			results = append(results, ValueChange{
				Target:    name,
				Symbol:    symbol,
				Data:      val.Data,
				Timestamp: val.Timestamp,
			})
		}
		target.mu.RUnlock()
	}
	return results
}
