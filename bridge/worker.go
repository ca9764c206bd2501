package bridge

import (
	"context"
	"sync"
	"time"
)

// reconnectInterval is how often a worker checks whether its target
// needs a connection attempt.
const reconnectInterval = 5 * time.Second

// targetWorker supervises a single target in its own goroutine. Samples
// arrive over the client's read loop, so the worker only has to keep the
// connection alive.
type targetWorker struct {
	target  *ManagedTarget
	manager *Manager
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newTargetWorker(target *ManagedTarget, manager *Manager) *targetWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &targetWorker{
		target:  target,
		manager: manager,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the worker's supervision loop.
func (w *targetWorker) Start() {
	w.wg.Add(1)
	go w.superviseLoop()
}

// Stop halts the worker and waits for it to finish.
func (w *targetWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *targetWorker) superviseLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkConnection()
		}
	}
}

// checkConnection reconnects the target if it is enabled and not
// currently connected. A closed client surfaces as a failed request, so
// a dead connection is also detected here.
func (w *targetWorker) checkConnection() {
	target := w.target

	target.mu.RLock()
	status := target.Status
	enabled := target.Config.Enabled
	cli := target.Client
	target.mu.RUnlock()

	if !enabled {
		if status == StatusConnected {
			w.manager.disconnectTarget(target)
		}
		return
	}

	if status == StatusConnected && cli != nil {
		// Probe the connection. ReadState is cheap and exercises the
		// full request path.
		if _, _, err := cli.ReadState(); err != nil {
			w.manager.disconnectTarget(target)
			w.manager.setTargetError(target, err)
		}
		return
	}

	if status == StatusConnecting {
		return
	}

	// Disconnected or errored: try again (runs in this worker's goroutine)
	w.manager.connectTarget(target)
}
