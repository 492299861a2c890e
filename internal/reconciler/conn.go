package reconciler

import (
	"context"
	"errors"
	"time"
)

// ConnState tracks the stream connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Dialer opens a stream connection.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is an open stream connection. Close must be safe to call concurrently
// with ReadMessage and more than once.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// State returns the current connection state.
func (r *Reconciler) State() ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Connected reports whether the stream is currently open.
func (r *Reconciler) Connected() bool {
	return r.State() == StateConnected
}

// Run connects to the stream and keeps reconnecting after every loss, waiting
// the reconnect delay between attempts. Canonical state is kept across
// disconnects. Cancelling ctx tears the reconciler down: the open connection
// is closed, a pending reconnect is abandoned and no observer is called
// afterwards. Run returns nil once ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	if r.url == "" {
		return errors.New("reconciler: no stream url")
	}
	if r.stopped.Load() {
		return errors.New("reconciler: already torn down")
	}

	stop := context.AfterFunc(ctx, r.teardown)
	defer func() {
		stop()
		r.teardown()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		r.setState(StateConnecting)
		conn, err := r.dialer.Dial(ctx, r.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn("stream connect failed", "url", r.url, "error", err)
		} else {
			r.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return nil
		}

		r.setState(StateDisconnected)
		r.logger.Info("stream disconnected, scheduling reconnect", "url", r.url, "delay", r.delay)
		if !r.wait(ctx, r.delay) {
			return nil
		}
	}
}

// serve reads frames until the connection fails or ctx is done.
func (r *Reconciler) serve(ctx context.Context, conn Conn) {
	r.mu.Lock()
	if r.stopped.Load() {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.conn = conn
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
		conn.Close()
	}()

	r.setState(StateConnected)
	r.logger.Info("stream connected", "url", r.url)

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("stream read failed", "url", r.url, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		_ = r.HandleRaw(data)
	}
}

// teardown marks the reconciler stopped and closes any open connection.
func (r *Reconciler) teardown() {
	r.stopped.Store(true)

	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.state = StateDisconnected
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (r *Reconciler) setState(s ConnState) {
	r.mu.Lock()
	if r.stopped.Load() || r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	r.mu.Unlock()

	r.obsMu.RLock()
	fns := r.onState
	r.obsMu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
