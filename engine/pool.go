// Package engine multiplexes a small fixed set of browser identities across
// concurrent extraction requests. Each identity owns a persisted profile and
// a device fingerprint; identities the target sites keep bouncing to a login
// page have their profile wiped.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/platform"
)

// ErrPoolClosed is logged for requests arriving after Close.
var ErrPoolClosed = errors.New("engine: pool closed")

// PoolConfig holds configuration for the identity pool.
type PoolConfig struct {
	// Identities is N, the number of persisted browser identities.
	Identities int

	// MaxConcurrency is M, the number of simultaneous browser sessions.
	// It is clamped below Identities so no two sessions share a profile.
	MaxConcurrency int

	// Devices supplies fingerprints; identity i uses Devices[i].
	// Defaults to DefaultDevices.
	Devices []DeviceProfile

	// RequestTimeout bounds one extraction once a slot is held. Zero means
	// the extractor's own timeouts apply.
	RequestTimeout time.Duration
}

// Identity is one persisted browser identity. Its mutable state is guarded
// by the owning pool.
type Identity struct {
	Index   int
	Profile string
	Device  DeviceProfile

	history History
	busy    bool
	uses    int64
	resets  int64
}

// Pool assigns identities round-robin under a counting semaphore and keeps
// a rolling health record per identity.
type Pool struct {
	cfg      PoolConfig
	launcher Launcher
	profiles ProfileStore

	sem    *semaphore.Weighted
	active atomic.Int32
	resets atomic.Int64
	closed atomic.Bool

	mu         sync.Mutex // guards cursor and every Identity's mutable fields
	cursor     int
	identities []*Identity
}

// NewPool creates the identities and their profile directories.
func NewPool(cfg PoolConfig, launcher Launcher, profiles ProfileStore) (*Pool, error) {
	if len(cfg.Devices) == 0 {
		cfg.Devices = DefaultDevices
	}
	if cfg.Identities < 1 {
		return nil, fmt.Errorf("engine: need at least one identity, got %d", cfg.Identities)
	}
	if cfg.Identities > len(cfg.Devices) {
		return nil, fmt.Errorf("engine: %d identities but only %d device profiles",
			cfg.Identities, len(cfg.Devices))
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxConcurrency >= cfg.Identities && cfg.Identities > 1 {
		slog.Warn("max concurrency must stay below the identity count, clamping",
			"max_concurrency", cfg.MaxConcurrency, "identities", cfg.Identities)
		cfg.MaxConcurrency = cfg.Identities - 1
	}

	p := &Pool{
		cfg:        cfg,
		launcher:   launcher,
		profiles:   profiles,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		identities: make([]*Identity, cfg.Identities),
	}
	for i := range p.identities {
		dir := profiles.Dir(i)
		if err := profiles.Ensure(dir); err != nil {
			return nil, err
		}
		p.identities[i] = &Identity{Index: i, Profile: dir, Device: cfg.Devices[i]}
	}

	slog.Info("identity pool initialized",
		"identities", cfg.Identities, "max_concurrency", cfg.MaxConcurrency)
	return p, nil
}

// AcquireAndRun waits for a capacity slot, runs ex under the next identity
// and updates that identity's health. It always returns an envelope.
func (p *Pool) AcquireAndRun(ctx context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
	start := time.Now()

	if p.closed.Load() {
		slog.Warn("extraction rejected", "platform", ex.Name(), "url", req.URL, "error", ErrPoolClosed)
		return envelope.Failed(ex.WebName(), req.URL)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		slog.Warn("no capacity slot before deadline", "platform", ex.Name(), "url", req.URL, "error", err)
		return envelope.Failed(ex.WebName(), req.URL)
	}
	// Close may have started while this request was queued.
	if p.closed.Load() {
		p.sem.Release(1)
		slog.Warn("extraction rejected", "platform", ex.Name(), "url", req.URL, "error", ErrPoolClosed)
		return envelope.Failed(ex.WebName(), req.URL)
	}
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.sem.Release(1)
	}()

	id := p.next()
	env := p.run(ctx, id, ex, req)

	signal := healthSignal(ex, &env)
	p.finish(id, signal)

	slog.Info("extraction finished",
		"platform", ex.Name(),
		"code", env.Code,
		"cost", time.Since(start).Round(10*time.Millisecond),
		"url", req.URL,
		"worker", id.Profile,
		"signal", signal,
	)
	return env
}

// next picks the identity at the cursor, skipping busy ones, and advances
// the cursor past it. With M < N a free identity always exists.
func (p *Pool) next() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.identities)
	for i := 0; i < n; i++ {
		id := p.identities[(p.cursor+i)%n]
		if !id.busy {
			p.cursor = (id.Index + 1) % n
			id.busy = true
			id.uses++
			return id
		}
	}
	// Unreachable while M < N.
	id := p.identities[p.cursor]
	p.cursor = (p.cursor + 1) % n
	id.busy = true
	id.uses++
	return id
}

func (p *Pool) run(ctx context.Context, id *Identity, ex platform.Extractor, req models.ExtractRequest) (env models.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panicked",
				"platform", ex.Name(), "worker", id.Profile, "panic", r, "stack", string(debug.Stack()))
			env = envelope.Failed(ex.WebName(), req.URL)
		}
	}()

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	headless := true
	if req.Headless != nil {
		headless = *req.Headless
	}
	spec := LaunchSpec{
		ProfileDir: id.Profile,
		Device:     id.Device.WithHints(req.IdentityHints),
		Headless:   headless,
	}

	session, err := p.launcher.Open(ctx, spec)
	if err != nil {
		slog.Error("browser session failed to open", "worker", id.Profile, "error", err)
		return envelope.Failed(ex.WebName(), req.URL)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("browser session close failed", "worker", id.Profile, "error", err)
		}
	}()

	return ex.Extract(ctx, session.Page(), req.URL, req.DownloadMedia)
}

// healthSignal maps an envelope to an identity observation. Outcomes that
// say nothing about the identity yield SignalNone.
func healthSignal(ex platform.Extractor, env *models.Envelope) Signal {
	switch {
	case ex.SuspectsIdentity(env):
		return SignalWarning
	case env.Code == models.CodeSuccess, env.Code == models.CodeNotFound:
		return SignalNormal
	default:
		return SignalNone
	}
}

// finish records signal and resets the identity's profile after a full run
// of warnings. The identity stays busy until the reset is done.
func (p *Pool) finish(id *Identity, signal Signal) {
	p.mu.Lock()
	if signal != SignalNone {
		id.history.Push(signal)
	}
	compromised := id.history.Compromised()
	if compromised {
		id.history.Clear()
		id.resets++
	}
	p.mu.Unlock()

	if compromised {
		p.resets.Add(1)
		slog.Warn("identity compromised after consecutive warnings, resetting profile",
			"worker", id.Profile, "index", id.Index)
		if err := p.profiles.Reset(id.Profile); err != nil {
			slog.Error("profile reset failed", "worker", id.Profile, "error", err)
		}
	}

	p.mu.Lock()
	id.busy = false
	p.mu.Unlock()
}

// Available reports free capacity slots.
func (p *Pool) Available() int {
	return p.cfg.MaxConcurrency - int(p.active.Load())
}

// Stats returns a snapshot of the pool's state.
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := models.PoolStats{
		Workers:        len(p.identities),
		MaxConcurrency: p.cfg.MaxConcurrency,
		Active:         int(p.active.Load()),
		Available:      p.Available(),
		Resets:         p.resets.Load(),
		Identities:     make([]models.IdentityStat, len(p.identities)),
	}
	for i, id := range p.identities {
		hist := make([]string, 0, historyLen)
		for _, s := range id.history.Signals() {
			hist = append(hist, string(s))
		}
		stats.Identities[i] = models.IdentityStat{
			Index:   id.Index,
			Profile: id.Profile,
			Busy:    id.busy,
			Uses:    id.uses,
			Resets:  id.resets,
			History: hist,
		}
	}
	return stats
}

// Close stops admitting work and waits for in-flight extractions.
func (p *Pool) Close(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.sem.Acquire(ctx, int64(p.cfg.MaxConcurrency)); err != nil {
		return fmt.Errorf("engine: drain pool: %w", err)
	}
	p.sem.Release(int64(p.cfg.MaxConcurrency))
	slog.Info("identity pool drained")
	return nil
}
