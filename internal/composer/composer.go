// Package composer runs the resolution lifecycle for composed trees. Each
// widget key gets a session that moves idle -> resolving -> resolved or
// failed, caches the last output, and guarantees a stale resolution never
// overwrites a newer one.
package composer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tesselcraft/tessera/internal/checksum"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/resolver"
	"github.com/tesselcraft/tessera/internal/tree"
)

// State of a composition session.
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateResolved  State = "resolved"
	StateFailed    State = "failed"
)

// Snapshot is a session's externally visible output. On failure Tree holds
// the unresolved original, which is still renderable.
type Snapshot struct {
	WidgetKey  string                  `json:"widgetKey"`
	State      State                   `json:"state"`
	Tree       *tree.Node              `json:"tree,omitempty"`
	Channels   []models.ChannelBinding `json:"channels,omitempty"`
	Checksum   string                  `json:"checksum,omitempty"`
	Generation uint64                  `json:"generation"`
	ResolvedAt int64                   `json:"resolvedAt,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

type session struct {
	generation uint64
	checksum   string
	state      State
	snapshot   Snapshot
	deps       map[string]struct{}
}

// Composer owns the sessions. Refresh may be called concurrently for the
// same key; the generation counter decides which run's output sticks.
type Composer struct {
	resolver  *resolver.Resolver
	collector *resolver.Collector
	logger    *slog.Logger
	notify    func(widgetKey string, state State)

	mu       sync.Mutex
	sessions map[string]*session
}

func New(res *resolver.Resolver, col *resolver.Collector, logger *slog.Logger) *Composer {
	return &Composer{
		resolver:  res,
		collector: col,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// OnResolved registers the callback invoked after a refresh applies. Set it
// during wiring, before any Refresh runs.
func (c *Composer) OnResolved(fn func(widgetKey string, state State)) {
	c.notify = fn
}

// Refresh resolves root and applies the result to the session for widgetKey.
//
// Content equality is checked on the canonical serialized tree, so a refresh
// with unchanged content is a no-op returning the cached snapshot. When two
// refreshes race, the one that started last wins: the earlier run detects on
// completion that its generation is stale and discards its own result.
func (c *Composer) Refresh(ctx context.Context, widgetKey string, root *tree.Node) (Snapshot, error) {
	sum, err := treeChecksum(root)
	if err != nil {
		return Snapshot{}, err
	}

	gen, run := c.begin(widgetKey, sum)
	if !run {
		return c.Snapshot(widgetKey), nil
	}

	snap := Snapshot{
		WidgetKey:  widgetKey,
		Checksum:   sum,
		Generation: gen,
		ResolvedAt: time.Now().UnixMilli(),
	}

	resolved, rerr := c.resolver.Resolve(ctx, root)
	snap.Tree = resolved
	if rerr != nil {
		snap.State = StateFailed
		snap.Error = rerr.Error()
	} else {
		snap.State = StateResolved
		if channels, cerr := c.collector.Collect(ctx, root); cerr == nil {
			snap.Channels = channels
		} else {
			c.logger.Warn("channel collection failed",
				slog.String("widgetKey", widgetKey), slog.String("error", cerr.Error()))
		}
	}

	deps, derr := c.collector.Closure(ctx, root)
	if derr != nil {
		c.logger.Warn("dependency closure failed",
			slog.String("widgetKey", widgetKey), slog.String("error", derr.Error()))
	}

	if !c.finish(widgetKey, gen, snap, deps) {
		// A newer run superseded this one; its output, not ours, is current.
		c.logger.Debug("stale resolution discarded",
			slog.String("widgetKey", widgetKey), slog.Uint64("generation", gen))
		return c.Snapshot(widgetKey), nil
	}
	if c.notify != nil {
		c.notify(widgetKey, snap.State)
	}
	return c.Snapshot(widgetKey), rerr
}

// Snapshot returns the session's current output, or an idle placeholder when
// the key has never been refreshed.
func (c *Composer) Snapshot(widgetKey string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.sessions[widgetKey]; ok {
		return sess.snapshot
	}
	return Snapshot{WidgetKey: widgetKey, State: StateIdle}
}

// Invalidate marks every session that depends on changedKey, including the
// key's own session, so the next refresh re-resolves it. Cached output stays
// available until then.
func (c *Composer) Invalidate(changedKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, sess := range c.sessions {
		if key != changedKey {
			if _, dep := sess.deps[changedKey]; !dep {
				continue
			}
		}
		sess.checksum = ""
		sess.state = StateIdle
		sess.snapshot.State = StateIdle
	}
}

// Drop removes a session entirely, for deleted schemas.
func (c *Composer) Drop(widgetKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, widgetKey)
}

func (c *Composer) begin(widgetKey, sum string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[widgetKey]
	if !ok {
		sess = &session{state: StateIdle, snapshot: Snapshot{WidgetKey: widgetKey, State: StateIdle}}
		c.sessions[widgetKey] = sess
	}

	if sess.checksum == sum && (sess.state == StateResolved || sess.state == StateResolving) {
		return sess.generation, false
	}

	sess.generation++
	sess.checksum = sum
	sess.state = StateResolving
	sess.snapshot.State = StateResolving
	return sess.generation, true
}

func (c *Composer) finish(widgetKey string, gen uint64, snap Snapshot, deps []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[widgetKey]
	if !ok || sess.generation != gen {
		return false
	}
	sess.state = snap.State
	sess.snapshot = snap
	sess.deps = make(map[string]struct{}, len(deps))
	for _, d := range deps {
		sess.deps[d] = struct{}{}
	}
	return true
}

func treeChecksum(root *tree.Node) (string, error) {
	if root == nil {
		return checksum.Sum(nil), nil
	}
	raw, err := root.Canonical()
	if err != nil {
		return "", err
	}
	return checksum.Sum(raw), nil
}
