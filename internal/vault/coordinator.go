// Package vault coordinates access-counted reads of stored payloads. The
// Coordinator is the only writer of entry budgets and serializes all work on
// a single id so lookup, blob read and decrement happen as one step.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"statsvault/internal/blobstore"
	"statsvault/internal/models"
	"statsvault/internal/provision"
	"statsvault/internal/store"
)

// DefaultBudget is used by admin provision when no budget is configured.
const DefaultBudget int64 = 10

// Registry is the authoritative id → remaining budget table.
type Registry interface {
	LookupEntry(ctx context.Context, id string) (*models.Entry, error)
	DecrementEntry(ctx context.Context, id, tokenDigest string, now time.Time) (int64, error)
	InsertEntry(ctx context.Context, id string, budget int64, now time.Time) (*models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	ResetEntry(ctx context.Context, id string, budget int64, now time.Time) (int64, error)
	ListEntries(ctx context.Context) ([]models.Entry, error)
}

// Options configures a Coordinator.
type Options struct {
	DefaultBudget   int64
	MaxPayloadBytes int64
	PushPolicy      PushPolicy
	PurgeOnExhaust  bool
	Registerer      prometheus.Registerer
	Logger          *slog.Logger
	Now             func() time.Time
}

// FetchResult is returned by a successful fetch.
type FetchResult struct {
	ID        string
	Payload   []byte
	Remaining int64
	Token     string
}

// AdminResult is returned by Admin. Entries holds the affected entries; it
// is empty after a revoke.
type AdminResult struct {
	Command Command        `json:"command"`
	Entries []models.Entry `json:"entries"`
	Revoked bool           `json:"revoked,omitempty"`
}

// Coordinator implements push, fetch and admin on top of a registry and a
// blob store.
type Coordinator struct {
	registry Registry
	blobs    blobstore.Store
	locks    *keyedLocks
	metrics  *metrics
	logger   *slog.Logger
	now      func() time.Time

	defaultBudget  int64
	maxPayload     int64
	pushPolicy     PushPolicy
	purgeOnExhaust bool
}

// NewCoordinator wires a coordinator. Metrics are registered with
// opts.Registerer when it is set.
func NewCoordinator(registry Registry, blobs blobstore.Store, opts Options) (*Coordinator, error) {
	if registry == nil || blobs == nil {
		return nil, fmt.Errorf("registry and blob store are required")
	}
	policy, err := ParsePushPolicy(string(opts.PushPolicy))
	if err != nil {
		return nil, err
	}
	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	c := &Coordinator{
		registry:       registry,
		blobs:          blobs,
		locks:          newKeyedLocks(),
		metrics:        m,
		logger:         opts.Logger,
		now:            opts.Now,
		defaultBudget:  opts.DefaultBudget,
		maxPayload:     opts.MaxPayloadBytes,
		pushPolicy:     policy,
		purgeOnExhaust: opts.PurgeOnExhaust,
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "vault")
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.defaultBudget <= 0 {
		c.defaultBudget = DefaultBudget
	}
	if c.maxPayload <= 0 {
		c.maxPayload = blobstore.DefaultMaxPayloadBytes
	}
	return c, nil
}

// PushPolicy reports the active push policy.
func (c *Coordinator) PushPolicy() PushPolicy {
	return c.pushPolicy
}

// SyncMetrics recomputes the exhausted-entries gauge from the registry.
func (c *Coordinator) SyncMetrics(ctx context.Context) error {
	entries, err := c.registry.ListEntries(ctx)
	if err != nil {
		return err
	}
	exhausted := 0
	for _, e := range entries {
		if e.Exhausted() {
			exhausted++
		}
	}
	c.metrics.exhausted.Set(float64(exhausted))
	return nil
}

// Push stores payload under id, replacing any previous payload. Under the
// metered policy it also consumes one unit of budget. The payload is written
// before the charge, so a failed decrement leaves the new payload in place
// with the budget untouched and the caller sees the error.
func (c *Coordinator) Push(ctx context.Context, id string, payload []byte) (err error) {
	defer func() { c.metrics.observe("push", err) }()

	if err := blobstore.CheckSize(payload, c.maxPayload); err != nil {
		return err
	}

	unlock := c.locks.lock(id)
	defer unlock()

	entry, err := c.registry.LookupEntry(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if c.pushPolicy == PushMetered && entry.Exhausted() {
		return fmt.Errorf("entry %s: %w", id, store.ErrExhausted)
	}

	if err := c.blobs.Put(ctx, id, payload); err != nil {
		return fmt.Errorf("store payload %s: %w", id, err)
	}

	if c.pushPolicy == PushMetered {
		remaining, err := c.registry.DecrementEntry(ctx, id, "", c.now())
		if err != nil {
			return fmt.Errorf("charge push %s: %w", id, err)
		}
		if remaining == 0 {
			c.metrics.exhausted.Inc()
		}
	}

	c.logger.Debug("payload stored", "id", id, "bytes", len(payload), "policy", c.pushPolicy)
	return nil
}

// Fetch returns the payload for id and consumes one unit of its budget. A
// fetch that fails never consumes budget.
func (c *Coordinator) Fetch(ctx context.Context, id, token string) (result FetchResult, err error) {
	defer func() { c.metrics.observe("fetch", err) }()

	if strings.TrimSpace(token) == "" {
		return FetchResult{}, ErrInvalidToken
	}

	unlock := c.locks.lock(id)
	defer unlock()

	entry, err := c.registry.LookupEntry(ctx, id)
	if err != nil {
		return FetchResult{}, err
	}
	if entry == nil {
		return FetchResult{}, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if entry.Exhausted() {
		return FetchResult{}, fmt.Errorf("entry %s: %w", id, store.ErrExhausted)
	}

	payload, ok, err := c.blobs.Get(ctx, id)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read payload %s: %w", id, err)
	}
	if !ok {
		return FetchResult{}, fmt.Errorf("entry %s: %w", id, ErrNoPayload)
	}

	remaining, err := c.registry.DecrementEntry(ctx, id, blobstore.TokenDigest(token), c.now())
	if err != nil {
		return FetchResult{}, err
	}

	if remaining == 0 {
		c.metrics.exhausted.Inc()
		if c.purgeOnExhaust {
			if err := c.blobs.Delete(ctx, id); err != nil {
				c.logger.Warn("purge exhausted payload failed", "id", id, "error", err)
			}
		}
	}

	c.logger.Debug("payload fetched", "id", id, "remaining", remaining)
	return FetchResult{ID: id, Payload: payload, Remaining: remaining, Token: token}, nil
}

// Admin runs an administrative command against arg.
func (c *Coordinator) Admin(ctx context.Context, cmd Command, arg string) (result AdminResult, err error) {
	defer func() { c.metrics.observe("admin_"+cmd.String(), err) }()

	arg = strings.TrimSpace(arg)
	result = AdminResult{Command: cmd, Entries: []models.Entry{}}

	switch cmd {
	case CommandReset:
		entry, err := c.reset(ctx, arg)
		if err != nil {
			return result, err
		}
		result.Entries = append(result.Entries, *entry)
	case CommandRevoke:
		if err := c.revoke(ctx, arg); err != nil {
			return result, err
		}
		result.Revoked = true
	case CommandInspect:
		entries, err := c.inspect(ctx, arg)
		if err != nil {
			return result, err
		}
		result.Entries = entries
	case CommandProvision:
		entry, err := c.provision(ctx, arg)
		if err != nil {
			return result, err
		}
		result.Entries = append(result.Entries, *entry)
	default:
		return result, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
	}

	c.logger.Info("admin command", "command", cmd.String(), "arg", arg)
	return result, nil
}

func (c *Coordinator) reset(ctx context.Context, id string) (*models.Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidID)
	}
	unlock := c.locks.lock(id)
	defer unlock()

	before, err := c.registry.LookupEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if before == nil {
		return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	if _, err := c.registry.ResetEntry(ctx, id, 0, c.now()); err != nil {
		return nil, err
	}
	if before.Exhausted() {
		c.metrics.exhausted.Dec()
	}
	return c.describe(ctx, id)
}

func (c *Coordinator) revoke(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidID)
	}
	unlock := c.locks.lock(id)
	defer unlock()

	entry, err := c.registry.LookupEntry(ctx, id)
	if err != nil {
		return err
	}
	if err := c.blobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete payload %s: %w", id, err)
	}
	if err := c.registry.DeleteEntry(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if entry != nil && entry.Exhausted() {
		c.metrics.exhausted.Dec()
	}
	return nil
}

func (c *Coordinator) inspect(ctx context.Context, arg string) ([]models.Entry, error) {
	if arg == "" || strings.EqualFold(arg, "all") {
		entries, err := c.registry.ListEntries(ctx)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			ok, err := c.blobs.Exists(ctx, entries[i].ID)
			if err != nil {
				return nil, err
			}
			entries[i].HasPayload = ok
		}
		return entries, nil
	}

	unlock := c.locks.lock(arg)
	defer unlock()
	entry, err := c.describe(ctx, arg)
	if err != nil {
		return nil, err
	}
	return []models.Entry{*entry}, nil
}

func (c *Coordinator) provision(ctx context.Context, id string) (*models.Entry, error) {
	if id == "" {
		generated, err := provision.NewID(func(candidate string) (bool, error) {
			entry, err := c.registry.LookupEntry(ctx, candidate)
			return entry != nil, err
		})
		if err != nil {
			return nil, err
		}
		id = generated
	} else if err := provision.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}

	unlock := c.locks.lock(id)
	defer unlock()
	return c.registry.InsertEntry(ctx, id, c.defaultBudget, c.now())
}

// describe loads an entry and fills HasPayload. Callers hold the id lock.
func (c *Coordinator) describe(ctx context.Context, id string) (*models.Entry, error) {
	entry, err := c.registry.LookupEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	ok, err := c.blobs.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.HasPayload = ok
	return entry, nil
}
