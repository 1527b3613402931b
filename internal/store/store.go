// Package store keeps conferences in a key-value store whose writes only
// become durable on Commit.
//
// A Tx buffers every Set in memory and hands the whole batch to the Backend
// on Commit. Backends must apply a batch atomically, so a Tx that is
// abandoned before Commit (including by a crash) leaves no trace.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Separator joins a folder name and a key.
const Separator = "/"

var (
	ErrNotFound   = errors.New("conference not found")
	ErrInvalidKey = errors.New("invalid key")
	ErrClosed     = errors.New("transaction closed")
)

type Backend interface {
	// Load returns the committed conference stored under key.
	Load(ctx context.Context, key string) (conference.Conference, bool, error)
	// Keys returns the committed keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Apply persists all writes, or none of them.
	Apply(ctx context.Context, txID string, writes map[string]conference.Conference) error
	Close() error
}

type Tx struct {
	backend Backend
	tracer  trace.Tracer
	pending map[string]conference.Conference
	closed  bool
}

// Open starts a transaction against backend.
func Open(backend Backend) *Tx {
	return &Tx{
		backend: backend,
		tracer:  otel.Tracer("github.com/dannyrandall/conferences/internal/store"),
		pending: make(map[string]conference.Conference),
	}
}

// Root returns the top-level container.
func (t *Tx) Root() *Folder {
	return &Folder{tx: t}
}

// Folder returns the container named name. Folders exist implicitly as soon
// as a key is stored in them.
func (t *Tx) Folder(name string) *Folder {
	return &Folder{tx: t, name: name}
}

func (t *Tx) Get(ctx context.Context, key string) (conference.Conference, error) {
	return t.Root().Get(ctx, key)
}

func (t *Tx) Set(key string, c conference.Conference) error {
	return t.Root().Set(key, c)
}

// Pending returns the number of writes waiting for Commit.
func (t *Tx) Pending() int {
	return len(t.pending)
}

// Commit makes every pending write durable. The transaction stays usable
// afterwards.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return ErrClosed
	}
	if len(t.pending) == 0 {
		return nil
	}

	txID := ksuid.New().String()
	ctx, span := t.tracer.Start(ctx, "store.Commit", trace.WithAttributes(
		attribute.String("store.tx_id", txID),
		attribute.Int("store.writes", len(t.pending)),
	))
	defer span.End()

	if err := t.backend.Apply(ctx, txID, t.pending); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit %s: %w", txID, err)
	}

	log.Debug().Str("tx_id", txID).Int("writes", len(t.pending)).Msg("Committed transaction")
	t.pending = make(map[string]conference.Conference)
	return nil
}

// Abort discards pending writes and closes the transaction.
func (t *Tx) Abort() {
	if !t.closed && len(t.pending) > 0 {
		log.Debug().Int("writes", len(t.pending)).Msg("Aborting transaction")
	}
	t.pending = nil
	t.closed = true
}

// Folder is a namespace of keys inside a transaction. The root folder has
// an empty name. Keys never contain Separator, so an entry of the root and
// an entry of a named folder cannot collide.
type Folder struct {
	tx   *Tx
	name string
}

func (f *Folder) Name() string { return f.name }

func (f *Folder) prefix() (string, error) {
	if f.name == "" {
		return "", nil
	}
	if strings.Contains(f.name, Separator) {
		return "", fmt.Errorf("%w: folder name %q contains %q", ErrInvalidKey, f.name, Separator)
	}
	return f.name + Separator, nil
}

func (f *Folder) key(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, Separator) {
		return "", fmt.Errorf("%w: key %q contains %q", ErrInvalidKey, key, Separator)
	}
	prefix, err := f.prefix()
	if err != nil {
		return "", err
	}
	return prefix + key, nil
}

// Get returns the conference stored under key, preferring an uncommitted
// write from the same transaction.
func (f *Folder) Get(ctx context.Context, key string) (conference.Conference, error) {
	if f.tx.closed {
		return conference.Conference{}, ErrClosed
	}

	full, err := f.key(key)
	if err != nil {
		return conference.Conference{}, err
	}

	if c, ok := f.tx.pending[full]; ok {
		return c, nil
	}

	c, ok, err := f.tx.backend.Load(ctx, full)
	switch {
	case err != nil:
		return conference.Conference{}, fmt.Errorf("load %q: %w", full, err)
	case !ok:
		return conference.Conference{}, fmt.Errorf("%w: %q", ErrNotFound, full)
	}
	return c, nil
}

// Set stages c under key. Nothing is written until Commit.
func (f *Folder) Set(key string, c conference.Conference) error {
	if f.tx.closed {
		return ErrClosed
	}

	full, err := f.key(key)
	if err != nil {
		return err
	}

	f.tx.pending[full] = c
	return nil
}

// Keys lists the keys of the folder, committed and pending, without the
// folder prefix. Entries of named folders are not keys of the root.
func (f *Folder) Keys(ctx context.Context) ([]string, error) {
	if f.tx.closed {
		return nil, ErrClosed
	}

	prefix, err := f.prefix()
	if err != nil {
		return nil, err
	}

	names, err := f.tx.names(ctx, prefix)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.Contains(name, Separator) {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

// Folders lists the names of the folders holding at least one committed or
// pending entry.
func (t *Tx) Folders(ctx context.Context) ([]string, error) {
	if t.closed {
		return nil, ErrClosed
	}

	names, err := t.names(ctx, "")
	if err != nil {
		return nil, err
	}

	var folders []string
	for _, name := range names {
		folder, _, nested := strings.Cut(name, Separator)
		if nested && (len(folders) == 0 || folders[len(folders)-1] != folder) {
			folders = append(folders, folder)
		}
	}
	return folders, nil
}

// names returns the committed and pending keys starting with prefix, with
// the prefix removed, sorted.
func (t *Tx) names(ctx context.Context, prefix string) ([]string, error) {
	committed, err := t.backend.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	seen := make(map[string]struct{}, len(committed)+len(t.pending))
	for _, k := range committed {
		seen[k] = struct{}{}
	}
	for k := range t.pending {
		if strings.HasPrefix(k, prefix) {
			seen[k] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(names)
	return names, nil
}
