package persist

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/omnibrowser/redix/internal/event"
)

// Key namespaces. Sequence keys are 8-byte big-endian, so lexicographic
// iteration order is append order.
const (
	seqPrefix = "s/"
	idPrefix  = "i/"
)

// BadgerConfig configures the Badger journal adapter.
type BadgerConfig struct {
	// Dir is the journal directory. Ignored when InMemory is set.
	Dir string

	// InMemory runs Badger without touching disk. Test use.
	InMemory bool

	// SyncWrites fsyncs each append. Slower, survives power loss.
	SyncWrites bool

	// AllowDegraded turns an open failure (corrupt dir, permissions,
	// another process holding the lock) into a memory-only journal
	// instead of an error. The runtime keeps working; durability is lost
	// until restart.
	AllowDegraded bool
}

// DefaultBadgerConfig returns the production configuration: synced writes,
// degraded mode allowed.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{Dir: dir, SyncWrites: true, AllowDegraded: true}
}

// InMemoryBadgerConfig returns a diskless configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// Badger is a journal adapter over BadgerDB. Each event is stored twice:
// under its sequence key (ordering) and under its ID key (append
// idempotency).
//
// Thread-safety: all methods are safe for concurrent use.
type Badger struct {
	mu       sync.Mutex
	db       *badger.DB
	fallback *Memory // non-nil in degraded mode
	nextSeq  uint64
	closed   bool
}

// OpenBadger opens (or creates) the journal. With AllowDegraded set, an
// open failure logs a warning and returns a working memory-only adapter.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(badgerSlog{})

	db, err := badger.Open(opts)
	if err != nil {
		if cfg.AllowDegraded {
			slog.Warn("badger journal unavailable, degrading to memory-only",
				"dir", cfg.Dir,
				"error", err)
			return &Badger{fallback: NewMemory(), nextSeq: 1}, nil
		}
		return nil, fmt.Errorf("open badger journal: %w", err)
	}

	b := &Badger{db: db, nextSeq: 1}
	if err := b.resumeSeq(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open badger journal: %w", err)
	}
	return b, nil
}

// Degraded reports whether the adapter fell back to memory-only mode.
func (b *Badger) Degraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fallback != nil
}

// resumeSeq continues numbering after the highest persisted sequence.
func (b *Badger) resumeSeq() error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration from just past the sequence namespace lands
		// on the highest sequence key.
		it.Seek([]byte(seqPrefix + "\xff\xff\xff\xff\xff\xff\xff\xff"))
		if it.ValidForPrefix([]byte(seqPrefix)) {
			key := it.Item().Key()
			b.nextSeq = binary.BigEndian.Uint64(key[len(seqPrefix):]) + 1
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	key := make([]byte, len(seqPrefix)+8)
	copy(key, seqPrefix)
	binary.BigEndian.PutUint64(key[len(seqPrefix):], seq)
	return key
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// Init implements Adapter.
func (b *Badger) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Append implements Adapter. Re-appending an already-journaled event ID is
// a no-op.
func (b *Badger) Append(ctx context.Context, ev event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.fallback != nil {
		return b.fallback.Append(ctx, ev)
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("badger append: marshal %s: %w", ev.ID, err)
	}

	wrote := false
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idKey(ev.ID)); err == nil {
			return nil // already journaled
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		seq := make([]byte, 8)
		binary.BigEndian.PutUint64(seq, b.nextSeq)
		if err := txn.Set(seqKey(b.nextSeq), value); err != nil {
			return err
		}
		if err := txn.Set(idKey(ev.ID), seq); err != nil {
			return err
		}
		wrote = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger append: %w", err)
	}
	if wrote {
		b.nextSeq++
	}
	return nil
}

// Load implements Adapter.
func (b *Badger) Load(ctx context.Context) ([]event.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if b.fallback != nil {
		return b.fallback.Load(ctx)
	}

	var out []event.Event
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(seqPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix([]byte(seqPrefix)); it.Next() {
			var ev event.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger load: %w", err)
	}
	return out, nil
}

// Truncate implements Adapter.
func (b *Badger) Truncate(ctx context.Context, keep int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.fallback != nil {
		return b.fallback.Truncate(ctx, keep)
	}
	if keep < 0 {
		keep = 0
	}

	type victim struct {
		seqKey []byte
		id     string
	}
	var victims []victim

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(seqPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.ValidForPrefix([]byte(seqPrefix)); it.Next() {
			n++
			if n <= keep {
				continue
			}
			var ev event.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			victims = append(victims, victim{seqKey: it.Item().KeyCopy(nil), id: ev.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger truncate: %w", err)
	}

	if len(victims) == 0 {
		return nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, v := range victims {
		if err := wb.Delete(v.seqKey); err != nil {
			return fmt.Errorf("badger truncate: %w", err)
		}
		if err := wb.Delete(idKey(v.id)); err != nil {
			return fmt.Errorf("badger truncate: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger truncate: %w", err)
	}

	first := victims[0].seqKey
	b.nextSeq = binary.BigEndian.Uint64(first[len(seqPrefix):])
	return nil
}

// Reset implements Adapter.
func (b *Badger) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.fallback != nil {
		return b.fallback.Reset(ctx)
	}

	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("badger reset: %w", err)
	}
	b.nextSeq = 1
	return nil
}

// Close implements Adapter. Idempotent.
func (b *Badger) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.fallback != nil {
		return b.fallback.Close()
	}
	return b.db.Close()
}

// badgerSlog routes Badger's internal logging to slog. Badger's info-level
// chatter (compaction, value log GC) lands at debug.
type badgerSlog struct{}

func (badgerSlog) Errorf(format string, args ...any) {
	slog.Error("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerSlog) Warningf(format string, args ...any) {
	slog.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerSlog) Infof(format string, args ...any) {
	slog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerSlog) Debugf(format string, args ...any) {
	slog.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
