package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/events"
	"github.com/weftlabs/weft/pkg/log"
)

type (
	// Executor manages session state persistence and operation sourcing
	Executor = timebox.Executor[*api.SessionState]

	// Aggregator aggregates session state from operations
	Aggregator = timebox.Aggregator[*api.SessionState]

	// Command runs against a session's current state and aggregator
	Command = timebox.Command[*api.SessionState]

	// Manager batches operations in front of the session store to reduce
	// write amplification. Phase transitions and critical operations flush
	// immediately; everything else is held until the batch size or the
	// auto-flush interval is reached.
	//
	// The manager assumes a single active writer per session ID; the
	// orchestrator serializes advance calls to uphold that
	Manager struct {
		exec      *Executor
		batchSize int
		interval  time.Duration
		mu        sync.Mutex
		pending   map[api.SessionID][]Operation
		timers    map[api.SessionID]*time.Timer
	}
)

// NewManager creates a session manager over the given store
func NewManager(store *timebox.Store, cfg *config.BuildConfig) *Manager {
	batchSize := cfg.FlushBatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultFlushBatchSize
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = config.DefaultFlushInterval
	}
	return &Manager{
		exec: timebox.NewExecutor(
			store, events.NewSessionState, events.SessionAppliers,
		),
		batchSize: batchSize,
		interval:  interval,
		pending:   map[api.SessionID][]Operation{},
		timers:    map[api.SessionID]*time.Timer{},
	}
}

// Create initializes a new session. Fails if the session already exists
func (m *Manager) Create(
	ctx context.Context, id api.SessionID, prompt, owner string,
) (*api.SessionState, error) {
	return m.execSession(ctx, id,
		func(st *api.SessionState, ag *Aggregator) error {
			if st.ID != "" {
				return fmt.Errorf("%w: %s", ErrSessionExists, id)
			}
			return events.Raise(ag, api.EventTypeSessionCreated,
				api.SessionCreatedEvent{
					SessionID: id,
					Prompt:    prompt,
					Owner:     owner,
				})
		},
	)
}

// Load returns the current derived state of a session, folding in any
// operations still sitting in the pending queue
func (m *Manager) Load(
	ctx context.Context, id api.SessionID,
) (*api.SessionState, error) {
	if _, err := m.Flush(ctx, id); err != nil {
		return nil, err
	}

	st, err := m.execSession(ctx, id,
		func(*api.SessionState, *Aggregator) error {
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if st.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return st, nil
}

// LoadWithSequence returns the derived state together with the next
// operation sequence, so stream subscribers can detect skew between the
// snapshot they received and the events that follow
func (m *Manager) LoadWithSequence(
	ctx context.Context, id api.SessionID,
) (*api.SessionState, int64, error) {
	if _, err := m.Flush(ctx, id); err != nil {
		return nil, 0, err
	}

	var seq int64
	st, err := m.execSession(ctx, id,
		func(_ *api.SessionState, ag *Aggregator) error {
			seq = ag.NextSequence()
			return nil
		},
	)
	if err != nil {
		return nil, 0, err
	}
	if st.ID == "" {
		return nil, 0, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return st, seq, nil
}

// Append queues operations for a session. The queue flushes immediately
// when any queued operation is critical or a phase transition, or when the
// batch size is reached; otherwise a timer flushes it after the configured
// interval
func (m *Manager) Append(
	ctx context.Context, id api.SessionID, ops ...Operation,
) error {
	if len(ops) == 0 {
		return nil
	}

	m.mu.Lock()
	m.pending[id] = append(m.pending[id], ops...)
	flushNow := len(m.pending[id]) >= m.batchSize
	for _, op := range ops {
		if op.IsCritical() {
			flushNow = true
			break
		}
	}
	if !flushNow {
		m.scheduleFlushLocked(id)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	_, err := m.Flush(ctx, id)
	return err
}

// Flush folds all pending operations for a session into the persisted
// state: reload, fold, store, clear
func (m *Manager) Flush(
	ctx context.Context, id api.SessionID,
) (*api.SessionState, error) {
	m.mu.Lock()
	ops := m.pending[id]
	delete(m.pending, id)
	if timer, ok := m.timers[id]; ok {
		timer.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()

	if len(ops) == 0 {
		return nil, nil
	}

	return m.execSession(ctx, id,
		func(st *api.SessionState, ag *Aggregator) error {
			for _, op := range ops {
				if err := events.Raise(ag, op.Type, op.Data); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Replace substitutes a session's derived state wholesale. Format
// normalization happens once here, at the persistence boundary, via the
// import applier
func (m *Manager) Replace(
	ctx context.Context, st *api.SessionState,
) error {
	_, err := m.execSession(ctx, st.ID,
		func(_ *api.SessionState, ag *Aggregator) error {
			return events.Raise(ag, api.EventTypeSessionImported,
				api.SessionImportedEvent{State: st})
		},
	)
	return err
}

// List returns the IDs of all persisted sessions
func (m *Manager) List(ctx context.Context) ([]api.SessionID, error) {
	ids, err := m.exec.GetStore().ListAggregates(
		ctx, events.SessionKey("*"),
	)
	if err != nil {
		return nil, err
	}
	res := make([]api.SessionID, 0, len(ids))
	for _, id := range ids {
		if len(id) >= 2 {
			res = append(res, api.SessionID(id[1]))
		}
	}
	return res, nil
}

// Close flushes every pending queue and stops all timers
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]api.SessionID, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.Flush(context.Background(), id); err != nil {
			slog.Error("Failed to flush session on close",
				log.SessionID(id),
				log.Error(err))
		}
	}

	m.mu.Lock()
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
}

// PendingCount reports the number of queued operations for a session
func (m *Manager) PendingCount(id api.SessionID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[id])
}

func (m *Manager) scheduleFlushLocked(id api.SessionID) {
	if _, ok := m.timers[id]; ok {
		return
	}
	m.timers[id] = time.AfterFunc(m.interval, func() {
		if _, err := m.Flush(context.Background(), id); err != nil {
			slog.Error("Timed session flush failed",
				log.SessionID(id),
				log.Error(err))
		}
	})
}

func (m *Manager) execSession(
	ctx context.Context, id api.SessionID, cmd Command,
) (*api.SessionState, error) {
	return m.exec.Exec(ctx, events.SessionKey(id), cmd)
}
