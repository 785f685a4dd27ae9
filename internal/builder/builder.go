// Package builder runs the workflow-build pipeline. A session moves
// through discovery, configuration, building, validation, and
// documentation; each phase is a runner that reads the derived session
// state and emits operations, and the session manager folds those
// operations into the persisted state.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kode4food/timebox"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/llm"
	"github.com/weftlabs/weft/internal/registry"
	"github.com/weftlabs/weft/pkg/api"
	"github.com/weftlabs/weft/pkg/log"
)

type (
	// Runner executes one pipeline phase against the current session state.
	// Runners never persist anything themselves; they return the operations
	// to fold and whether the phase finished
	Runner interface {
		Run(context.Context, *api.SessionState) (*Result, error)
	}

	// Orchestrator drives sessions through the pipeline. Advance calls for
	// the same session are serialized; concurrent callers queue on a
	// per-session mutex rather than racing the runner
	Orchestrator struct {
		manager  *Manager
		registry registry.Service
		model    llm.Client
		cfg      *config.Config
		runners  map[api.Phase]Runner
		locks    sync.Map
	}
)

// New creates an orchestrator over the given session store and external
// collaborators
func New(
	store *timebox.Store, svc registry.Service, model llm.Client,
	cfg *config.Config,
) *Orchestrator {
	o := &Orchestrator{
		manager:  NewManager(store, &cfg.Build),
		registry: svc,
		model:    model,
		cfg:      cfg,
	}
	o.runners = map[api.Phase]Runner{
		api.PhaseDiscovery:     newDiscoveryRunner(o),
		api.PhaseConfiguration: newConfigurationRunner(o),
		api.PhaseBuilding:      newBuildingRunner(o),
		api.PhaseValidation:    newValidationRunner(o),
		api.PhaseDocumentation: newDocumentationRunner(o),
	}
	return o
}

// Manager exposes the session manager for supporting workers
func (o *Orchestrator) Manager() *Manager {
	return o.manager
}

// Initialize creates a new session in the discovery phase
func (o *Orchestrator) Initialize(
	ctx context.Context, req *api.CreateSessionRequest,
) (*api.SessionStatus, error) {
	if req.Prompt == "" {
		return nil, validationError(ErrEmptyPrompt)
	}
	raw := req.ID
	if raw == "" {
		raw = api.SessionID(uuid.NewString())
	}
	id := api.SanitizeID(raw)
	if id == "" {
		return nil, validationError(
			fmt.Errorf("%w: %q", ErrInvalidSessionID, req.ID),
		)
	}

	mu := o.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := o.manager.Create(ctx, id, req.Prompt, req.Owner)
	if err != nil {
		return nil, AsError(err)
	}
	slog.Info("Session created",
		log.SessionID(id),
		log.Phase(st.Phase))
	return st.Status(), nil
}

// Advance runs the session's current phase once. Terminal sessions return
// their status unchanged; a pending clarification blocks the advance until
// it is answered
func (o *Orchestrator) Advance(
	ctx context.Context, id api.SessionID,
) (*api.SessionStatus, error) {
	mu := o.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()
	return o.advance(ctx, id)
}

// SubmitClarification answers a pending question, folds the answer into
// the session prompt, and resumes the suspended phase
func (o *Orchestrator) SubmitClarification(
	ctx context.Context, id api.SessionID, req *api.ClarificationRequest,
) (*api.SessionStatus, error) {
	mu := o.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}

	pending := findClarification(st, req.QuestionID)
	if pending == nil {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrUnknownQuestion, req.QuestionID))
	}

	err = o.manager.Append(ctx, id,
		Op(api.EventTypeClarificationAnswered,
			api.ClarificationAnsweredEvent{
				QuestionID: req.QuestionID,
				Answer:     req.Answer,
			}),
		Op(api.EventTypePromptRewritten, api.PromptRewrittenEvent{
			Prompt: rewritePrompt(st.Prompt, pending.Question, req.Answer),
		}),
		// Explicit re-entry into the phase that asked the question
		Op(api.EventTypePhaseSet, api.PhaseSetEvent{
			Phase: pending.Phase,
		}),
	)
	if err != nil {
		return nil, AsError(err)
	}

	slog.Info("Clarification answered",
		log.SessionID(id),
		log.QuestionID(req.QuestionID))
	return o.advance(ctx, id)
}

// Status reports the poller projection of a session
func (o *Orchestrator) Status(
	ctx context.Context, id api.SessionID,
) (*api.SessionStatus, error) {
	st, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return st.Status(), nil
}

// StatusWithSequence returns the poller projection together with the next
// operation sequence for stream subscribers
func (o *Orchestrator) StatusWithSequence(
	ctx context.Context, id api.SessionID,
) (*api.SessionStatus, int64, error) {
	st, seq, err := o.manager.LoadWithSequence(ctx, id)
	if err != nil {
		return nil, 0, AsError(err)
	}
	return st.Status(), seq, nil
}

// State returns the full derived state of a session
func (o *Orchestrator) State(
	ctx context.Context, id api.SessionID,
) (*api.SessionState, error) {
	return o.load(ctx, id)
}

// ExportWorkflow returns the assembled workflow graph for a session
func (o *Orchestrator) ExportWorkflow(
	ctx context.Context, id api.SessionID,
) (*api.WorkflowExportResponse, error) {
	st, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Workflow == nil {
		return nil, validationError(fmt.Errorf("%w: %s", ErrNoWorkflow, id))
	}
	return &api.WorkflowExportResponse{
		SessionID: st.ID,
		Phase:     st.Phase,
		Workflow:  st.Workflow,
		Analysis:  st.Analysis,
	}, nil
}

// List returns the IDs of all persisted sessions
func (o *Orchestrator) List(ctx context.Context) ([]api.SessionID, error) {
	return o.manager.List(ctx)
}

// Close flushes all pending session operations
func (o *Orchestrator) Close() {
	o.manager.Close()
}

func (o *Orchestrator) advance(
	ctx context.Context, id api.SessionID,
) (*api.SessionStatus, error) {
	st, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if api.PhaseTransitions.IsTerminal(st.Phase) {
		return st.Status(), nil
	}
	if c := st.PendingClarification(); c != nil {
		return nil, conflictError(fmt.Errorf("%w: %s",
			ErrClarificationPending, c.QuestionID))
	}

	runner, ok := o.runners[st.Phase]
	if !ok {
		return nil, validationError(fmt.Errorf("%w: %s",
			ErrNoRunner, st.Phase))
	}

	started := time.Now()
	res, err := runner.Run(ctx, st)
	if err != nil {
		o.recordError(ctx, st, err)
		return nil, AsError(err)
	}

	ops := res.Operations
	if res.Done {
		ops = append(ops, Op(api.EventTypePhaseCompleted,
			api.PhaseCompletedEvent{Phase: st.Phase}))
	}
	if err := o.manager.Append(ctx, id, ops...); err != nil {
		return nil, AsError(err)
	}

	next, err := o.load(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Info("Phase advanced",
		log.SessionID(id),
		log.Phase(st.Phase),
		slog.String("next_phase", string(next.Phase)),
		slog.Bool("done", res.Done),
		slog.Duration("elapsed", time.Since(started)))
	return next.Status(), nil
}

func (o *Orchestrator) load(
	ctx context.Context, id api.SessionID,
) (*api.SessionState, error) {
	st, err := o.manager.Load(ctx, id)
	if err != nil {
		return nil, AsError(err)
	}
	return st, nil
}

// recordError persists the failure against the session so the state shows
// which phase broke and why. A failed record is only logged; the original
// error still reaches the caller
func (o *Orchestrator) recordError(
	ctx context.Context, st *api.SessionState, cause error,
) {
	err := o.manager.Append(ctx, st.ID,
		Op(api.EventTypeErrorRecorded, api.ErrorRecordedEvent{
			Phase: st.Phase,
			Error: cause.Error(),
		}),
	)
	if err != nil {
		slog.Error("Failed to record session error",
			log.SessionID(st.ID),
			log.Error(err))
	}
	slog.Error("Phase failed",
		log.SessionID(st.ID),
		log.Phase(st.Phase),
		log.Error(cause))
}

func (o *Orchestrator) sessionLock(id api.SessionID) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func findClarification(
	st *api.SessionState, id api.QuestionID,
) *api.Clarification {
	for _, c := range st.Pending {
		if c.QuestionID == id {
			return c
		}
	}
	return nil
}

// rewritePrompt folds an answered question back into the prompt so the
// phase re-runs against the enriched request instead of the ambiguous one
func rewritePrompt(prompt, question, answer string) string {
	return fmt.Sprintf("%s\n\nClarification: %s\nAnswer: %s",
		prompt, question, answer)
}
