// Package intake runs a single chat turn through extraction, merging, stage
// evaluation and reply composition.
package intake

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/ai"
	"github.com/spigell/hire-intake/internal/logger"
	"github.com/spigell/hire-intake/internal/metrics"
	"github.com/spigell/hire-intake/internal/reply"
	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/stage"
	"github.com/spigell/hire-intake/internal/store"
)

const DefaultHistoryLimit = 8

// ErrEmptyText is returned for a turn without any text.
var ErrEmptyText = errors.New("turn text is empty")

// PromptSource resolves the instruction prompt for an intent label. It never
// fails; a source that cannot load a prompt returns a fallback text.
type PromptSource interface {
	Get(ctx context.Context, label string) string
}

// Deps are the collaborators of an Engine. A nil Extractor, Machine or Logger
// is replaced with the default; a nil Store, Rewriter or Prompts disables
// state recovery, rewriting or policy lookup.
type Deps struct {
	Store     store.Store
	Rewriter  ai.Rewriter
	Prompts   PromptSource
	Metrics   *metrics.Collectors
	Logger    *zap.Logger
	Extractor *slots.Extractor
	Machine   *stage.Machine
}

// Config tunes an Engine.
type Config struct {
	// HistoryLimit bounds how many stored messages are scanned for state.
	HistoryLimit   int
	RewriteTimeout time.Duration
	Tone           string
}

// TurnInput is one user message plus the state the caller already knows.
// A nil Slots asks the engine to recover the previous state from the store.
type TurnInput struct {
	ConversationID string
	Text           string
	Stage          stage.Stage
	Slots          *slots.Slots
	IntentHint     string
}

// TurnResult is the outcome of a turn.
type TurnResult struct {
	Text        string        `json:"text"`
	Intent      string        `json:"intent"`
	Stage       stage.Stage   `json:"stage"`
	AskStage    stage.Stage   `json:"ask_stage"`
	Missing     []slots.Key   `json:"missing"`
	Suggestions []string      `json:"suggestions"`
	Slots       slots.Slots   `json:"slots"`
	Jobs        []slots.Job   `json:"jobs,omitempty"`
	Rewrite     reply.Outcome `json:"-"`
}

// Engine processes turns. It keeps no per-conversation state and is safe for
// concurrent use.
type Engine struct {
	store     store.Store
	rewriter  ai.Rewriter
	prompts   PromptSource
	metrics   *metrics.Collectors
	logger    *zap.Logger
	extractor *slots.Extractor
	machine   *stage.Machine
	cfg       Config
}

// New builds an Engine.
func New(deps Deps, cfg Config) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Extractor == nil {
		deps.Extractor = slots.NewExtractor(nil)
	}
	if deps.Machine == nil {
		deps.Machine = stage.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.RewriteTimeout <= 0 {
		cfg.RewriteTimeout = reply.DefaultRewriteTimeout
	}

	deps.Logger.Debug("intake engine ready",
		zap.Strings("rules", deps.Machine.RuleNames()),
		zap.Bool("rewrite", deps.Rewriter != nil),
		zap.Duration("rewrite_timeout", cfg.RewriteTimeout),
	)

	return &Engine{
		store:     deps.Store,
		rewriter:  deps.Rewriter,
		prompts:   deps.Prompts,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		extractor: deps.Extractor,
		machine:   deps.Machine,
		cfg:       cfg,
	}
}

// Turn processes one user message. It fails only on empty text or a done
// context; store and rewrite problems degrade to defaults.
func (e *Engine) Turn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return TurnResult{}, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	started := time.Now()
	defer e.metrics.TrackInFlight()()

	log := logger.WithFields(e.logger, zap.String(logger.FieldConversation, in.ConversationID))

	prev := e.previous(ctx, log, in)

	extracted := e.extractor.Extract(in.Text)
	merged := e.extractor.SmartMerge(prev.Slots, extracted, in.Text)
	plan := e.machine.Plan(prev.Stage, merged)

	log.Debug("turn evaluated",
		zap.Strings("extracted", logger.KeyNames(extracted.Present())),
		zap.Strings("merged", logger.KeyNames(merged.Present())),
		zap.String("ask_stage", plan.Ask.String()),
		zap.String(logger.FieldStage, plan.Stored.String()),
	)

	text, suggestions := reply.Build(plan.Ask, plan.Missing, merged, prev.Slots)
	intent := InferIntent(in.Text, in.IntentHint)

	polished := e.polish(ctx, log, text, intent)

	result := TurnResult{
		Text:        polished.Text,
		Intent:      intent,
		Stage:       plan.Stored,
		AskStage:    plan.Ask,
		Missing:     plan.Missing,
		Suggestions: suggestions,
		Slots:       merged,
		Rewrite:     polished.Outcome,
	}
	if jobs := e.extractor.ExtractJobs(in.Text); len(jobs) > 1 {
		result.Jobs = jobs
	}

	e.metrics.ObserveTurn(prev.Stage.String(), plan.Stored.String(), time.Since(started))
	return result, nil
}

// previous resolves the state a turn starts from. Caller-supplied slots win;
// otherwise the store is consulted and failures fall back to collect.
func (e *Engine) previous(ctx context.Context, log *zap.Logger, in TurnInput) State {
	if in.Slots != nil {
		return State{Stage: stage.Parse(string(in.Stage)), Slots: in.Slots.Clone()}
	}

	state, err := RecoverState(ctx, e.store, in.ConversationID, e.cfg.HistoryLimit)
	if err != nil {
		log.Warn("store unavailable, starting from empty state", zap.Error(err))
	}
	if in.Stage != "" {
		state.Stage = stage.Parse(string(in.Stage))
	}
	return state
}

func (e *Engine) polish(ctx context.Context, log *zap.Logger, text, intent string) reply.Polished {
	var policy string
	if e.rewriter != nil && e.prompts != nil {
		policy = e.prompts.Get(ctx, intent)
	}

	polished := reply.Polish(ctx, e.rewriter, text, e.cfg.Tone, policy, e.cfg.RewriteTimeout)
	if polished.Outcome == reply.OutcomeFallback {
		log.Warn("rewrite failed, using deterministic reply", zap.Error(polished.Err))
	}
	e.metrics.ObserveRewrite(string(polished.Outcome))
	return polished
}
