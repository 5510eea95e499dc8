package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/logger"
	"github.com/spigell/hire-intake/internal/slots"
	"github.com/spigell/hire-intake/internal/stage"
	"github.com/spigell/hire-intake/internal/store"
)

const (
	defaultContextLimit = 8
	summaryRunes        = 400
)

// scope identifies who is talking on which channel. It is read from headers.
type scope struct {
	EntityID string `header:"entity-id" validate:"required"`
	Platform string `header:"platform" validate:"required"`
	ThreadID string `header:"thread-id" validate:"required"`
	UserID   string `header:"user-id" validate:"required"`
}

func scopeFromHeaders(r *http.Request) scope {
	return scope{
		EntityID: strings.TrimSpace(r.Header.Get("entity-id")),
		Platform: strings.TrimSpace(r.Header.Get("platform")),
		ThreadID: strings.TrimSpace(r.Header.Get("thread-id")),
		UserID:   strings.TrimSpace(r.Header.Get("user-id")),
	}
}

type turnMeta struct {
	Stage  string         `json:"stage"`
	Slots  map[string]any `json:"slots"`
	Intent string         `json:"intent" validate:"max=64"`
}

type turnRequest struct {
	CID  string   `json:"cid"`
	Text string   `json:"text" validate:"required,max=4000"`
	Meta turnMeta `json:"meta"`
}

type turnResponseMeta struct {
	Slots    slots.Slots `json:"slots"`
	Missing  []slots.Key `json:"missing"`
	AskStage stage.Stage `json:"ask_stage"`
}

type turnResponse struct {
	OK          bool             `json:"ok"`
	CID         string           `json:"cid"`
	Text        string           `json:"text"`
	Intent      string           `json:"intent"`
	Stage       stage.Stage      `json:"stage"`
	Suggestions []string         `json:"suggestions"`
	Meta        turnResponseMeta `json:"meta"`
	Jobs        []slots.Job      `json:"jobs,omitempty"`
}

type ensureRequest struct {
	EntityID   string `json:"entity_id" validate:"required"`
	Platform   string `json:"platform" validate:"required"`
	ThreadID   string `json:"thread_id" validate:"required"`
	UserID     string `json:"user_id"`
	IntentHint string `json:"intent_hint"`
}

type ingestRequest struct {
	CID      string     `json:"cid"`
	EntityID string     `json:"entity_id" validate:"required"`
	Platform string     `json:"platform" validate:"required"`
	ThreadID string     `json:"thread_id" validate:"required"`
	UserID   string     `json:"user_id" validate:"required"`
	Role     string     `json:"role"`
	Content  string     `json:"content" validate:"required"`
	Meta     store.Meta `json:"meta"`
}

type contextMessage struct {
	Role     store.Role `json:"role"`
	Text     string     `json:"text"`
	Summary  string     `json:"summary"`
	Metadata store.Meta `json:"metadata"`
}

type contextResponse struct {
	OK       bool             `json:"ok"`
	CID      string           `json:"cid"`
	Messages []contextMessage `json:"messages"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &ErrValidation{Field: "body", Message: "invalid json"}
	}
	if err := s.validator.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// handleTurn stores the user message, runs the turn and stores the reply
// together with the resulting stage and slots.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req turnRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}
	sc := scopeFromHeaders(r)
	if err := s.validator.Struct(sc); err != nil {
		s.errorResponse(w, validationError(err))
		return
	}

	cid, err := s.conversation(r, req.CID, sc)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	log := logger.WithFields(s.logger, logger.ConversationFields(cid, sc.Platform, req.Meta.Stage)...)

	idem := turnKey(r)
	if _, err := s.store.IngestMessage(ctx, cid, store.Message{Role: store.RoleUser, Text: req.Text}, idem); err != nil {
		s.errorResponse(w, fmt.Errorf("ingesting user message: %w", err))
		return
	}

	in := intakeInput(cid, req)
	if req.Meta.Slots != nil {
		decoded, err := s.extractor.FromMap(req.Meta.Slots)
		if err != nil {
			log.Warn("ignoring undecodable meta.slots", zap.Error(err))
		} else {
			in.Slots = &decoded
		}
	}

	res, err := s.engine.Turn(ctx, in)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	reply := store.Message{
		Role: store.RoleAssistant,
		Text: res.Text,
		Meta: store.Meta{Stage: res.Stage.String(), Slots: &res.Slots, Intent: res.Intent},
	}
	if _, err := s.store.IngestMessage(ctx, cid, reply, idem+":"+string(store.RoleAssistant)); err != nil {
		log.Warn("storing assistant message", zap.Error(err))
	}

	s.jsonResponse(w, http.StatusOK, turnResponse{
		OK:          true,
		CID:         cid,
		Text:        res.Text,
		Intent:      res.Intent,
		Stage:       res.Stage,
		Suggestions: res.Suggestions,
		Meta: turnResponseMeta{
			Slots:    res.Slots,
			Missing:  res.Missing,
			AskStage: res.AskStage,
		},
		Jobs: res.Jobs,
	})
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}

	cid, err := s.store.EnsureConversation(r.Context(), req.EntityID, req.Platform, req.ThreadID)
	if err != nil {
		s.errorResponse(w, fmt.Errorf("ensuring conversation: %w", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"ok": true, "cid": cid})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}
	if req.Role == "" {
		req.Role = string(store.RoleUser)
	}
	role, err := store.ParseRole(req.Role)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	sc := scope{EntityID: req.EntityID, Platform: req.Platform, ThreadID: req.ThreadID, UserID: req.UserID}
	cid, err := s.conversation(r, req.CID, sc)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	msg := store.Message{Role: role, Text: req.Content, Meta: req.Meta}
	mid, err := s.store.IngestMessage(r.Context(), cid, msg, idempotencyKey(r, req.UserID, role, req.Content))
	if err != nil {
		s.errorResponse(w, fmt.Errorf("ingesting message: %w", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"ok": true, "cid": cid, "mid": mid})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")

	limit := defaultContextLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.errorResponse(w, &ErrValidation{Field: "limit", Message: "not a number"})
			return
		}
		if err := s.validator.Var(n, "min=1,max=20"); err != nil {
			s.errorResponse(w, &ErrValidation{Field: "limit", Message: "must be between 1 and 20"})
			return
		}
		limit = n
	}

	msgs, err := s.store.ListRecent(r.Context(), cid, limit)
	if err != nil {
		s.errorResponse(w, fmt.Errorf("listing messages: %w", err))
		return
	}

	out := contextResponse{OK: true, CID: cid, Messages: make([]contextMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, contextMessage{
			Role:     m.Role,
			Text:     m.Text,
			Summary:  summarize(m.Text),
			Metadata: m.Meta,
		})
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// conversation returns cid when supplied, otherwise the conversation of sc.
func (s *Server) conversation(r *http.Request, cid string, sc scope) (string, error) {
	if cid = strings.TrimSpace(cid); cid != "" {
		return cid, nil
	}
	cid, err := s.store.EnsureConversation(r.Context(), sc.EntityID, sc.Platform, sc.ThreadID)
	if err != nil {
		return "", fmt.Errorf("ensuring conversation: %w", err)
	}
	return cid, nil
}

// turnKey dedupes only client retries that carry Idempotency-Key. Repeating
// earlier text is a new turn and must store a new state.
func turnKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	return uuid.NewString()
}

// idempotencyKey prefers the Idempotency-Key header and otherwise derives a
// key from the author, role and text.
func idempotencyKey(r *http.Request, userID string, role store.Role, text string) string {
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		return key
	}
	sum := sha256.Sum256([]byte(text))
	return userID + ":" + string(role) + ":" + hex.EncodeToString(sum[:])
}

func summarize(text string) string {
	if utf8.RuneCountInString(text) <= summaryRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:summaryRunes]) + "..."
}

func intakeInput(cid string, req turnRequest) intake.TurnInput {
	return intake.TurnInput{
		ConversationID: cid,
		Text:           req.Text,
		Stage:          stage.Stage(strings.ToLower(strings.TrimSpace(req.Meta.Stage))),
		IntentHint:     req.Meta.Intent,
	}
}
