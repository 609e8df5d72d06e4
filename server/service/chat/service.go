// Package chat turns user input into persisted exchanges with the companion
// persona: it owns the in-memory message list of one UI session, seeds
// greetings, builds the bounded context window, and converts every failure
// into something the user can still read.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/plugin/llm"
	"github.com/lynnzhiyun/chatpet/plugin/vision"
	"github.com/lynnzhiyun/chatpet/server/internal/observability"
	"github.com/lynnzhiyun/chatpet/store"
)

const (
	// contextWindowSize bounds the prompt history sent with each request.
	contextWindowSize = 10

	// DayToday is the sentinel argument selecting the live view.
	DayToday = "today"
)

const (
	greetingTemplate      = "Hello, I'm %s! What shall we chat about today?"
	reintroTemplate       = "Hello, I'm %s! I'm so happy to be chatting with you under my new name. What shall we talk about?"
	personaTemplate       = "You are an adorable AI pet named %s. You reply in a friendly, playful tone."
	visionPersonaTemplate = "You are an AI pet named %s with a lively, curious personality. You chat in a concise, friendly, playful tone and can describe what you see in pictures."
	defaultImagePrompt    = "Take a look at this picture and tell me what you see, in your own words!"

	loadFailureText  = "Aw, I can't seem to find our chat history right now..."
	missingKeyText   = "Error: no API key is configured, so I can't reach my AI brain right now."
	transportText    = "Network error, please try again later."
	uncategorizedTxt = "Sorry, something went wrong on my side."
)

// SendResult is the outcome of a send or analyze operation. Notice carries
// the transient diagnostic when the operation degraded; empty on success.
type SendResult struct {
	Messages []*store.Message
	Notice   string
}

// Service orchestrates one conversation session. Operations that touch the
// in-memory message list (LoadDay, SendMessage) are serialized by an
// internal mutex: a second SendMessage issued while one is in flight queues
// behind it and then proceeds with the updated window. AnalyzeImage shares
// no mutable state and runs unlocked.
type Service struct {
	store     *store.Store
	completer llm.Completer
	encoder   *vision.Encoder
	session   *Session
	bus       *EventBus
	profile   *profile.Profile
	logger    *slog.Logger

	mu       sync.Mutex
	day      string
	messages []*store.Message
	lastTs   int64
}

// NewService creates a conversation service bound to one UI session.
func NewService(st *store.Store, completer llm.Completer, session *Session, bus *EventBus, p *profile.Profile) *Service {
	return &Service{
		store:     st,
		completer: completer,
		encoder:   vision.NewEncoder(),
		session:   session,
		bus:       bus,
		profile:   p,
		logger:    slog.Default(),
	}
}

// LoadDay populates the in-memory list for the given day. The sentinel
// "today" (or "") selects the live view, which is seeded with a persisted
// greeting when empty; historical days are returned as stored, never seeded.
func (s *Service) LoadDay(ctx context.Context, day string) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadDayLocked(ctx, day)
}

func (s *Service) loadDayLocked(ctx context.Context, day string) ([]*store.Message, error) {
	rc := observability.NewRequestContext(s.logger, "load_day")

	isLiveView := day == "" || day == DayToday
	resolved := day
	if isLiveView {
		resolved = store.DayOf(time.Now().UnixMilli())
	}

	messages, err := s.store.ListMessages(ctx, &store.FindMessage{Day: &resolved})
	if err != nil {
		// The view must never come up empty-handed: show one synthetic
		// agent message and stop.
		rc.Error("failed to load messages", err, slog.String(observability.LogFieldDay, resolved))
		s.day = resolved
		s.messages = []*store.Message{s.syntheticAgentMessage(loadFailureText, resolved)}
		return s.snapshot(), nil
	}

	if isLiveView && len(messages) == 0 {
		greeting := s.syntheticAgentMessage(fmt.Sprintf(greetingTemplate, s.session.PetName()), resolved)
		if _, err := s.store.UpsertMessage(ctx, greeting); err != nil {
			rc.Warn("failed to persist greeting", slog.String("error", err.Error()))
		}
		messages = append(messages, greeting)
	}

	s.day = resolved
	s.messages = messages

	if err := s.reintroduceIfRenamed(ctx, rc, resolved); err != nil {
		rc.Warn("failed to handle rename flag", slog.String("error", err.Error()))
	}

	rc.Info("day loaded",
		slog.String(observability.LogFieldDay, resolved),
		slog.Int("count", len(s.messages)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return s.snapshot(), nil
}

// reintroduceIfRenamed appends one agent message re-introducing the pet
// under its new name, at most once per rename: the flag is cleared before
// any later LoadDay can observe it again.
func (s *Service) reintroduceIfRenamed(ctx context.Context, rc *observability.RequestContext, day string) error {
	pending, err := s.session.RenamePending(ctx)
	if err != nil || !pending {
		return err
	}

	reintro := s.syntheticAgentMessage(fmt.Sprintf(reintroTemplate, s.session.PetName()), day)
	if _, err := s.store.UpsertMessage(ctx, reintro); err != nil {
		rc.Warn("failed to persist re-introduction", slog.String("error", err.Error()))
	}
	s.messages = append(s.messages, reintro)

	return s.session.ClearRenameFlag(ctx)
}

// SendMessage persists the user's text, requests a completion over the
// bounded context window, and persists either the reply or a diagnostic
// agent message. Blank input is a silent no-op.
func (s *Service) SendMessage(ctx context.Context, text string) (*SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &SendResult{Messages: s.snapshot()}, nil
	}

	rc := observability.NewRequestContext(s.logger, "send_message")

	if s.day == "" {
		if _, err := s.loadDayLocked(ctx, DayToday); err != nil {
			return nil, err
		}
	}

	apiKey := s.session.APIKey(ctx)
	if apiKey == "" {
		notice := missingKeyText
		s.appendPersisted(ctx, rc, s.newMessage(missingKeyText, store.SenderAgent))
		s.publishNotice(ctx, notice)
		return &SendResult{Messages: s.snapshot(), Notice: notice}, nil
	}

	// Optimistic: the user message is visible and persisted before any
	// network round trip.
	userMessage := s.newMessage(trimmed, store.SenderUser)
	s.appendPersisted(ctx, rc, userMessage)

	reply, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Model:        s.profile.AIChatModel,
		SystemPrompt: fmt.Sprintf(personaTemplate, s.session.PetName()),
		Messages:     s.contextWindow(),
		APIKey:       apiKey,
		BaseURL:      s.session.BaseURL(ctx),
	})

	notice := ""
	var agentText string
	if err != nil {
		failure := llm.Classify(err)
		agentText = diagnosticText(failure)
		notice = agentText
		rc.Warn("completion failed",
			slog.String("kind", string(failure.Kind)),
			slog.String("error", failure.Error()))
	} else {
		agentText = reply
	}

	s.appendPersisted(ctx, rc, s.newMessage(agentText, store.SenderAgent))
	if notice != "" {
		s.publishNotice(ctx, notice)
	}

	rc.Info("message exchanged",
		slog.Int(observability.LogFieldMessageLen, len(trimmed)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return &SendResult{Messages: s.snapshot(), Notice: notice}, nil
}

// SendMessageAsync runs SendMessage off the caller's goroutine and delivers
// the result on the returned channel. The returned channel always receives
// exactly one value.
func (s *Service) SendMessageAsync(ctx context.Context, text string) <-chan *SendResult {
	ch := make(chan *SendResult, 1)
	go func() {
		result, err := s.SendMessage(ctx, text)
		if err != nil {
			result = &SendResult{Notice: err.Error()}
		}
		ch <- result
		close(ch)
	}()
	return ch
}

// AnalyzeImage sends the photo to the vision model and returns the pet's
// commentary. The exchange is not part of chat history.
func (s *Service) AnalyzeImage(ctx context.Context, imageData []byte, prompt string) *SendResult {
	rc := observability.NewRequestContext(s.logger, "analyze_image")

	apiKey := s.session.APIKey(ctx)
	if apiKey == "" {
		s.publishNotice(ctx, missingKeyText)
		return &SendResult{Notice: missingKeyText}
	}

	dataURL, err := s.encoder.DataURL(ctx, imageData)
	if err != nil {
		rc.Error("failed to encode image", err)
		notice := "The picture could not be processed, please try another one."
		s.publishNotice(ctx, notice)
		return &SendResult{Notice: notice}
	}

	if strings.TrimSpace(prompt) == "" {
		prompt = defaultImagePrompt
	}

	reply, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Model:        s.profile.AIVisionModel,
		SystemPrompt: fmt.Sprintf(visionPersonaTemplate, s.session.PetName()),
		Messages: []llm.PromptMessage{
			{
				Role: llm.RoleUser,
				Content: llm.PartsContent(
					llm.ImagePart(dataURL),
					llm.TextPart(prompt),
				),
			},
		},
		APIKey:  apiKey,
		BaseURL: s.session.BaseURL(ctx),
	})
	if err != nil {
		failure := llm.Classify(err)
		notice := diagnosticText(failure)
		rc.Warn("vision completion failed", slog.String("kind", string(failure.Kind)))
		s.publishNotice(ctx, notice)
		return &SendResult{Notice: notice}
	}

	rc.Info("image analyzed", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return &SendResult{Messages: []*store.Message{{
		UID:       uuid.NewString(),
		Content:   reply,
		Sender:    store.SenderAgent,
		CreatedTs: time.Now().UnixMilli(),
		Day:       store.DayOf(time.Now().UnixMilli()),
	}}}
}

// contextWindow maps the last messages of the in-memory list to prompt
// entries in chronological order.
func (s *Service) contextWindow() []llm.PromptMessage {
	start := 0
	if len(s.messages) > contextWindowSize {
		start = len(s.messages) - contextWindowSize
	}

	window := make([]llm.PromptMessage, 0, len(s.messages)-start)
	for _, m := range s.messages[start:] {
		role := llm.RoleAssistant
		if m.Sender == store.SenderUser {
			role = llm.RoleUser
		}
		window = append(window, llm.PromptMessage{
			Role:    role,
			Content: llm.TextContent(m.Content),
		})
	}
	return window
}

// appendPersisted appends to the in-memory list and persists, logging but
// not failing on storage errors: the conversation keeps going in memory.
func (s *Service) appendPersisted(ctx context.Context, rc *observability.RequestContext, m *store.Message) {
	s.messages = append(s.messages, m)
	if _, err := s.store.UpsertMessage(ctx, m); err != nil {
		rc.Warn("failed to persist message", slog.String("error", err.Error()))
	}
}

// newMessage stamps a message on the live day with a timestamp strictly
// greater than the previous one, so user/reply pairs written within the
// same millisecond still order correctly.
func (s *Service) newMessage(content string, sender store.Sender) *store.Message {
	ts := time.Now().UnixMilli()
	if ts <= s.lastTs {
		ts = s.lastTs + 1
	}
	s.lastTs = ts
	return &store.Message{
		UID:       uuid.NewString(),
		Content:   content,
		Sender:    sender,
		CreatedTs: ts,
		Day:       store.DayOf(ts),
	}
}

// syntheticAgentMessage builds a seeded agent message bound to day,
// timestamped strictly after anything already loaded.
func (s *Service) syntheticAgentMessage(content, day string) *store.Message {
	ts := time.Now().UnixMilli()
	if n := len(s.messages); n > 0 && ts <= s.messages[n-1].CreatedTs {
		ts = s.messages[n-1].CreatedTs + 1
	}
	if ts <= s.lastTs {
		ts = s.lastTs + 1
	}
	s.lastTs = ts
	return &store.Message{
		UID:       uuid.NewString(),
		Content:   content,
		Sender:    store.SenderAgent,
		CreatedTs: ts,
		Day:       day,
	}
}

func (s *Service) snapshot() []*store.Message {
	out := make([]*store.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Service) publishNotice(ctx context.Context, notice string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, &Event{Type: EventErrorNotice, Notice: notice})
}

// diagnosticText renders a failure the way the pet reports it in chat.
func diagnosticText(f *llm.Failure) string {
	switch f.Kind {
	case llm.FailureProvider:
		return fmt.Sprintf("API error: %s (type: %s, code: %s)", f.Message, f.Type, f.Code)
	case llm.FailureHTTP:
		return fmt.Sprintf("API request failed: %s (status %d)", f.Message, f.StatusCode)
	case llm.FailureTransport:
		return transportText
	default:
		return uncategorizedTxt
	}
}
