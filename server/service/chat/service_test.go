package chat

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynnzhiyun/chatpet/internal/profile"
	"github.com/lynnzhiyun/chatpet/plugin/llm"
	"github.com/lynnzhiyun/chatpet/store"
	storetest "github.com/lynnzhiyun/chatpet/store/test"
)

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	lastReq *llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req *llm.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fixture struct {
	store     *store.Store
	completer *fakeCompleter
	session   *Session
	bus       *EventBus
	service   *Service
}

func newFixture(t *testing.T, p *profile.Profile) *fixture {
	t.Helper()
	ctx := context.Background()

	if p == nil {
		p = &profile.Profile{
			AIAPIKey:       "sk-env",
			AIBaseURL:      "https://api.moonshot.cn/v1",
			AIChatModel:    "moonshot-v1-8k",
			AIVisionModel:  "moonshot-v1-8k-vision-preview",
			DefaultPetName: "Mochi",
		}
	}

	st := storetest.NewTestingStore(ctx, t)
	bus := NewEventBus()
	session, err := NewSession(ctx, st, p, bus)
	require.NoError(t, err)

	completer := &fakeCompleter{reply: "Woof!"}
	return &fixture{
		store:     st,
		completer: completer,
		session:   session,
		bus:       bus,
		service:   NewService(st, completer, session, bus, p),
	}
}

func today() string {
	return store.DayOf(time.Now().UnixMilli())
}

func TestLoadDayTodaySeedsGreeting(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	messages, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, store.SenderAgent, messages[0].Sender)
	assert.Contains(t, messages[0].Content, "Mochi")

	// The greeting is persisted, not just displayed.
	day := today()
	stored, err := f.store.ListMessages(ctx, &store.FindMessage{Day: &day})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, messages[0].UID, stored[0].UID)

	// A second load finds the stored greeting and does not seed again.
	messages, err = f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestLoadDayHistoricalNeverSeeds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	messages, err := f.service.LoadDay(ctx, "2020-01-01")
	require.NoError(t, err)
	assert.Empty(t, messages)

	day := "2020-01-01"
	stored, err := f.store.ListMessages(ctx, &store.FindMessage{Day: &day})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestLoadDayStorageFailureFallback(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Kill the database under the service.
	require.NoError(t, f.store.GetDriver().Close())

	messages, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, store.SenderAgent, messages[0].Sender)
	assert.Equal(t, loadFailureText, messages[0].Content)
}

func TestSendMessageBlankIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, text := range []string{"", "   ", "\n\t"} {
		result, err := f.service.SendMessage(ctx, text)
		require.NoError(t, err)
		assert.Empty(t, result.Messages)
	}

	assert.Zero(t, f.completer.calls)
	stored, err := f.store.ListMessages(ctx, &store.FindMessage{})
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSendMessageSuccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)

	result, err := f.service.SendMessage(ctx, "hello pet")
	require.NoError(t, err)
	require.Equal(t, 1, f.completer.calls)
	assert.Empty(t, result.Notice)

	// Greeting + user + reply.
	require.Len(t, result.Messages, 3)
	user := result.Messages[1]
	reply := result.Messages[2]
	assert.Equal(t, store.SenderUser, user.Sender)
	assert.Equal(t, "hello pet", user.Content)
	assert.Equal(t, store.SenderAgent, reply.Sender)
	assert.Equal(t, "Woof!", reply.Content)
	assert.Greater(t, reply.CreatedTs, user.CreatedTs)

	// Both are persisted for the current day.
	day := today()
	stored, err := f.store.ListMessages(ctx, &store.FindMessage{Day: &day})
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "hello pet", stored[1].Content)
	assert.Equal(t, "Woof!", stored[2].Content)

	// Persona prompt is interpolated with the pet name.
	assert.Contains(t, f.completer.lastReq.SystemPrompt, "Mochi")
	assert.Equal(t, "moonshot-v1-8k", f.completer.lastReq.Model)
}

func TestSendMessageContextWindowBounded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	day := today()
	base := time.Now().Add(-time.Hour).UnixMilli()
	for i := 0; i < 15; i++ {
		_, err := f.store.UpsertMessage(ctx, &store.Message{
			UID:       strings.Repeat("0", 8) + string(rune('a'+i)),
			Content:   "old",
			Sender:    store.SenderUser,
			CreatedTs: base + int64(i),
			Day:       day,
		})
		require.NoError(t, err)
	}

	_, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, "newest")
	require.NoError(t, err)

	window := f.completer.lastReq.Messages
	require.Len(t, window, 10)
	last := window[len(window)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "newest", last.Content.Text())
}

func TestSendMessageWithoutAPIKey(t *testing.T) {
	p := &profile.Profile{
		AIAPIKey:       "", // no env fallback either
		AIChatModel:    "moonshot-v1-8k",
		DefaultPetName: "Mochi",
	}
	f := newFixture(t, p)
	ctx := context.Background()

	var notices []string
	f.bus.Subscribe(EventErrorNotice, func(_ context.Context, e *Event) {
		notices = append(notices, e.Notice)
	})

	result, err := f.service.SendMessage(ctx, "hello?")
	require.NoError(t, err)
	assert.Zero(t, f.completer.calls)
	assert.NotEmpty(t, result.Notice)

	// The synthetic agent message is the last entry and mentions the key.
	require.NotEmpty(t, result.Messages)
	last := result.Messages[len(result.Messages)-1]
	assert.Equal(t, store.SenderAgent, last.Sender)
	assert.Contains(t, last.Content, "API key")
	require.Len(t, notices, 1)
}

func TestMissingKeyMessageDayMatchesTimestamp(t *testing.T) {
	p := &profile.Profile{
		AIChatModel:    "moonshot-v1-8k",
		DefaultPetName: "Mochi",
	}
	f := newFixture(t, p)
	ctx := context.Background()

	// A session loaded before midnight still points at yesterday's day key.
	f.service.day = "2020-01-01"

	result, err := f.service.SendMessage(ctx, "hello?")
	require.NoError(t, err)
	require.NotEmpty(t, result.Messages)
	last := result.Messages[len(result.Messages)-1]
	assert.Equal(t, store.SenderAgent, last.Sender)
	assert.Equal(t, store.DayOf(last.CreatedTs), last.Day)
}

func TestSendMessageTransportFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.completer.err = &llm.Failure{Kind: llm.FailureTransport, Message: "connection refused"}
	ctx := context.Background()

	_, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)

	result, err := f.service.SendMessage(ctx, "anyone there?")
	require.NoError(t, err)
	require.Len(t, result.Messages, 3)

	user := result.Messages[1]
	diag := result.Messages[2]
	assert.Equal(t, "anyone there?", user.Content)
	assert.Equal(t, store.SenderAgent, diag.Sender)
	assert.Equal(t, transportText, diag.Content)
	assert.Equal(t, transportText, result.Notice)

	// Both the user message and the diagnostic are persisted.
	day := today()
	stored, err := f.store.ListMessages(ctx, &store.FindMessage{Day: &day})
	require.NoError(t, err)
	require.Len(t, stored, 3)
}

func TestSendMessageProviderFailureDiagnostic(t *testing.T) {
	f := newFixture(t, nil)
	f.completer.err = &llm.Failure{
		Kind:    llm.FailureProvider,
		Message: "quota exceeded",
		Type:    "insufficient_quota",
		Code:    "429",
	}
	ctx := context.Background()

	result, err := f.service.SendMessage(ctx, "hi")
	require.NoError(t, err)
	last := result.Messages[len(result.Messages)-1]
	assert.Contains(t, last.Content, "quota exceeded")
	assert.Contains(t, last.Content, "insufficient_quota")
}

func TestRenameReintroductionFiresOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Rename flow: settings handler stores the flag and publishes the event.
	_, err := f.store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingPetName, Value: "Nori"})
	require.NoError(t, err)
	_, err = f.store.UpsertProfileSetting(ctx, &store.ProfileSetting{Name: store.SettingPetNameJustChanged, Value: "true"})
	require.NoError(t, err)
	f.bus.Publish(ctx, &Event{Type: EventSettingsChanged, PetName: "Nori"})

	messages, err := f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	// Greeting (seeded with the new name) + re-introduction.
	require.Len(t, messages, 2)
	reintro := messages[1]
	assert.Contains(t, reintro.Content, "Nori")
	assert.Contains(t, reintro.Content, "new name")
	assert.Greater(t, reintro.CreatedTs, messages[0].CreatedTs)

	// The flag is cleared: a second load adds nothing.
	messages, err = f.service.LoadDay(ctx, DayToday)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	pending, err := f.session.RenamePending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestSettingsChangeUpdatesSessionName(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.Equal(t, "Mochi", f.session.PetName())
	f.bus.Publish(ctx, &Event{Type: EventSettingsChanged, PetName: "Biscuit"})
	assert.Equal(t, "Biscuit", f.session.PetName())
}

func TestSendMessageAsyncDeliversResult(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	select {
	case result := <-f.service.SendMessageAsync(ctx, "hello"):
		require.NotNil(t, result)
		assert.Equal(t, 1, f.completer.calls)
	case <-time.After(5 * time.Second):
		t.Fatal("async send did not complete")
	}
}

func TestAnalyzeImageWithoutKey(t *testing.T) {
	p := &profile.Profile{DefaultPetName: "Mochi", AIVisionModel: "moonshot-v1-8k-vision-preview"}
	f := newFixture(t, p)

	result := f.service.AnalyzeImage(context.Background(), []byte("irrelevant"), "")
	assert.NotEmpty(t, result.Notice)
	assert.Zero(t, f.completer.calls)
}

func TestAnalyzeImageBuildsPartsRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.completer.reply = "Ooh, a red square!"

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))

	result := f.service.AnalyzeImage(context.Background(), buf.Bytes(), "what is this?")
	require.Empty(t, result.Notice)
	require.Equal(t, 1, f.completer.calls)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Ooh, a red square!", result.Messages[0].Content)

	// The image exchange stays out of chat history.
	stored, err := f.store.ListMessages(context.Background(), &store.FindMessage{})
	require.NoError(t, err)
	assert.Empty(t, stored)

	req := f.completer.lastReq
	assert.Equal(t, "moonshot-v1-8k-vision-preview", req.Model)
	require.Len(t, req.Messages, 1)
	msg := req.Messages[0]
	assert.Equal(t, llm.RoleUser, msg.Role)
	require.True(t, msg.Content.IsParts())
	parts := msg.Content.Parts()
	require.Len(t, parts, 2)
	assert.Equal(t, llm.ContentPartImage, parts[0].Type)
	assert.True(t, strings.HasPrefix(parts[0].ImageURL, "data:image/jpeg;base64,"))
	assert.Equal(t, llm.ContentPartText, parts[1].Type)
	assert.Equal(t, "what is this?", parts[1].Text)
}

func TestAnalyzeImageRejectsBadPayload(t *testing.T) {
	f := newFixture(t, nil)

	result := f.service.AnalyzeImage(context.Background(), []byte("not an image"), "")
	assert.NotEmpty(t, result.Notice)
	assert.Zero(t, f.completer.calls)
}
