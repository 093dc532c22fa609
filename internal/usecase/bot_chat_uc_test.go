package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
)

func newBotChat(matches *fakeMatchRepo, profiles *fakeProfileRepo, messages *fakeMessageRepo, ai *fakeAI) BotChatUseCase {
	logger := zerolog.Nop()
	return NewBotChatUseCase(matches, profiles, messages, ai, &logger)
}

func sendJob(matchID string) *model.Job {
	return &model.Job{ID: "j1", Name: JobSendBotMessage, Data: marshalPayload(SendBotMessagePayload{MatchID: matchID})}
}

func TestSendBotMessageInsertsReply(t *testing.T) {
	m, bot, user := matchPair("m1")
	messages := &fakeMessageRepo{thread: []*model.ChatMessage{
		{MatchID: "m1", SenderProfileID: user.ID, Content: "hey, love your photos"},
	}}
	ai := &fakeAI{completeFn: func(ctx context.Context, msgs []adapter.Message, opts adapter.ChatOptions) (string, error) {
		return "thanks! that one's from a climbing trip", nil
	}}
	uc := newBotChat(newFakeMatchRepo(m), newFakeProfileRepo(bot, user), messages, ai)

	if err := uc.HandleSendBotMessage(context.Background(), sendJob("m1")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(messages.inserted) != 1 {
		t.Fatalf("inserted = %d", len(messages.inserted))
	}
	msg := messages.inserted[0]
	if msg.SenderProfileID != bot.ID || msg.MatchID != "m1" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Content != "thanks! that one's from a climbing trip" {
		t.Fatalf("content = %q", msg.Content)
	}
}

func TestSendBotMessageMapsThreadRoles(t *testing.T) {
	m, bot, user := matchPair("m1")
	messages := &fakeMessageRepo{thread: []*model.ChatMessage{
		{SenderProfileID: user.ID, Content: "hi"},
		{SenderProfileID: bot.ID, Content: "hello!"},
		{SenderProfileID: user.ID, Content: "how's your week?"},
	}}
	ai := &fakeAI{completeFn: func(ctx context.Context, msgs []adapter.Message, opts adapter.ChatOptions) (string, error) {
		// system prompt plus the three-turn history
		if len(msgs) != 4 {
			t.Fatalf("prompt length = %d", len(msgs))
		}
		if msgs[1].Role != "user" || msgs[2].Role != "assistant" || msgs[3].Role != "user" {
			t.Fatalf("roles = %s %s %s", msgs[1].Role, msgs[2].Role, msgs[3].Role)
		}
		return "pretty good!", nil
	}}
	uc := newBotChat(newFakeMatchRepo(m), newFakeProfileRepo(bot, user), messages, ai)

	if err := uc.HandleSendBotMessage(context.Background(), sendJob("m1")); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendBotMessageTrimsHistoryToBudget(t *testing.T) {
	m, bot, user := matchPair("m1")
	thread := make([]*model.ChatMessage, 40)
	for i := range thread {
		sender := user.ID
		if i%2 == 1 {
			sender = bot.ID
		}
		thread[i] = &model.ChatMessage{SenderProfileID: sender, Content: "turn"}
	}
	messages := &fakeMessageRepo{thread: thread}
	ai := &fakeAI{
		// price each turn so only the newest 12 fit
		countFn: func(msgs []adapter.Message) (int, error) { return len(msgs) * 500, nil },
		completeFn: func(ctx context.Context, msgs []adapter.Message, opts adapter.ChatOptions) (string, error) {
			if got := len(msgs) - 1; got != 12 {
				t.Fatalf("history length after trim = %d", got)
			}
			return "reply", nil
		},
	}
	uc := newBotChat(newFakeMatchRepo(m), newFakeProfileRepo(bot, user), messages, ai)

	if err := uc.HandleSendBotMessage(context.Background(), sendJob("m1")); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSendBotMessageNoBotSideIsPermanent(t *testing.T) {
	m, _, _ := matchPair("m1")
	humanA := &model.Profile{ID: m.ProfileID, OwnerUserID: "u1", FirstName: "A"}
	humanB := &model.Profile{ID: m.MatchedProfileID, OwnerUserID: "u2", FirstName: "B"}
	uc := newBotChat(newFakeMatchRepo(m), newFakeProfileRepo(humanA, humanB), &fakeMessageRepo{}, &fakeAI{})

	err := uc.HandleSendBotMessage(context.Background(), sendJob("m1"))
	if !errors.Is(err, domain.ErrNoBotSide) {
		t.Fatalf("expected no-bot-side, got %v", err)
	}
	if !domain.IsPermanent(err) {
		t.Fatal("a misconfigured match must not be retried")
	}
}

func TestSendBotMessageRejectsEmptyReply(t *testing.T) {
	m, bot, user := matchPair("m1")
	messages := &fakeMessageRepo{}
	ai := &fakeAI{completeFn: func(ctx context.Context, msgs []adapter.Message, opts adapter.ChatOptions) (string, error) {
		return "", nil
	}}
	uc := newBotChat(newFakeMatchRepo(m), newFakeProfileRepo(bot, user), messages, ai)

	err := uc.HandleSendBotMessage(context.Background(), sendJob("m1"))
	if !errors.Is(err, domain.ErrMalformedModelOutput) {
		t.Fatalf("expected malformed output, got %v", err)
	}
	if len(messages.inserted) != 0 {
		t.Fatal("empty reply must not be stored")
	}
}
