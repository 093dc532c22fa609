package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/domain/ports/repository"
)

// historyTokenBudget caps the chat history fed to the role-play call. The
// system prompt and reply allowance live outside this budget.
const historyTokenBudget = 6000

// BotChatUseCase produces the bot side of a matched conversation.
type BotChatUseCase interface {
	HandleSendBotMessage(ctx context.Context, job *model.Job) error
}

var _ BotChatUseCase = (*botChatUC)(nil)

type botChatUC struct {
	matches  repository.MatchRepository
	profiles repository.ProfileRepository
	messages repository.MessageRepository
	ai       adapter.AIAdapter
	log      *zerolog.Logger
}

func NewBotChatUseCase(
	matches repository.MatchRepository,
	profiles repository.ProfileRepository,
	messages repository.MessageRepository,
	ai adapter.AIAdapter,
	logger *zerolog.Logger,
) *botChatUC {
	l := logger.With().Str("component", "BotChat").Logger()
	return &botChatUC{matches: matches, profiles: profiles, messages: messages, ai: ai, log: &l}
}

func (u *botChatUC) HandleSendBotMessage(ctx context.Context, job *model.Job) error {
	var p SendBotMessagePayload
	if err := decodePayload(job.Name, job.Data, &p); err != nil {
		return err
	}
	u.log.Info().Str("match_id", p.MatchID).Msg("sending bot message")

	match, err := u.matches.FindByID(ctx, nil, p.MatchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", p.MatchID, err)
	}
	bot, user, err := u.resolveSides(ctx, match)
	if err != nil {
		return err
	}

	thread, err := u.messages.ListByMatch(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("load messages for match %s: %w", match.ID, err)
	}

	history := make([]adapter.Message, 0, len(thread))
	for _, m := range thread {
		role := "assistant"
		if m.SenderProfileID == user.ID {
			role = "user"
		}
		history = append(history, adapter.Message{Role: role, Content: m.Content})
	}
	history, err = u.trimToBudget(history)
	if err != nil {
		return err
	}

	now := time.Now()
	messages := append([]adapter.Message{
		{Role: "system", Content: fmt.Sprintf(botChatPrompt, rosterJSON(bot, now), rosterJSON(user, now))},
	}, history...)

	reply, err := u.ai.Complete(ctx, messages, adapter.ChatOptions{Temperature: 0.5})
	if err != nil {
		return fmt.Errorf("bot reply call: %w", err)
	}
	if reply == "" {
		return fmt.Errorf("%w: empty bot reply", domain.ErrMalformedModelOutput)
	}

	return u.messages.Insert(ctx, nil, &model.ChatMessage{
		MatchID:         match.ID,
		SenderProfileID: bot.ID,
		Content:         reply,
	})
}

// resolveSides loads both profiles and identifies which one is bot-owned.
// Matches with zero or two bot sides are misconfigured for good.
func (u *botChatUC) resolveSides(ctx context.Context, match *model.Match) (bot, user *model.Profile, err error) {
	a, err := u.profiles.FindByID(ctx, nil, match.ProfileID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile %s: %w", match.ProfileID, err)
	}
	b, err := u.profiles.FindByID(ctx, nil, match.MatchedProfileID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile %s: %w", match.MatchedProfileID, err)
	}
	switch {
	case a.IsBot() && !b.IsBot():
		return a, b, nil
	case b.IsBot() && !a.IsBot():
		return b, a, nil
	default:
		return nil, nil, domain.Permanent(fmt.Errorf("%w: match %s", domain.ErrNoBotSide, match.ID))
	}
}

// trimToBudget drops the oldest turns until the history fits the prompt
// budget.
func (u *botChatUC) trimToBudget(history []adapter.Message) ([]adapter.Message, error) {
	for len(history) > 0 {
		n, err := u.ai.CountTokens(history)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}
		if n <= historyTokenBudget {
			return history, nil
		}
		history = history[1:]
	}
	return history, nil
}
