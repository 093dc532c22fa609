package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/domain/ports/repository"
	"hotorbot/internal/infra/redis"
	"hotorbot/internal/stream"
)

// targetResponses is the interview's response budget. Once the client has
// spent it, the session finishes regardless of reported progress.
const targetResponses = 10

// turnLockTTL bounds how long a crashed turn can block the next one.
const turnLockTTL = 2 * time.Minute

// Enqueuer is the slice of the queue engine the interview needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts *model.JobOptions) (*model.Job, bool, error)
}

// TurnRequest is one interactive interview turn. Exactly one of Text or
// Audio carries the utterance.
type TurnRequest struct {
	ProfileID     string
	Text          string
	Audio         io.Reader
	AudioFilename string
	Interruption  bool
}

// TurnResult summarizes the committed outcome. Waited and cancelled turns
// persist nothing.
type TurnResult struct {
	Progress        int
	SessionFinished bool
	Waited          bool
	Cancelled       bool
}

// InterviewUseCase drives the profile-builder interview over a live
// response stream.
type InterviewUseCase interface {
	Turn(ctx context.Context, req TurnRequest, out io.Writer) (*TurnResult, error)
}

var _ InterviewUseCase = (*interviewUC)(nil)

type interviewUC struct {
	profiles    repository.ProfileRepository
	ai          adapter.AIAdapter
	transcriber adapter.Transcriber
	cascade     *stream.Cascade
	locker      redis.Locker
	queue       Enqueuer
	log         *zerolog.Logger
}

func NewInterviewUseCase(
	profiles repository.ProfileRepository,
	ai adapter.AIAdapter,
	transcriber adapter.Transcriber,
	cascade *stream.Cascade,
	locker redis.Locker,
	queue Enqueuer,
	logger *zerolog.Logger,
) *interviewUC {
	l := logger.With().Str("component", "Interview").Logger()
	return &interviewUC{
		profiles:    profiles,
		ai:          ai,
		transcriber: transcriber,
		cascade:     cascade,
		locker:      locker,
		queue:       queue,
		log:         &l,
	}
}

// Turn runs one interview exchange: resolve the utterance, stream the
// model's tagged reply through the cascade, and persist the turn only when
// the stream committed. Nothing is written back for waited or cancelled
// turns, so the client can simply re-send.
func (u *interviewUC) Turn(ctx context.Context, req TurnRequest, out io.Writer) (*TurnResult, error) {
	lockKey := "turn:" + req.ProfileID
	token, err := u.locker.TryLock(ctx, lockKey, turnLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, domain.ErrTurnInProgress
		}
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	defer func() { _ = u.locker.Unlock(context.Background(), lockKey, token) }()

	text, err := u.resolveUtterance(ctx, req)
	if err != nil {
		return nil, err
	}

	profile, err := u.profiles.FindByID(ctx, nil, req.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", req.ProfileID, err)
	}

	sessions, session := currentSession(profile.Sessions, time.Now())
	session.AddUserTurn(text, req.Interruption)

	responsesUsed := session.UserTurnCount() - 1
	if responsesUsed >= targetResponses {
		return u.finishSession(ctx, profile, sessions, session, out)
	}

	tokens, err := u.ai.CompleteStream(ctx, u.buildMessages(profile, session, responsesUsed), adapter.ChatOptions{
		Temperature: 0,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("open interview stream: %w", err)
	}

	res, err := u.cascade.Run(ctx, tokens, out)
	if err != nil {
		return nil, fmt.Errorf("interview stream: %w", err)
	}
	if res.Waited {
		u.log.Debug().Str("profile_id", profile.ID).Msg("model waited for more input")
		return &TurnResult{Waited: true, Progress: session.Progress}, nil
	}
	if res.Cancelled {
		return &TurnResult{Cancelled: true, Progress: session.Progress}, nil
	}

	progress := session.Progress
	if res.Fields.Progress != nil {
		progress = *res.Fields.Progress
	}
	session.AddAssistantTurn(model.Turn{
		Role:         "assistant",
		Content:      res.Fields.Voice,
		Topic:        res.Fields.Topic,
		Title:        res.Fields.Title,
		Instructions: res.Fields.Instructions,
		FollowUp:     res.Fields.IsFollowUp,
	}, progress)

	if session.Done() {
		return u.finishSession(ctx, profile, sessions, session, nil)
	}

	if err := u.profiles.UpdateSessions(ctx, nil, profile.ID, sessions); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &TurnResult{Progress: session.Progress}, nil
}

// finishSession closes the interview and kicks off profile construction
// exactly once per profile via the singleton key.
func (u *interviewUC) finishSession(ctx context.Context, profile *model.Profile, sessions []model.Session, session *model.Session, out io.Writer) (*TurnResult, error) {
	session.Finish()
	if out != nil {
		_, _ = io.WriteString(out, interviewFarewell)
	}
	if err := u.profiles.UpdateSessions(ctx, nil, profile.ID, sessions); err != nil {
		return nil, fmt.Errorf("persist finished session: %w", err)
	}
	_, _, err := u.queue.Enqueue(ctx, JobBuildProfile,
		BuildProfilePayload{ProfileID: profile.ID},
		&model.JobOptions{SingletonKey: BuildProfileSingletonKey(profile.ID)})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", JobBuildProfile, err)
	}
	u.log.Info().Str("profile_id", profile.ID).Msg("interview finished, profile build enqueued")
	return &TurnResult{Progress: session.Progress, SessionFinished: true}, nil
}

func (u *interviewUC) resolveUtterance(ctx context.Context, req TurnRequest) (string, error) {
	if req.Audio != nil {
		text, err := u.transcriber.Transcribe(ctx, req.Audio, req.AudioFilename)
		if err != nil {
			return "", err
		}
		return text, nil
	}
	if req.Text == "" {
		return "", fmt.Errorf("%w: empty turn", domain.ErrInvalidArgument)
	}
	return req.Text, nil
}

// currentSession returns the working copy of the session list with the
// active session to mutate, opening a new one when the last has finished.
func currentSession(existing []model.Session, now time.Time) ([]model.Session, *model.Session) {
	sessions := make([]model.Session, len(existing))
	copy(sessions, existing)
	if len(sessions) == 0 || sessions[len(sessions)-1].State == model.SessionFinished {
		sessions = append(sessions, model.NewSession(now))
	}
	return sessions, &sessions[len(sessions)-1]
}

func (u *interviewUC) buildMessages(profile *model.Profile, session *model.Session, responsesUsed int) []adapter.Message {
	messages := []adapter.Message{
		{Role: "system", Content: interviewSystem(profile, time.Now(), targetResponses)},
		{Role: "system", Content: fmt.Sprintf(interviewStatusPrompt, responsesUsed, targetResponses)},
	}
	for _, t := range session.Turns {
		content := t.Content
		if t.Interruption {
			content = "<INTERRUPT> " + content
		}
		messages = append(messages, adapter.Message{Role: t.Role, Content: content})
	}
	return messages
}
