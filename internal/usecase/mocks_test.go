package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/domain/ports/repository"
)

// Hand-rolled fakes for the ports the use cases depend on. Each records the
// writes it receives so tests can assert on persistence.

type fakeProfileRepo struct {
	profiles map[string]*model.Profile

	savedBlocks   map[string][]model.Block
	savedPhotos   map[string][]model.Photo
	savedSessions map[string][]model.Session

	updateErr error
}

func newFakeProfileRepo(profiles ...*model.Profile) *fakeProfileRepo {
	r := &fakeProfileRepo{
		profiles:      make(map[string]*model.Profile),
		savedBlocks:   make(map[string][]model.Block),
		savedPhotos:   make(map[string][]model.Photo),
		savedSessions: make(map[string][]model.Session),
	}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeProfileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Profile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) Save(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	r.profiles[p.ID] = p
	return nil
}

func (r *fakeProfileRepo) UpdateBlocks(ctx context.Context, tx repository.Tx, id string, blocks []model.Block) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.savedBlocks[id] = blocks
	return nil
}

func (r *fakeProfileRepo) UpdatePhotos(ctx context.Context, tx repository.Tx, id string, photos []model.Photo) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.savedPhotos[id] = photos
	return nil
}

func (r *fakeProfileRepo) UpdateSessions(ctx context.Context, tx repository.Tx, id string, sessions []model.Session) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.savedSessions[id] = sessions
	return nil
}

var _ repository.ProfileRepository = (*fakeProfileRepo)(nil)

type fakeMatchRepo struct {
	matches map[string]*model.Match
	pending []*model.Match

	accepted   []string
	rejected   []string
	decisions  map[string]model.MatchDecision
	loseAccept bool
	markErr    error
}

func newFakeMatchRepo(pending ...*model.Match) *fakeMatchRepo {
	r := &fakeMatchRepo{
		matches:   make(map[string]*model.Match),
		pending:   pending,
		decisions: make(map[string]model.MatchDecision),
	}
	for _, m := range pending {
		r.matches[m.ID] = m
	}
	return r
}

func (r *fakeMatchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (r *fakeMatchRepo) Save(ctx context.Context, tx repository.Tx, m *model.Match) error {
	r.matches[m.ID] = m
	return nil
}

func (r *fakeMatchRepo) FindPendingBotMatches(ctx context.Context) ([]*model.Match, error) {
	return r.pending, nil
}

func (r *fakeMatchRepo) UpdateDecision(ctx context.Context, tx repository.Tx, id string, d model.MatchDecision) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.decisions[id] = d
	return nil
}

func (r *fakeMatchRepo) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	if r.markErr != nil {
		return false, r.markErr
	}
	if r.loseAccept {
		return false, nil
	}
	m := r.matches[id]
	if m.MatchAcceptedAt != nil || m.MatchRejectedAt != nil {
		return false, nil
	}
	t := at
	m.MatchAcceptedAt = &t
	r.accepted = append(r.accepted, id)
	return true, nil
}

func (r *fakeMatchRepo) MarkRejected(ctx context.Context, id string, at time.Time) (bool, error) {
	if r.markErr != nil {
		return false, r.markErr
	}
	m := r.matches[id]
	if m.MatchAcceptedAt != nil || m.MatchRejectedAt != nil {
		return false, nil
	}
	t := at
	m.MatchRejectedAt = &t
	r.rejected = append(r.rejected, id)
	return true, nil
}

var _ repository.MatchRepository = (*fakeMatchRepo)(nil)

type fakeMessageRepo struct {
	thread   []*model.ChatMessage
	inserted []*model.ChatMessage
}

func (r *fakeMessageRepo) ListByMatch(ctx context.Context, matchID string) ([]*model.ChatMessage, error) {
	return r.thread, nil
}

func (r *fakeMessageRepo) Insert(ctx context.Context, tx repository.Tx, msg *model.ChatMessage) error {
	r.inserted = append(r.inserted, msg)
	return nil
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

// fakeAI stubs the generative port. Unset funcs fail loudly so a test never
// exercises a call path it did not mean to.
type fakeAI struct {
	completeFn   func(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, error)
	structuredFn func(ctx context.Context, messages []adapter.Message, tool adapter.ToolSpec, opts adapter.ChatOptions) (json.RawMessage, error)
	streamFn     func(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (adapter.TokenStream, error)
	countFn      func(messages []adapter.Message) (int, error)

	completeCalls   [][]adapter.Message
	structuredCalls [][]adapter.Message
	streamCalls     [][]adapter.Message
}

func (a *fakeAI) Complete(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	a.completeCalls = append(a.completeCalls, messages)
	if a.completeFn == nil {
		return "", errors.New("fakeAI: Complete not stubbed")
	}
	return a.completeFn(ctx, messages, opts)
}

func (a *fakeAI) CompleteStructured(ctx context.Context, messages []adapter.Message, tool adapter.ToolSpec, opts adapter.ChatOptions) (json.RawMessage, error) {
	a.structuredCalls = append(a.structuredCalls, messages)
	if a.structuredFn == nil {
		return nil, errors.New("fakeAI: CompleteStructured not stubbed")
	}
	return a.structuredFn(ctx, messages, tool, opts)
}

func (a *fakeAI) CompleteStream(ctx context.Context, messages []adapter.Message, opts adapter.ChatOptions) (adapter.TokenStream, error) {
	a.streamCalls = append(a.streamCalls, messages)
	if a.streamFn == nil {
		return nil, errors.New("fakeAI: CompleteStream not stubbed")
	}
	return a.streamFn(ctx, messages, opts)
}

func (a *fakeAI) CountTokens(messages []adapter.Message) (int, error) {
	if a.countFn == nil {
		return len(messages), nil
	}
	return a.countFn(messages)
}

var _ adapter.AIAdapter = (*fakeAI)(nil)

// stubStream replays fixed chunks then io.EOF.
type stubStream struct {
	chunks []string
	idx    int
	closed bool
}

func (s *stubStream) Recv() (string, error) {
	if s.idx >= len(s.chunks) {
		return "", io.EOF
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, nil
}

func (s *stubStream) Close() error {
	s.closed = true
	return nil
}

func streamOf(chunks ...string) func(context.Context, []adapter.Message, adapter.ChatOptions) (adapter.TokenStream, error) {
	return func(context.Context, []adapter.Message, adapter.ChatOptions) (adapter.TokenStream, error) {
		return &stubStream{chunks: chunks}, nil
	}
}

type fakeLocker struct {
	held     bool
	locked   []string
	unlocked []string
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.held {
		return "", domain.ErrLockHeld
	}
	l.locked = append(l.locked, key)
	return "tok", nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.unlocked = append(l.unlocked, key)
	return nil
}

type enqueueCall struct {
	name    string
	payload any
	opts    *model.JobOptions
}

type fakeEnqueuer struct {
	calls []enqueueCall
	err   error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, name string, payload any, opts *model.JobOptions) (*model.Job, bool, error) {
	if e.err != nil {
		return nil, false, e.err
	}
	e.calls = append(e.calls, enqueueCall{name: name, payload: payload, opts: opts})
	return &model.Job{ID: "job-1", Name: name}, true, nil
}

type fakeTranscriber struct {
	text      string
	err       error
	filenames []string
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	t.filenames = append(t.filenames, filename)
	if t.err != nil {
		return "", t.err
	}
	return t.text, nil
}

type fakeVision struct {
	calls int
	err   error
}

func (v *fakeVision) DescribePhoto(ctx context.Context, data []byte, mimeType string) (string, error) {
	v.calls++
	if v.err != nil {
		return "", v.err
	}
	return "described: " + string(data), nil
}

type fakePhotoStore struct {
	objects map[string][]byte
}

func (s *fakePhotoStore) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return data, "image/jpeg", nil
}

type fakeSynth struct {
	audio string
	calls int
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	s.calls++
	return io.NopCloser(strings.NewReader(s.audio)), nil
}

func marshalPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
