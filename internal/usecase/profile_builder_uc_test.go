package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
)

func constructReply(blocks string) func(context.Context, []adapter.Message, adapter.ToolSpec, adapter.ChatOptions) (json.RawMessage, error) {
	return func(context.Context, []adapter.Message, adapter.ToolSpec, adapter.ChatOptions) (json.RawMessage, error) {
		return json.RawMessage(blocks), nil
	}
}

func newBuilder(profiles *fakeProfileRepo, ai *fakeAI, vision *fakeVision, photos *fakePhotoStore) ProfileBuilderUseCase {
	logger := zerolog.Nop()
	if photos == nil {
		photos = &fakePhotoStore{objects: map[string][]byte{}}
	}
	return NewProfileBuilderUseCase(profiles, ai, vision, photos, &logger)
}

func finishedInterviewee() *model.Profile {
	p := interviewee()
	session := model.NewSession(time.Now().Add(-time.Hour))
	session.AddUserTurn("I climb and I bake sourdough", false)
	session.AddAssistantTurn(model.Turn{Role: "assistant", Content: "Tell me more"}, 50)
	session.Finish()
	p.Sessions = []model.Session{session}
	p.Photos = []model.Photo{{Key: "photo-1", Description: "summit selfie"}}
	return p
}

const wellFormedBlocks = `{"blocks":[
	{"photo":{"images":[{"key":"photo-1"}]}},
	{"gas":{"text":"Sam bakes bread that rises faster than his heart rate on a climb"}}
]}`

func buildJob(payload any) *model.Job {
	return &model.Job{ID: "j1", Name: JobBuildProfile, Data: marshalPayload(payload)}
}

func TestBuildProfilePersistsBlocks(t *testing.T) {
	profiles := newFakeProfileRepo(finishedInterviewee())
	ai := &fakeAI{structuredFn: constructReply(wellFormedBlocks)}
	uc := newBuilder(profiles, ai, &fakeVision{}, nil)

	err := uc.HandleBuildProfile(context.Background(), buildJob(BuildProfilePayload{ProfileID: "p1"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	blocks := profiles.savedBlocks["p1"]
	if len(blocks) != 2 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Type != model.BlockTypePhoto || blocks[0].Photo.Keys[0] != "photo-1" {
		t.Fatalf("first block = %+v", blocks[0])
	}
	if blocks[1].Type != model.BlockTypeGas || blocks[1].Gas.Text == "" {
		t.Fatalf("second block = %+v", blocks[1])
	}
}

func TestBuildProfileWithoutFinishedSessionIsPermanent(t *testing.T) {
	profiles := newFakeProfileRepo(interviewee()) // no sessions at all
	uc := newBuilder(profiles, &fakeAI{}, &fakeVision{}, nil)

	err := uc.HandleBuildProfile(context.Background(), buildJob(BuildProfilePayload{ProfileID: "p1"}))
	if !errors.Is(err, domain.ErrNoFinishedSession) {
		t.Fatalf("expected no-finished-session, got %v", err)
	}
	if !domain.IsPermanent(err) {
		t.Fatal("missing precondition must not be retried")
	}
}

func TestBuildProfileMalformedPayloadIsPermanent(t *testing.T) {
	uc := newBuilder(newFakeProfileRepo(), &fakeAI{}, &fakeVision{}, nil)

	job := &model.Job{ID: "j1", Name: JobBuildProfile, Data: json.RawMessage(`{"profileId": 7}`)}
	err := uc.HandleBuildProfile(context.Background(), job)
	if !errors.Is(err, domain.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
	if !domain.IsPermanent(err) {
		t.Fatal("malformed payload must not be retried")
	}
}

func TestBuildProfileMalformedBlocksRetryable(t *testing.T) {
	cases := []struct {
		name   string
		blocks string
	}{
		{"empty", `{"blocks":[]}`},
		{"first not photo", `{"blocks":[{"gas":{"text":"hi"}},{"photo":{"images":[{"key":"photo-1"}]}}]}`},
		{"both kinds set", `{"blocks":[{"photo":{"images":[{"key":"k"}]},"gas":{"text":"hi"}}]}`},
		{"empty gas", `{"blocks":[{"photo":{"images":[{"key":"k"}]}},{"gas":{"text":""}}]}`},
		{"photo without keys", `{"blocks":[{"photo":{"images":[]}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profiles := newFakeProfileRepo(finishedInterviewee())
			ai := &fakeAI{structuredFn: constructReply(tc.blocks)}
			uc := newBuilder(profiles, ai, &fakeVision{}, nil)

			err := uc.HandleBuildProfile(context.Background(), buildJob(BuildProfilePayload{ProfileID: "p1"}))
			if !errors.Is(err, domain.ErrMalformedModelOutput) {
				t.Fatalf("expected malformed model output, got %v", err)
			}
			if domain.IsPermanent(err) {
				t.Fatal("malformed output should retry, the next sample may be well formed")
			}
		})
	}
}

func TestBuildProfileDescribesPendingPhotosFirst(t *testing.T) {
	profile := finishedInterviewee()
	profile.Photos = []model.Photo{
		{Key: "photo-1", Description: "summit selfie"},
		{Key: "photo-2"},
	}
	profiles := newFakeProfileRepo(profile)
	vision := &fakeVision{}
	store := &fakePhotoStore{objects: map[string][]byte{"photo-2": []byte("jpeg2")}}
	ai := &fakeAI{structuredFn: constructReply(wellFormedBlocks)}
	uc := newBuilder(profiles, ai, vision, store)

	err := uc.HandleBuildProfile(context.Background(), buildJob(BuildProfilePayload{ProfileID: "p1"}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if vision.calls != 1 {
		t.Fatalf("vision calls = %d, described photos must not be re-run", vision.calls)
	}
	photos := profiles.savedPhotos["p1"]
	if len(photos) != 2 || photos[1].Description != "described: jpeg2" {
		t.Fatalf("photos = %+v", photos)
	}
	if photos[0].Description != "summit selfie" {
		t.Fatalf("existing description clobbered: %+v", photos[0])
	}
}

func TestProcessPhotosSkipsWhenAllDescribed(t *testing.T) {
	profiles := newFakeProfileRepo(finishedInterviewee())
	vision := &fakeVision{}
	uc := newBuilder(profiles, &fakeAI{}, vision, nil)

	job := &model.Job{ID: "j1", Name: JobProcessPhotos, Data: marshalPayload(ProcessPhotosPayload{ProfileID: "p1"})}
	if err := uc.HandleProcessPhotos(context.Background(), job); err != nil {
		t.Fatalf("process photos: %v", err)
	}
	if vision.calls != 0 {
		t.Fatalf("vision calls = %d", vision.calls)
	}
	if _, ok := profiles.savedPhotos["p1"]; ok {
		t.Fatal("nothing to describe, nothing should be written")
	}
}

func TestChangeProfilePersistsEvenWhenPhotoBlocksDrop(t *testing.T) {
	profile := finishedInterviewee()
	profile.Blocks = []model.Block{
		{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: []string{"photo-1"}}},
		{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: []string{"photo-2"}}},
		{Type: model.BlockTypeGas, Gas: &model.GasBlock{Text: "old blurb"}},
	}
	profiles := newFakeProfileRepo(profile)
	ai := &fakeAI{structuredFn: constructReply(wellFormedBlocks)} // one photo block, down from two
	uc := newBuilder(profiles, ai, &fakeVision{}, nil)

	job := &model.Job{ID: "j1", Name: JobChangeProfile,
		Data: marshalPayload(ChangeProfilePayload{ProfileID: "p1", Changes: "make it punchier"})}
	if err := uc.HandleChangeProfile(context.Background(), job); err != nil {
		t.Fatalf("change: %v", err)
	}
	if blocks := profiles.savedBlocks["p1"]; model.PhotoBlockCount(blocks) != 1 {
		t.Fatalf("blocks = %+v", blocks)
	}
}
