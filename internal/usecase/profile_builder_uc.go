package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hotorbot/internal/domain"
	"hotorbot/internal/domain/model"
	"hotorbot/internal/domain/ports/adapter"
	"hotorbot/internal/domain/ports/repository"
)

// ProfileBuilderUseCase turns interview transcripts and photos into profile
// blocks. Its methods are queue handlers.
type ProfileBuilderUseCase interface {
	HandleBuildProfile(ctx context.Context, job *model.Job) error
	HandleChangeProfile(ctx context.Context, job *model.Job) error
	HandleProcessPhotos(ctx context.Context, job *model.Job) error
}

var _ ProfileBuilderUseCase = (*profileBuilderUC)(nil)

type profileBuilderUC struct {
	profiles repository.ProfileRepository
	ai       adapter.AIAdapter
	vision   adapter.VisionAdapter
	photos   adapter.PhotoStore
	log      *zerolog.Logger
}

func NewProfileBuilderUseCase(
	profiles repository.ProfileRepository,
	ai adapter.AIAdapter,
	vision adapter.VisionAdapter,
	photos adapter.PhotoStore,
	logger *zerolog.Logger,
) *profileBuilderUC {
	l := logger.With().Str("component", "ProfileBuilder").Logger()
	return &profileBuilderUC{profiles: profiles, ai: ai, vision: vision, photos: photos, log: &l}
}

func (u *profileBuilderUC) HandleBuildProfile(ctx context.Context, job *model.Job) error {
	var p BuildProfilePayload
	if err := decodePayload(job.Name, job.Data, &p); err != nil {
		return err
	}
	u.log.Info().Str("profile_id", p.ProfileID).Msg("building profile")

	profile, err := u.profiles.FindByID(ctx, nil, p.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", p.ProfileID, err)
	}

	session := profile.FinishedSession()
	if session == nil {
		return domain.Permanent(fmt.Errorf("%w: profile %s", domain.ErrNoFinishedSession, p.ProfileID))
	}

	if err := u.describePhotos(ctx, profile); err != nil {
		return err
	}

	messages := []adapter.Message{
		{Role: "system", Content: "Construct a profile using the following conversation:"},
	}
	for _, t := range session.Turns {
		messages = append(messages, adapter.Message{Role: t.Role, Content: t.Content})
	}

	blocks, err := u.construct(ctx, profile, messages)
	if err != nil {
		return err
	}
	return u.profiles.UpdateBlocks(ctx, nil, profile.ID, blocks)
}

func (u *profileBuilderUC) HandleChangeProfile(ctx context.Context, job *model.Job) error {
	var p ChangeProfilePayload
	if err := decodePayload(job.Name, job.Data, &p); err != nil {
		return err
	}
	u.log.Info().Str("profile_id", p.ProfileID).Str("changes", p.Changes).Msg("changing profile")

	profile, err := u.profiles.FindByID(ctx, nil, p.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", p.ProfileID, err)
	}

	messages := []adapter.Message{
		{Role: "system", Content: fmt.Sprintf(changeProfilePrompt, p.Changes, blocksJSON(profile.Blocks))},
	}
	blocks, err := u.construct(ctx, profile, messages)
	if err != nil {
		return err
	}

	// The photo floor is asked of the model, not enforced. Log when it
	// slips so the drift is visible.
	if model.PhotoBlockCount(blocks) < model.PhotoBlockCount(profile.Blocks) {
		u.log.Warn().
			Str("profile_id", profile.ID).
			Int("before", model.PhotoBlockCount(profile.Blocks)).
			Int("after", model.PhotoBlockCount(blocks)).
			Msg("edited profile dropped photo blocks")
	}
	return u.profiles.UpdateBlocks(ctx, nil, profile.ID, blocks)
}

func (u *profileBuilderUC) HandleProcessPhotos(ctx context.Context, job *model.Job) error {
	var p ProcessPhotosPayload
	if err := decodePayload(job.Name, job.Data, &p); err != nil {
		return err
	}
	profile, err := u.profiles.FindByID(ctx, nil, p.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", p.ProfileID, err)
	}
	return u.describePhotos(ctx, profile)
}

// describePhotos fills in missing photo descriptions and persists the
// updated pool. Already-described photos are never re-run.
func (u *profileBuilderUC) describePhotos(ctx context.Context, profile *model.Profile) error {
	pending := profile.UndescribedPhotos()
	if len(pending) == 0 {
		return nil
	}
	u.log.Info().Str("profile_id", profile.ID).Int("count", len(pending)).Msg("describing photos")

	for i := range profile.Photos {
		if profile.Photos[i].Described() {
			continue
		}
		data, mime, err := u.photos.Fetch(ctx, profile.Photos[i].Key)
		if err != nil {
			return fmt.Errorf("fetch photo %s: %w", profile.Photos[i].Key, err)
		}
		desc, err := u.vision.DescribePhoto(ctx, data, mime)
		if err != nil {
			return fmt.Errorf("describe photo %s: %w", profile.Photos[i].Key, err)
		}
		profile.Photos[i].Description = desc
	}
	return u.profiles.UpdatePhotos(ctx, nil, profile.ID, profile.Photos)
}

// construct runs the forced construct tool call and validates its shape.
func (u *profileBuilderUC) construct(ctx context.Context, profile *model.Profile, seed []adapter.Message) ([]model.Block, error) {
	messages := append([]adapter.Message{
		{Role: "system", Content: fmt.Sprintf(constructionPrompt, profileSummary(profile, time.Now()), photosJSON(profile.Photos))},
	}, seed...)

	raw, err := u.ai.CompleteStructured(ctx, messages, constructTool(), adapter.ChatOptions{
		Temperature: 1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("construct call: %w", err)
	}

	var args constructArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, err)
	}
	blocks, err := args.toBlocks()
	if err != nil {
		return nil, err
	}
	if n := len(blocks); n < 5 || n > 7 {
		u.log.Warn().Str("profile_id", profile.ID).Int("blocks", n).Msg("construct returned unusual block count")
	}
	return blocks, nil
}

type constructArgs struct {
	Blocks []constructBlock `json:"blocks"`
}

type constructBlock struct {
	Photo *struct {
		Images []struct {
			Key string `json:"key"`
		} `json:"images"`
	} `json:"photo,omitempty"`
	Gas *struct {
		Text string `json:"text"`
	} `json:"gas,omitempty"`
}

func (a constructArgs) toBlocks() ([]model.Block, error) {
	if len(a.Blocks) == 0 {
		return nil, fmt.Errorf("%w: construct returned no blocks", domain.ErrMalformedModelOutput)
	}
	out := make([]model.Block, 0, len(a.Blocks))
	for i, b := range a.Blocks {
		switch {
		case b.Photo != nil && b.Gas == nil:
			keys := make([]string, 0, len(b.Photo.Images))
			for _, img := range b.Photo.Images {
				if img.Key != "" {
					keys = append(keys, img.Key)
				}
			}
			if len(keys) == 0 {
				return nil, fmt.Errorf("%w: photo block %d has no keys", domain.ErrMalformedModelOutput, i)
			}
			out = append(out, model.Block{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: keys}})
		case b.Gas != nil && b.Photo == nil:
			if b.Gas.Text == "" {
				return nil, fmt.Errorf("%w: gas block %d is empty", domain.ErrMalformedModelOutput, i)
			}
			out = append(out, model.Block{Type: model.BlockTypeGas, Gas: &model.GasBlock{Text: b.Gas.Text}})
		default:
			return nil, fmt.Errorf("%w: block %d is neither photo nor gas", domain.ErrMalformedModelOutput, i)
		}
	}
	if out[0].Type != model.BlockTypePhoto {
		return nil, fmt.Errorf("%w: first block must be a photo", domain.ErrMalformedModelOutput)
	}
	return out, nil
}

func constructTool() adapter.ToolSpec {
	return adapter.ToolSpec{
		Name:        "construct",
		Description: "Construct the final profile blocks",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"blocks"},
			"properties": map[string]any{
				"blocks": map[string]any{
					"type": "array",
					"items": map[string]any{
						"oneOf": []any{
							map[string]any{
								"type":        "object",
								"description": "A set of photos from the user's collection",
								"required":    []string{"photo"},
								"properties": map[string]any{
									"photo": map[string]any{
										"type":     "object",
										"required": []string{"images"},
										"properties": map[string]any{
											"images": map[string]any{
												"type": "array",
												"items": map[string]any{
													"type":     "object",
													"required": []string{"key"},
													"properties": map[string]any{
														"key": map[string]any{
															"type":        "string",
															"description": "The photo key",
														},
													},
												},
											},
										},
									},
								},
							},
							map[string]any{
								"type":        "object",
								"description": "A paragraph of text telling potential suitors something exciting about the client's personality, character, or life. Should be in a fun, whimsical, approachable tone and use jokes / puns / wordplay when possible. Use of emojis is encouraged. Should be written in the third person.",
								"required":    []string{"gas"},
								"properties": map[string]any{
									"gas": map[string]any{
										"type":     "object",
										"required": []string{"text"},
										"properties": map[string]any{
											"text": map[string]any{
												"type":        "string",
												"description": "The text, feel free to use emojis and markdown for bolding/italics etc.",
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}
}
