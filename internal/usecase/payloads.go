package usecase

import (
	"encoding/json"
	"fmt"

	"hotorbot/internal/domain"
)

// Job names. Handlers register under these with the queue engine.
const (
	JobBuildProfile   = "buildProfile"
	JobChangeProfile  = "changeProfile"
	JobProcessPhotos  = "processPhotos"
	JobSendBotMessage = "sendBotMessage"
	JobMatchBots      = "matchBots"
)

// Each job name owns a typed payload, unmarshalled and validated at the
// handler boundary. A payload that does not parse fails the job for good.

type BuildProfilePayload struct {
	ProfileID string `json:"profileId"`
}

type ChangeProfilePayload struct {
	ProfileID string `json:"profileId"`
	Changes   string `json:"changes"`
}

type ProcessPhotosPayload struct {
	ProfileID string `json:"profileId"`
}

type SendBotMessagePayload struct {
	MatchID string `json:"matchId"`
}

func decodePayload(name string, data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return domain.Permanent(fmt.Errorf("%w: %s: %v", domain.ErrMalformedPayload, name, err))
	}
	return nil
}

// BuildProfileSingletonKey dedupes the construction job per profile: a
// finished interview enqueues at most one live build.
func BuildProfileSingletonKey(profileID string) string {
	return JobBuildProfile + ":" + profileID
}
