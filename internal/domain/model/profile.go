package model

import "time"

// Photo is one image in a profile's pool, referenced by its storage key.
// Description is filled in by the photo-understanding job before profile
// construction uses it.
type Photo struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
}

// Described reports whether photo understanding has already run for this photo.
func (p Photo) Described() bool { return p.Description != "" }

type BlockType string

const (
	BlockTypePhoto BlockType = "photo"
	BlockTypeGas   BlockType = "gas"
)

// Block is one unit of rendered profile content. Exactly one of Photo or Gas
// is set, keyed by Type; the construction call is constrained to this shape.
type Block struct {
	Type  BlockType   `json:"type"`
	Photo *PhotoBlock `json:"photo,omitempty"`
	Gas   *GasBlock   `json:"gas,omitempty"`
}

// PhotoBlock groups one or more photos from the profile's pool.
type PhotoBlock struct {
	Keys []string `json:"keys"`
}

// GasBlock is a short third-person blurb talking the client up.
type GasBlock struct {
	Text string `json:"text"`
}

// Profile is the aggregate for one dating profile. Bot profiles have no
// OwnerUserID; that absence is what marks a match side as bot-driven.
type Profile struct {
	ID              string
	OwnerUserID     string
	FirstName       string
	Gender          string
	BirthDate       time.Time
	DisplayLocation string
	Photos          []Photo
	Blocks          []Block
	Sessions        []Session
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsBot reports whether this profile is system-driven.
func (p *Profile) IsBot() bool { return p.OwnerUserID == "" }

// Age computes the profile's age in whole years at now.
func (p *Profile) Age(now time.Time) int {
	years := now.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}

// FinishedSession returns the most recent finished interview session, or nil.
func (p *Profile) FinishedSession() *Session {
	for i := len(p.Sessions) - 1; i >= 0; i-- {
		if p.Sessions[i].State == SessionFinished {
			return &p.Sessions[i]
		}
	}
	return nil
}

// UndescribedPhotos returns the photos still waiting on a description.
func (p *Profile) UndescribedPhotos() []Photo {
	var out []Photo
	for _, ph := range p.Photos {
		if !ph.Described() {
			out = append(out, ph)
		}
	}
	return out
}

// PhotoBlockCount counts the photo blocks in the current layout.
func PhotoBlockCount(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		if b.Type == BlockTypePhoto {
			n++
		}
	}
	return n
}
