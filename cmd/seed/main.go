package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"hotorbot/internal/config"
	"hotorbot/internal/domain/model"
	pg "hotorbot/internal/infra/db/postgres"
)

// Seeds a couple of bot profiles and one pending bot match so a local run
// has something for the sweep and chat jobs to chew on.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	profileRepo := pg.NewProfileRepo(pool)
	matchRepo := pg.NewMatchRepo(pool)

	bots := []*model.Profile{
		{
			FirstName:       "Maya",
			Gender:          "female",
			BirthDate:       time.Date(1997, 4, 12, 0, 0, 0, 0, time.UTC),
			DisplayLocation: "Austin, TX",
			Photos: []model.Photo{
				{Key: "seed/maya-1.jpg", Description: "A woman smiling on a hiking trail at sunset"},
				{Key: "seed/maya-2.jpg", Description: "A woman with friends at an outdoor concert"},
			},
			Blocks: []model.Block{
				{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: []string{"seed/maya-1.jpg"}}},
				{Type: model.BlockTypeGas, Gas: &model.GasBlock{Text: "Maya is an Austin-based graphic designer who spends her weekends chasing sunsets on hiking trails 🥾. She makes a mean breakfast taco and will absolutely beat you at mini golf ⛳."}},
				{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: []string{"seed/maya-2.jpg"}}},
			},
		},
		{
			FirstName:       "Jake",
			Gender:          "male",
			BirthDate:       time.Date(1995, 9, 3, 0, 0, 0, 0, time.UTC),
			DisplayLocation: "Miami, FL",
			Photos: []model.Photo{
				{Key: "seed/jake-1.jpg", Description: "A man cooking in a bright kitchen"},
			},
			Blocks: []model.Block{
				{Type: model.BlockTypePhoto, Photo: &model.PhotoBlock{Keys: []string{"seed/jake-1.jpg"}}},
				{Type: model.BlockTypeGas, Gas: &model.GasBlock{Text: "Jake is a Miami-based real-estate agent that likes to cook 👨‍🍳. In his free time he also likes to golf 🏌️ and read books 📖."}},
			},
		},
	}

	for _, b := range bots {
		if err := profileRepo.Save(ctx, nil, b); err != nil {
			log.Fatalf("save bot profile %s: %v", b.FirstName, err)
		}
		fmt.Printf("seeded bot profile %s (%s)\n", b.FirstName, b.ID)
	}

	user := &model.Profile{
		OwnerUserID:     "seed-user",
		FirstName:       "Sam",
		Gender:          "nonbinary",
		BirthDate:       time.Date(1998, 1, 20, 0, 0, 0, 0, time.UTC),
		DisplayLocation: "Austin, TX",
	}
	if err := profileRepo.Save(ctx, nil, user); err != nil {
		log.Fatalf("save user profile: %v", err)
	}
	fmt.Printf("seeded user profile %s (%s)\n", user.FirstName, user.ID)

	match := &model.Match{ProfileID: user.ID, MatchedProfileID: bots[0].ID}
	if err := matchRepo.Save(ctx, nil, match); err != nil {
		log.Fatalf("save match: %v", err)
	}
	fmt.Printf("seeded pending match %s\n", match.ID)
}
