package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotorbot/internal/config"
	"hotorbot/internal/domain/ports/adapter"
	aiAdapters "hotorbot/internal/infra/adapters/ai"
	speechAdapters "hotorbot/internal/infra/adapters/speech"
	"hotorbot/internal/infra/adapters/storage"
	pg "hotorbot/internal/infra/db/postgres"
	"hotorbot/internal/infra/logging"
	"hotorbot/internal/infra/metrics"
	"hotorbot/internal/infra/queue"
	red "hotorbot/internal/infra/redis"
	"hotorbot/internal/infra/web"
	"hotorbot/internal/infra/worker"
	"hotorbot/internal/stream"
	"hotorbot/internal/usecase"

	"github.com/rs/zerolog"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop providers allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	profileRepo := pg.NewProfileRepo(pool)
	matchRepo := pg.NewMatchRepo(pool)
	messageRepo := pg.NewMessageRepo(pool)

	// ---- Providers ----
	ai, vision, transcriber, synth, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("providers")
	}
	photoStore := storage.NewHTTPPhotoStore(cfg.Storage.PhotoBaseURL)

	// ---- Queue ----
	pool2 := worker.NewPool(cfg.Queue.Workers, logger)
	engine := queue.NewEngine(jobRepo, pool2, &cfg.Queue, logger)
	reaper := queue.NewReaper(jobRepo, &cfg.Queue, logger)
	cron := queue.NewCron(engine, locker, logger)

	// ---- Use cases ----
	cascade := stream.NewCascade(synth, logger)
	builderUC := usecase.NewProfileBuilderUseCase(profileRepo, ai, vision, photoStore, logger)
	botChatUC := usecase.NewBotChatUseCase(matchRepo, profileRepo, messageRepo, ai, logger)
	matchmakerUC := usecase.NewMatchmakerUseCase(matchRepo, profileRepo, ai, cfg.Match.MaxDelay, cfg.Match.VerdictModel, logger)
	interviewUC := usecase.NewInterviewUseCase(profileRepo, ai, transcriber, cascade, locker, engine, logger)

	engine.Register(usecase.JobBuildProfile, builderUC.HandleBuildProfile)
	engine.Register(usecase.JobChangeProfile, builderUC.HandleChangeProfile)
	engine.Register(usecase.JobProcessPhotos, builderUC.HandleProcessPhotos)
	engine.Register(usecase.JobSendBotMessage, botChatUC.HandleSendBotMessage)
	engine.Register(usecase.JobMatchBots, matchmakerUC.HandleMatchBots)

	if err := cron.Schedule(usecase.JobMatchBots, cfg.Match.SweepCron); err != nil {
		logger.Fatal().Err(err).Msg("cron")
	}

	pool2.Start(ctx)
	go engine.Run(ctx)
	go reaper.Run(ctx)
	go cron.Run(ctx)

	// ---- HTTP ----
	server := web.NewServer(interviewUC, engine, jobRepo,
		[]web.Pinger{pool, redisClient}, cfg.API.AdminKey, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.API.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	pool2.Stop()
	logger.Info().Msg("bye")
	os.Exit(0)
}

// buildProviders wires the external collaborators, falling back to noops in
// dev mode when keys are missing.
func buildProviders(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (adapter.AIAdapter, adapter.VisionAdapter, adapter.Transcriber, adapter.Synthesizer, error) {
	var (
		ai          adapter.AIAdapter
		vision      adapter.VisionAdapter
		transcriber adapter.Transcriber
		synth       adapter.Synthesizer
	)

	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.ChatModel)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ai = oa
		tr, err := speechAdapters.NewWhisperTranscriber(cfg.AI.OpenAIKey, cfg.AI.WhisperModel)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		transcriber = tr
	}
	if cfg.AI.GeminiKey != "" {
		gv, err := aiAdapters.NewGeminiVisionAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.VisionModel)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		vision = gv
	}
	if cfg.Speech.ElevenLabsKey != "" {
		el, err := speechAdapters.NewElevenLabsSynthesizer(cfg.Speech.ElevenLabsKey, cfg.Speech.VoiceID, cfg.Speech.Model)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		synth = el
	}

	if !cfg.Runtime.Dev {
		if ai == nil || vision == nil || transcriber == nil || synth == nil {
			return nil, nil, nil, nil, errors.New("missing provider keys: set ai.openai_key, ai.gemini_key and speech.elevenlabs_key")
		}
		return ai, vision, transcriber, synth, nil
	}

	noop := aiAdapters.NewNoopAIAdapter()
	noopSpeech := speechAdapters.NewNoopSpeech()
	if ai == nil {
		logger.Warn().Msg("dev mode: using noop AI adapter")
		ai = noop
	}
	if vision == nil {
		vision = noop
	}
	if transcriber == nil {
		transcriber = noopSpeech
	}
	if synth == nil {
		synth = noopSpeech
	}
	return ai, vision, transcriber, synth, nil
}
