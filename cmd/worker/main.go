package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/infra"
	"storyforge/internal/infra/credentials"
	"storyforge/internal/ledger"
	"storyforge/internal/orchestrator"
	"storyforge/internal/pipeline"
	"storyforge/internal/providers/assemblyai"
	"storyforge/internal/providers/falai"
	"storyforge/internal/providers/gemini"
	"storyforge/internal/providers/pexels"
	"storyforge/internal/providers/speech"
	"storyforge/internal/sqlinline"
	"storyforge/internal/storage"
)

const (
	jobPollInterval   = 2 * time.Second
	staleResetEvery   = time.Minute
	staleAfterSeconds = 15 * 60
)

var errNoJobAvailable = errors.New("no job available")

type jobWorker struct {
	runner *infra.SQLRunner
	logger infra.Logger
	jobs   *repo.PipelineJobRepositoryPG
	orch   *orchestrator.Orchestrator
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: redis unavailable, running without remaining-counts cache")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	storagePath := cfg.StorageDir
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	usageRepo := repo.NewUsageRepository(pool, cfg.DefaultImageLimit, cfg.DefaultVideoLimit)
	jobRepo := repo.NewPipelineJobRepository(pool)
	artifactRepo := repo.NewArtifactRepository(pool)

	usageLedger := ledger.New(usageRepo, logger,
		ledger.WithCache(ledger.NewCache(redisClient)),
		ledger.WithEventSink(ledger.NewSQLEventSink(runner)),
	)

	credStore := credentials.NewStore(runner)
	httpClient := &http.Client{Timeout: 90 * time.Second}

	falClient := falai.NewClient(falai.Options{
		APIKey:     credStore.TokenOr(ctx, credentials.ProviderFal, cfg.FalAPIKey),
		BaseURL:    cfg.FalBaseURL,
		QueueURL:   cfg.FalQueueURL,
		ImageModel: cfg.FalImageModel,
		VideoModel: cfg.FalVideoModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	geminiClient := gemini.NewClient(gemini.Options{
		APIKey:     credStore.TokenOr(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey),
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	pexelsClient := pexels.NewClient(pexels.Options{
		APIKey:     credStore.TokenOr(ctx, credentials.ProviderPexels, cfg.PexelsAPIKey),
		BaseURL:    cfg.PexelsBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	speechClient := speech.NewClient(speech.Options{
		APIKey:     credStore.TokenOr(ctx, credentials.ProviderSpeech, cfg.SpeechAPIKey),
		Region:     cfg.SpeechRegion,
		BaseURL:    cfg.SpeechBaseURL,
		Voice:      cfg.SpeechVoice,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	transcriber := assemblyai.NewClient(assemblyai.Options{
		APIKey:     credStore.TokenOr(ctx, credentials.ProviderAssemblyAI, cfg.AssemblyAIAPIKey),
		BaseURL:    cfg.AssemblyAIBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})

	poller := pipeline.NewPoller(cfg.PollInterval, cfg.PollMaxAttempts)
	scriptStage := pipeline.NewScriptStage(geminiClient)
	stages := orchestrator.Stages{
		Script:   scriptStage,
		Imager:   pipeline.NewImageStage(falClient, artifactRepo, "16:9"),
		Animator: pipeline.NewVideoStage(falClient, artifactRepo, poller),
		Short: []pipeline.Stage{
			scriptStage,
			pipeline.NewPromptifyStage(geminiClient),
			pipeline.NewStockImageStage(pexelsClient, artifactRepo),
			pipeline.NewAudioStage(speechClient, artifactRepo, fileStore, cfg.SpeechVoice),
			pipeline.NewCaptionStage(transcriber, artifactRepo, fileStore, poller),
			pipeline.NewComposeStage(artifactRepo, fileStore),
		},
	}

	worker := &jobWorker{
		runner: runner,
		logger: logger,
		jobs:   jobRepo,
		orch:   orchestrator.New(usageLedger, jobRepo, stages, logger),
	}

	logger.Info().Msg("worker: started")
	worker.run(ctx)
	logger.Info().Msg("worker: stopped")
}

func (w *jobWorker) run(ctx context.Context) {
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	staleTicker := time.NewTicker(staleResetEvery)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-staleTicker.C:
			w.resetStale(ctx)
		case <-ticker.C:
			for {
				if err := w.claimAndRun(ctx); err != nil {
					if !errors.Is(err, errNoJobAvailable) && !errors.Is(err, context.Canceled) {
						w.logger.Error().Err(err).Msg("worker: job run failed")
					}
					break
				}
			}
		}
	}
}

func (w *jobWorker) claimAndRun(ctx context.Context) error {
	row := w.runner.QueryRow(ctx, sqlinline.QClaimPipelineJob)
	var jobID string
	if err := row.Scan(&jobID); err != nil {
		if infra.IsNoRows(err) {
			return errNoJobAvailable
		}
		return err
	}

	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	w.logger.Info().Str("job_id", job.ID).Str("kind", string(job.Kind)).Msg("worker: job claimed")
	return w.orch.Run(ctx, job)
}

func (w *jobWorker) resetStale(ctx context.Context) {
	if _, err := w.runner.Exec(ctx, sqlinline.QResetStalePipelineJobs, staleAfterSeconds); err != nil {
		w.logger.Warn().Err(err).Msg("worker: stale job reset failed")
	}
}
