package cli

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/auth"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/boot"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/platform"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/runctx"
)

// Options selects what Bootstrap sets up for a command.
type Options struct {
	Command    string
	ConfigPath string
	// Required lists configuration keys the command cannot run without.
	Required []string
	// NeedS3 makes a missing bucket fatal; otherwise S3 is created only
	// when a bucket is configured.
	NeedS3 bool
}

// App is everything a command needs after startup.
type App struct {
	Run     *runctx.RunContext
	Config  *config.Config
	CVAT    *cvat.Client
	S3      *s3.Client
	Metrics *metrics.Recorder
	Fetcher *platform.Fetcher
}

// Bootstrap loads configuration, opens the per-run log file, resolves the
// API key, and creates the platform and storage clients. Failures are
// fatal: nothing has touched the network yet.
func Bootstrap(ctx context.Context, opts Options) *App {
	initStart := time.Now()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		HandleConfigError(err)
	}
	required := append([]string{"cvat.url"}, opts.Required...)
	if opts.NeedS3 {
		required = append(required, "s3.bucket_name")
	}
	if err := cfg.Validate(required...); err != nil {
		HandleConfigError(err)
	}

	rc, err := runctx.New(opts.Command, cfg, initStart)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare output directories")
	}
	logFile, err := logging.InitWithFile(rc.LogPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open log file")
	}
	rc.LogFile = logFile

	rec := metrics.New(opts.Command).Dimension("runId", rc.ID)

	apiKey, source, err := boot.LoadAPIKey(ctx, cfg)
	if err != nil {
		HandleValidationError(err)
	}
	client := cvat.NewClient(cfg.CVAT.URL, apiKey,
		cvat.WithOrganization(cfg.Organization.Slug),
		cvat.WithTimeout(cfg.Timeout()),
		cvat.WithRetries(cfg.CVAT.Retries),
		cvat.WithRequestHook(func() { rec.Count(metrics.Requests) }),
	)
	if _, err := auth.ValidateAPIKey(ctx, client); err != nil {
		HandleValidationError(err)
	}

	app := &App{
		Run:     rc,
		Config:  cfg,
		CVAT:    client,
		Metrics: rec,
		Fetcher: platform.NewFetcher(client,
			platform.WithWorkers(cfg.Workers),
			platform.WithExcluded(cfg.ExcludedTasks),
			platform.WithRecorder(rec),
		),
	}

	if cfg.S3Enabled() {
		awsCfg, err := boot.LoadAWSConfig(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS configuration")
		}
		app.S3 = boot.NewS3(awsCfg, cfg.S3)
	}

	boot.StartupLog(opts.Command, initStart).
		RunID(rc.ID).
		Bucket("frames", cfg.S3.BucketName).
		DynamoTable("snapshots", cfg.Snapshot.Table).
		SSMParam("apiKey", cfg.CVAT.APIKeySSMParam).
		Dir("reports", rc.ReportDir).
		Dir("logs", rc.LogDir).
		Feature("s3", cfg.S3Enabled()).
		Feature("jobFileMapping", cfg.UseJobFileMapping).
		Config("url", cfg.CVAT.URL).
		Config("org", cfg.Organization.Slug).
		Config("apiKeySource", string(source)).
		Config("configFile", cfg.Path()).
		Log()

	log.Logger = log.Logger.Hook(fatalHook{app: app})
	return app
}

// fatalHook writes the run summary before a fatal event exits the process.
// Deferred Close calls never run after log.Fatal; zerolog closes the log
// writers itself.
type fatalHook struct {
	app *App
}

func (h fatalHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level != zerolog.FatalLevel {
		return
	}
	h.app.Metrics.
		Property("status", "failed").
		Property("fatal", msg).
		Property("logFile", h.app.Run.LogPath()).
		Flush()
}

// Close flushes the run summary and closes the log file.
func (a *App) Close() {
	a.Metrics.Property("logFile", a.Run.LogPath()).Flush()
	if err := a.Run.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close log file")
	}
}
