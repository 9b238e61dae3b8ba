package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"docpipe/internal/classify"
	"docpipe/internal/config"
	"docpipe/internal/drive"
	"docpipe/internal/firestore"
	"docpipe/internal/ocr"
	"docpipe/internal/pubsub"
	"docpipe/internal/sheets"
	"docpipe/internal/stages"
	"docpipe/internal/storage"
)

// app holds the shared clients of one process.
type app struct {
	config    *config.Config
	drive     *drive.Service
	storage   *storage.Client
	publisher *pubsub.Publisher
	records   *firestore.Store
	extractor ocr.TextExtractor
	closers   []func() error
	log       zerolog.Logger
}

// newApp creates every client the stages need. Clients are shared by all
// requests.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{config: cfg, log: log}
	opts := config.ClientOptions(config.Env{})

	var err error
	if a.drive, err = newDriveService(ctx); err != nil {
		return nil, err
	}

	if a.storage, err = storage.NewClient(ctx, opts...); err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, a.storage.Close)

	if a.publisher, err = pubsub.NewPublisher(ctx, cfg.ProjectID, opts...); err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, a.publisher.Close)

	if a.records, err = firestore.NewStore(ctx, cfg.ProjectID, cfg.FirestoreCollection, opts...); err != nil {
		return nil, a.fail(err)
	}
	a.closers = append(a.closers, a.records.Close)

	router, closeExtractor, err := newExtractor(ctx, cfg, opts)
	if err != nil {
		return nil, a.fail(err)
	}
	a.extractor = router
	a.closers = append(a.closers, closeExtractor)

	return a, nil
}

// handlers returns every stage keyed by its route name. The classification
// stage is only mounted when an OpenAI key is configured.
func (a *app) handlers(ctx context.Context) (map[string]stages.Handler, error) {
	cfg := a.config
	handlers := map[string]stages.Handler{
		stages.StageDiscovery:   a.discovery(),
		stages.StagePreparation: stages.NewPreparation(a.drive, a.storage, cfg.RawBucket),
		stages.StageExtraction:  stages.NewExtraction(a.storage, a.extractor, cfg.ResultsBucket),
		stages.StagePersistence: stages.NewPersistence(a.storage, a.records),
	}

	if cfg.OpenAIAPIKey == "" {
		a.log.Warn().Msg("OPENAI_API_KEY not set, classification stage disabled")
		return handlers, nil
	}

	classifier, err := classify.NewService(cfg.OpenAIAPIKey, classify.ServiceConfig{
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
	})
	if err != nil {
		return nil, err
	}

	var ledger stages.ReviewLedger
	if cfg.ReviewSheetURL != "" {
		l, err := newLedger(ctx, cfg.ReviewSheetURL)
		if err != nil {
			return nil, err
		}
		ledger = l
	}

	handlers[stages.StageClassification] = stages.NewClassification(a.records, a.drive, classifier, ledger, stages.ClassificationConfig{
		CategoryRootFolderID:  cfg.CategoryRootFolderID,
		UncategorizedFolderID: cfg.UncategorizedFolderID,
	})
	return handlers, nil
}

func (a *app) discovery() *stages.Discovery {
	return stages.NewDiscovery(a.drive, a.publisher, a.config.PreparationTopic, a.config.DriveFolderID)
}

// Close releases every client, logging failures.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}

func (a *app) fail(err error) error {
	a.Close()
	return err
}

func newDriveService(ctx context.Context) (*drive.Service, error) {
	creds, err := config.Credentials(ctx, config.Env{}, drivev3.DriveScope)
	if err != nil {
		return nil, err
	}
	return drive.NewService(ctx, option.WithCredentials(creds))
}

func newLedger(ctx context.Context, sheetURL string) (*sheets.Ledger, error) {
	creds, err := config.Credentials(ctx, config.Env{}, sheetsv4.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	return sheets.NewLedger(ctx, sheetURL, sheets.DefaultSheetName, option.WithCredentials(creds))
}

// newExtractor builds the configured OCR engine behind a Router so text/*
// content is read directly. The returned func closes the engine client.
func newExtractor(ctx context.Context, cfg *config.Config, opts []option.ClientOption) (*ocr.Router, func() error, error) {
	switch cfg.OCREngine {
	case ocr.EngineDocumentAI:
		d, err := ocr.NewDocumentAIExtractor(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.ProjectID,
			Location:    cfg.DocumentAILocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		}, opts...)
		if err != nil {
			return nil, nil, err
		}
		return &ocr.Router{OCR: d}, d.Close, nil
	case ocr.EngineVision, "":
		v, err := ocr.NewVisionExtractor(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		return &ocr.Router{OCR: v}, v.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown OCR engine %q", cfg.OCREngine)
	}
}
