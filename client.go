// Package warroom assembles the document intake pipeline from configuration.
// Embedding programs construct a Client and use the service facade; the CLI
// does the same.
package warroom

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ianbrucey/war-room-sub000/internal/analyze"
	"github.com/ianbrucey/war-room-sub000/internal/artifact"
	"github.com/ianbrucey/war-room-sub000/internal/cache"
	"github.com/ianbrucey/war-room-sub000/internal/config"
	"github.com/ianbrucey/war-room-sub000/internal/extract"
	"github.com/ianbrucey/war-room-sub000/internal/index"
	"github.com/ianbrucey/war-room-sub000/internal/jobs"
	"github.com/ianbrucey/war-room-sub000/internal/llm"
	"github.com/ianbrucey/war-room-sub000/internal/manifest"
	"github.com/ianbrucey/war-room-sub000/internal/notify"
	"github.com/ianbrucey/war-room-sub000/internal/pipeline"
	"github.com/ianbrucey/war-room-sub000/internal/reconcile"
	"github.com/ianbrucey/war-room-sub000/internal/service"
	"github.com/ianbrucey/war-room-sub000/internal/store"
)

// Client is the assembled intake system.
type Client struct {
	Service    *service.DocumentService
	Pipeline   *pipeline.Pipeline
	Reconciler *reconcile.Reconciler
	Store      store.Store
	Artifacts  artifact.Store

	executor *jobs.TaskExecutor
}

// NewClient wires the pipeline, stores and adapters from configuration.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := config.GetDB(cfg)
	if err != nil {
		return nil, err
	}
	st := store.NewGormStore(db)

	var artifacts artifact.Store
	switch cfg.ArtifactBackend {
	case "minio":
		artifacts, err = artifact.NewMinioStore(ctx, artifact.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSecure,
		})
		if err != nil {
			return nil, err
		}
	default:
		artifacts = artifact.NewFSStore(cfg.DataDir)
	}

	llmClient := &llm.Client{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		ChatModel:  cfg.LLMModel,
		EmbedModel: cfg.EmbedModel,
		HTTPClient: &http.Client{Timeout: cfg.LLMTimeout},
	}

	textLayer := extract.NewTextLayer(cfg.MaxPages)
	var extractor extract.Extractor = textLayer
	if cfg.OCRAPIKey != "" {
		ocr := &extract.OCRClient{
			BaseURL:    cfg.OCRBaseURL,
			APIKey:     cfg.OCRAPIKey,
			Model:      cfg.OCRModel,
			MaxBytes:   cfg.MaxFileBytes,
			MaxPages:   cfg.MaxPages,
			HTTPClient: &http.Client{Timeout: cfg.OCRTimeout},
		}
		extractor = extract.NewRouter(ocr, textLayer)
	}

	analyzer := analyze.NewLLMAnalyzer(llmClient, cfg.AnalysisCap)

	indexer, err := index.NewQdrantIndex(ctx, llmClient, index.QdrantOptions{
		Host:       cfg.QdrantHost,
		Port:       cfg.QdrantPort,
		Collection: cfg.QdrantCollection,
		VectorDim:  uint64(cfg.EmbedDim),
	})
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.NewLogNotifier()}
	if cfg.RedisAddr != "" {
		notifiers = append(notifiers, notify.NewRedisNotifier(cfg.RedisAddr, cfg.RedisPassword))
	}
	if cfg.KafkaBrokers != "" {
		kafka, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logrus.Warnf("kafka notifier disabled: %v", err)
		} else {
			notifiers = append(notifiers, kafka)
		}
	}

	var mc cache.ManifestCache = cache.NewNopManifestCache()
	if cfg.RedisAddr != "" {
		mc = cache.NewRedisManifestCache(cfg.RedisAddr, cfg.RedisPassword)
	}
	aggregator := manifest.NewAggregator(st, artifacts, mc)

	pipe := pipeline.New(st, artifacts, extractor, analyzer, indexer, notifiers, aggregator, pipeline.Options{
		MaxFileBytes:  cfg.MaxFileBytes,
		MaxConcurrent: cfg.MaxConcurrent,
		RetryAttempts: cfg.RetryAttempts,
		RetryBaseWait: cfg.RetryBaseWait,
	})

	reconciler := reconcile.New(st, artifacts, cfg.StaleAfter, cfg.TrashRetention)

	executor := jobs.NewTaskExecutor(nil, []jobs.CronJob{
		jobs.NewReconcileSweepTask(cfg.ReconcileCron, st, reconciler, pipe),
	})

	return &Client{
		Service:    service.NewDocumentService(st, pipe, aggregator, indexer),
		Pipeline:   pipe,
		Reconciler: reconciler,
		Store:      st,
		Artifacts:  artifacts,
		executor:   executor,
	}, nil
}

// Start launches the background reconcile sweep.
func (c *Client) Start() {
	c.executor.Run()
}

// Close stops background work and waits for in-flight stages to finish.
func (c *Client) Close() error {
	c.executor.Stop()
	c.Pipeline.Wait()
	return nil
}
