package main

import (
	"context"
	"fmt"
	"time"

	"trainingdesk/internal/cache"
	"trainingdesk/internal/checklist"
	"trainingdesk/internal/completeness"
	"trainingdesk/internal/db"
	"trainingdesk/internal/documents"
	"trainingdesk/internal/notify"
	"trainingdesk/internal/storage"
	"trainingdesk/internal/store"
	"trainingdesk/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func seconds(n uint) time.Duration {
	return time.Duration(n) * time.Second
}

// services holds every client and component a command may need. Clients
// are built once here and injected.
type services struct {
	pool      *pgxpool.Pool
	redis     *redis.Client
	publisher *notify.RedisPublisher

	docs      *store.DocumentRepository
	docTypes  *store.DocumentTypeRepository
	owners    *store.OwnerRepository
	items     *store.ChecklistRepository
	templates *store.ChecklistTemplateRepository

	notifier  notify.Notifier
	evaluator *completeness.Evaluator
	engine    *checklist.Engine
	registry  *documents.Registry
}

// openServices connects to Postgres and Redis and builds the checklist
// engine and completeness evaluator. withStorage also connects to the object
// store and builds the document registry.
func openServices(ctx context.Context, cfg *types.Config, logger *logrus.Logger, withStorage bool) (*services, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &services{
		pool:      pool,
		docs:      store.NewDocumentRepository(pool),
		docTypes:  store.NewDocumentTypeRepository(pool),
		owners:    store.NewOwnerRepository(pool),
		items:     store.NewChecklistRepository(pool),
		templates: store.NewChecklistTemplateRepository(pool),
	}

	s.redis, err = cache.Connect(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	if s.redis != nil {
		s.publisher = notify.NewRedisPublisher(s.redis, cfg.NotifyChannel, logger)
		s.notifier = s.publisher
	} else {
		logger.Warn("REDIS_ADDR not set, notifications are only logged")
		s.notifier = notify.NewLogNotifier(logger)
	}

	policy, err := completeness.ParsePolicy(cfg.CompletenessPolicy)
	if err != nil {
		s.Close()
		return nil, err
	}

	timeout := seconds(cfg.OperationTimeoutSec)
	s.evaluator = completeness.New(logger, s.docs, s.docTypes, s.notifier, policy, timeout)
	s.engine = checklist.New(logger, s.items, s.templates, timeout)

	if !withStorage {
		return s, nil
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	s3Client, presigner, err := newS3Clients(awsConfig, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	synchronizer := storage.New(logger, s3Client, presigner, storage.Options{
		Bucket:        cfg.S3BucketName,
		PublicBaseURL: cfg.S3PublicBaseURL,
		Parallelism:   cfg.RenameParallelism,
	})

	var leaser cache.Leaser = cache.NewLocalLeaser()
	if s.redis != nil {
		leaser = cache.NewRedisLeaser(s.redis)
	}

	s.registry = documents.New(logger, s.docs, s.docTypes, s.owners, synchronizer, leaser, s.notifier, s.evaluator, documents.Options{
		MaxUploadBytes:   cfg.MaxUploadBytes,
		OperationTimeout: timeout,
		RenameTimeout:    seconds(cfg.RenameTimeoutSec),
		RenameLease:      seconds(cfg.RenameLeaseSec),
		PreviewTTL:       seconds(cfg.PreviewURLTTLSec),
		ExportTTL:        seconds(cfg.ExportURLTTLSec),
	})

	return s, nil
}

// Close flushes pending notifications before closing the connections they
// need.
func (s *services) Close() {
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.pool.Close()
}
