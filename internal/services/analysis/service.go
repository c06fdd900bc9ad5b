package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/pkg/mq"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const analysisWorkers = 4

type job struct {
	AssetID  uuid.UUID `msgpack:"asset_id"`
	ImageUrl string    `msgpack:"image_url"`
}

// Status is a point-in-time snapshot of the background analysis run.
type Status struct {
	Queued    int64 `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Running   bool  `json:"running"`
}

// Service fans unreviewed assets out to a worker pool and writes the
// analysis verdict back onto each asset.
type Service struct {
	analyzer Analyzer
	assets   repository.IAssetRepository
	queue    mq.MessageQueue
	pool     *workerpool.WorkerPool
	logger   *zap.Logger

	queued    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

func NewService(analyzer Analyzer, assets repository.IAssetRepository, queue mq.MessageQueue, logger *zap.Logger) *Service {
	s := &Service{
		analyzer: analyzer,
		assets:   assets,
		queue:    queue,
		pool:     workerpool.New(analysisWorkers),
		logger:   logger,
	}

	go s.consume()

	return s
}

// AnalyzeUnreviewed queues every unreviewed asset and returns immediately
// with the number queued. Work continues in the background detached from
// the request's context.
func (s *Service) AnalyzeUnreviewed(ctx context.Context) (int, error) {
	assets, err := s.assets.ListByStatus(ctx, models.AssetStatusUnreviewed)
	if err != nil {
		return 0, fmt.Errorf("failed to list unreviewed assets: %w", err)
	}

	count := 0
	for _, asset := range assets {
		payload, err := msgpack.Marshal(job{AssetID: asset.ID, ImageUrl: asset.Url})
		if err != nil {
			s.logger.Error("Failed to encode analysis job", zap.String("asset_id", asset.ID.String()), zap.Error(err))
			continue
		}
		if err := s.queue.Publish(context.Background(), config.DefaultAnalysisTopic, payload); err != nil {
			return count, fmt.Errorf("failed to queue analysis job: %w", err)
		}
		s.queued.Add(1)
		s.inFlight.Add(1)
		count++
	}

	return count, nil
}

func (s *Service) Status() Status {
	return Status{
		Queued:    s.queued.Load(),
		Processed: s.processed.Load(),
		Failed:    s.failed.Load(),
		Running:   s.inFlight.Load() > 0,
	}
}

func (s *Service) Close() {
	s.queue.CloseTopic(config.DefaultAnalysisTopic)
	s.pool.StopWait()
	s.queue.Close()
}

func (s *Service) consume() {
	for {
		payload, err := s.queue.Receive(context.Background(), config.DefaultAnalysisTopic)
		if err != nil {
			if !errors.Is(err, mq.ErrTopicClosed) {
				s.logger.Error("Analysis queue receive failed", zap.Error(err))
			}
			return
		}

		var j job
		if err := msgpack.Unmarshal(payload, &j); err != nil {
			s.logger.Error("Failed to decode analysis job", zap.Error(err))
			s.failed.Add(1)
			s.inFlight.Add(-1)
			continue
		}

		s.pool.Submit(func() {
			s.process(j)
		})
	}
}

func (s *Service) process(j job) {
	defer s.inFlight.Add(-1)

	ctx := context.Background()

	asset, err := s.assets.GetByID(ctx, j.AssetID.String())
	if err != nil {
		s.logger.Warn("Skipping analysis for missing asset", zap.String("asset_id", j.AssetID.String()), zap.Error(err))
		s.failed.Add(1)
		return
	}

	result, err := s.analyzer.Analyze(ctx, asset)
	if err != nil {
		s.logger.Error("Image analysis failed", zap.String("asset_id", asset.ID.String()), zap.Error(err))
		s.failed.Add(1)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.failed.Add(1)
		return
	}

	asset.Analysis = raw
	asset.StyleScore = &result.StyleScore
	asset.RealismScore = &result.RealismScore
	if result.Verdict == "needs_work" || result.Verdict == "unusable" {
		asset.Status = models.AssetStatusNeedsWork
	}

	if _, err := s.assets.UpdateByID(ctx, asset.ID.String(), asset); err != nil {
		s.logger.Error("Failed to store analysis", zap.String("asset_id", asset.ID.String()), zap.Error(err))
		s.failed.Add(1)
		return
	}

	s.processed.Add(1)
	s.logger.Info("Analyzed asset",
		zap.String("asset_id", asset.ID.String()),
		zap.String("verdict", result.Verdict),
	)
}
