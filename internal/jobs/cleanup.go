package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/config"
	"github.com/phonelink/broker-server-go/internal/repository"
)

// CleanupJob sweeps rows that outlive their purpose: expired pairing
// codes, delivered queued commands, and message history past the
// retention window. It runs once on Start and then on every tick.
type CleanupJob struct {
	pairingCodeRepo repository.PairingCodeRepository
	queueRepo       repository.QueuedCommandRepository
	messageRepo     repository.MessageLogRepository
	retention       time.Duration
	interval        time.Duration
	done            chan struct{}
}

func NewCleanupJob(
	pairingCodeRepo repository.PairingCodeRepository,
	queueRepo repository.QueuedCommandRepository,
	messageRepo repository.MessageLogRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		pairingCodeRepo: pairingCodeRepo,
		queueRepo:       queueRepo,
		messageRepo:     messageRepo,
		retention:       retention,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()

	j.runCleanup(ctx, "pairing codes", j.pairingCodeRepo.DeleteExpired)
	j.runCleanup(ctx, "delivered commands", func(ctx context.Context) (int64, error) {
		return j.queueRepo.DeleteDelivered(ctx, now.Add(-config.DeliveredCommandRetention))
	})
	j.runCleanup(ctx, "message history", func(ctx context.Context) (int64, error) {
		return j.messageRepo.DeleteOlderThan(ctx, now.Add(-j.retention))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
