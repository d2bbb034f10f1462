package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hazolab/sms-gateway-go/internal/config"
	"github.com/hazolab/sms-gateway-go/internal/repository"
)

// Pruner drops expired in-memory entries and reports how many were
// removed. Satisfied by the USSD engine and the verification code
// store.
type Pruner interface {
	PruneExpired() int
}

type CleanupJob struct {
	codeStore Pruner
	sessions  Pruner
	repo      repository.TransactionRepository
	interval  time.Duration
	done      chan struct{}
}

func NewCleanupJob(codeStore, sessions Pruner, repo repository.TransactionRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		codeStore: codeStore,
		sessions:  sessions,
		repo:      repo,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("Cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("Cleanup job stopped")
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

	j.runPrune("verification codes", j.codeStore)
	j.runPrune("ussd sessions", j.sessions)

	if j.repo != nil {
		cutoff := time.Now().Add(-config.UnparsedRetention)
		count, err := j.repo.DeleteUnparsedBefore(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Failed to cleanup unparsed messages")
		} else if count > 0 {
			log.Info().Int64("count", count).Msg("Cleaned up unparsed messages")
		}
	}
}

func (j *CleanupJob) runPrune(name string, p Pruner) {
	if p == nil {
		return
	}
	if count := p.PruneExpired(); count > 0 {
		log.Info().Int("count", count).Msgf("Cleaned up %s", name)
	}
}
