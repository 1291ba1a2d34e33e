package worker

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/model"
)

// ResultStore persists finished attempts. *repository.AttemptRepository implements it.
type ResultStore interface {
	SaveAttempts(ctx context.Context, records []model.AttemptRecord) error
	SaveAttempt(ctx context.Context, rec model.AttemptRecord) error
}

// ResultWorker moves finished attempts from the Redis queue into Postgres.
type ResultWorker struct {
	consumer *queueConsumer[model.AttemptRecord]
	log      zerolog.Logger
}

func NewResultWorker(store ResultStore, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	l := log.With().Str("component", "result_worker").Logger()
	return &ResultWorker{
		log: l,
		consumer: &queueConsumer[model.AttemptRecord]{
			rdb:     rdb,
			queue:   config.WorkerKey.PersistResultsQueue,
			log:     l,
			bulk:    store.SaveAttempts,
			single:  store.SaveAttempt,
			drop:    isInvalidRecord,
			timeout: BatchTimeout,
			backoff: RequeueBackoff,
		},
	}
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")
	w.consumer.run(ctx)
}
