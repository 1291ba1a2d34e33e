package worker

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/model"
	"github.com/stemsi/exstem-mock/internal/repository"
)

// FlagStore persists proctoring flags. *repository.AttemptRepository implements it.
type FlagStore interface {
	CopyFlags(ctx context.Context, events []model.FlagEvent) error
	InsertFlag(ctx context.Context, ev model.FlagEvent) error
}

// FlagWorker moves proctoring flags from the Redis queue into Postgres.
type FlagWorker struct {
	consumer *queueConsumer[model.FlagEvent]
	log      zerolog.Logger
}

func NewFlagWorker(store FlagStore, rdb *redis.Client, log zerolog.Logger) *FlagWorker {
	l := log.With().Str("component", "flag_worker").Logger()
	return &FlagWorker{
		log: l,
		consumer: &queueConsumer[model.FlagEvent]{
			rdb:     rdb,
			queue:   config.WorkerKey.PersistFlagsQueue,
			log:     l,
			bulk:    store.CopyFlags,
			single:  store.InsertFlag,
			drop:    isInvalidRecord,
			timeout: BatchTimeout,
			backoff: RequeueBackoff,
		},
	}
}

func (w *FlagWorker) Start(ctx context.Context) {
	w.log.Info().Msg("FlagWorker started")
	w.consumer.run(ctx)
}

func isInvalidRecord(err error) bool {
	return errors.Is(err, repository.ErrInvalidRecord)
}
