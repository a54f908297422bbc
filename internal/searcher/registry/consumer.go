package registry

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/resilience"
)

// HandleIndexComplete returns a Kafka MessageHandler that reloads r from
// every IndexComplete announcement. Undecodable messages are logged and
// skipped. A missing or corrupt database is a permanent failure; any other
// reload error is returned for the consumer to retry.
func HandleIndexComplete(r *Registry) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		msg, err := kafka.DecodeJSON[proto.IndexComplete](value)
		if err != nil {
			logger.Error("failed to decode index announcement",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		swapped, err := r.Reload(ctx, msg.Path)
		if errors.Is(err, apperrors.ErrDatabaseNotFound) || errors.Is(err, apperrors.ErrDatabaseCorrupt) {
			return resilience.Permanent(err)
		}
		if err != nil {
			return err
		}
		logger.Info("index announcement processed",
			"path", msg.Path,
			"documents", msg.Documents,
			"swapped", swapped,
		)
		return nil
	}
}
