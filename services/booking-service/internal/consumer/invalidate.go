package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/iris/libs/kafkax"
)

type Invalidator interface {
	Invalidate(ctx context.Context, businessID string) (int, error)
}

// InvalidateSchedules drops cached schedules of the business named by a
// business.schedule.changed.v1 event.
func InvalidateSchedules(logger *slog.Logger, inv Invalidator) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			BusinessID string `json:"business_id"`
			StaffID    string `json:"staff_id"`
			Change     string `json:"change"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Warn("invalid schedule event payload", "err", err, "topic", msg.Topic)
		}
		businessID := payload.BusinessID
		if businessID == "" {
			businessID = kafkax.ExtractEventMeta(msg).BusinessID
		}
		if businessID == "" {
			logger.Error("schedule event without business id", "topic", msg.Topic)
			return nil
		}

		n, err := inv.Invalidate(ctx, businessID)
		if err != nil {
			return err
		}
		logger.Info("schedule cache invalidated", "business_id", businessID, "change", payload.Change, "keys", n)
		return nil
	}
}
