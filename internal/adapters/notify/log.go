package notify

import (
	"context"

	"github.com/okian/goalpulse/internal/domain/model"
	"github.com/okian/goalpulse/pkg/logger"
)

// Log writes alerts to the structured log. It never fails.
type Log struct {
	logger logger.Logger
}

// NewLog returns a log notifier. A nil logger uses the global one.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Get().Named("notify").Named("log")
	}
	return &Log{logger: l}
}

// Name identifies the notifier.
func (n *Log) Name() string { return "log" }

// Deliver logs the alert.
func (n *Log) Deliver(ctx context.Context, a model.Alert) error {
	fields := []logger.Field{
		logger.String("alert_id", a.ID),
		logger.String("entity_id", a.EntityID),
		logger.String("tier", a.Tier.String()),
		logger.Float64("score", a.Score),
	}
	if a.PreviousTier != nil {
		fields = append(fields, logger.String("previous_tier", a.PreviousTier.String()))
	}
	n.logger.Info(ctx, Message(a), fields...)
	return nil
}
