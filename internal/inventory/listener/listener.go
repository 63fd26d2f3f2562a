package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/zariny/ecommerce/internal/inventory"
	"github.com/zariny/ecommerce/internal/inventory/dto"
	"github.com/zariny/ecommerce/internal/pkg/logger"
)

// MessageReader is satisfied by broker.KafkaConsumer.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type InventoryListener struct {
	consumer MessageReader
	uc       inventory.UseCase
	logger   logger.ZapLogger
}

func NewInventoryListener(consumer MessageReader, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

// Start consumes order events until ctx is cancelled.
func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("starting order event listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping order event listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to read kafka message", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID    string             `json:"id"`
	Lines []OrderLinePayload `json:"lines"`
}

type OrderLinePayload struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func isOrderPlaced(eventType string) bool {
	return eventType == "OrderPlaced" || eventType == "OrderCreated"
}

func (l *InventoryListener) processMessage(ctx context.Context, value []byte) {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal order event", zap.Error(err))
		return
	}
	if !isOrderPlaced(event.EventType) {
		return
	}

	log := l.logger.With(zap.String("order_id", event.Payload.ID))
	log.Info("allocating stock for order", zap.Int("lines", len(event.Payload.Lines)))

	for _, line := range event.Payload.Lines {
		if line.Quantity <= 0 {
			continue
		}
		rec, err := l.uc.AllocateStock(ctx, &dto.AllocateStockInput{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			ReferenceType: "order",
			ReferenceID:   event.Payload.ID,
		})
		if err != nil {
			log.Error("failed to allocate stock for order line",
				zap.String("product_id", line.ProductID),
				zap.Error(err),
			)
			continue
		}
		if rec == nil {
			log.Debug("product does not track stock", zap.String("product_id", line.ProductID))
		}
	}
}
