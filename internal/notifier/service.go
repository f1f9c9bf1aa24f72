package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tiendago/storefront/internal/orders"
	"github.com/tiendago/storefront/internal/redisx"
)

// Service tails the order topics, logs each lifecycle event and keeps the
// redis status cache warm so reads stay off Postgres. Consumption is
// deduplicated per event id.
type Service struct {
	Redis       *redis.Client
	Log         *zap.Logger
	ServiceName string
}

func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		var p orders.OrderCreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, orders.StatusPending)
		s.Log.Info("order created",
			zap.String("order_id", p.OrderID),
			zap.String("user_id", p.UserID),
			zap.Int("total_cents", p.TotalCents))
	case orders.EventOrderCancelled:
		var p orders.OrderCancelledPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, orders.StatusCancelled)
		s.Log.Info("order cancelled",
			zap.String("order_id", p.OrderID),
			zap.String("payment_status", string(p.PaymentStatus)))
	case orders.EventStatusChanged:
		var p orders.StatusChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, p.New)
		s.Log.Info("order status changed",
			zap.String("order_id", p.OrderID),
			zap.String("old", string(p.Old)),
			zap.String("new", string(p.New)))
	default:
		// other producers may share these topics later; ignore quietly
	}
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(st)})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
