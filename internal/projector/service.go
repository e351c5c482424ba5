package projector

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service projects order events into the Redis status cache read by
// GET /orders/{id}/status.
type Service struct {
	Redis       redis.Cmdable
	Cache       *redisx.StatusCache
	ServiceName string
}

// HandleOrderEvent: dipasang sebagai handler consumer.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	var cs redisx.CachedStatus
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		cs = redisx.CachedStatus{UserID: p.UserID, Status: string(orders.StatusPending), UpdatedAt: p.PlacedAt}
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		cs = redisx.CachedStatus{UserID: p.UserID, Status: string(p.To), UpdatedAt: p.ChangedAt}
	default:
		return nil // ignore
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := redisx.FirstSeen(ctx, s.Redis, fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID), redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	// a newer status may already be cached (by a later event or a DB read)
	if cur, ok, err := s.Cache.Get(ctx, env.CorrelationID); err == nil && ok && cur.UpdatedAt.After(cs.UpdatedAt) {
		return nil
	}
	if err := s.Cache.Set(ctx, env.CorrelationID, cs); err != nil {
		// let the event be redelivered
		_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)).Err()
		return err
	}
	return nil
}
