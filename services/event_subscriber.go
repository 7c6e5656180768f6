package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bom-analytics-helper/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types published by the shop on the Redis channel.
const (
	EventOrderSaved         = "order_saved"
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentComplete    = "payment_complete"
	EventPOStockDecreased   = "po_stock_decreased"
	EventPOStockIncreased   = "po_stock_increased"
	EventBackfillBatch      = "backfill_batch"
)

var ErrUnknownEventType = errors.New("unknown event type")

var eventHooks = map[string]string{
	EventOrderSaved:         HookSavedOrderItems,
	EventOrderStatusChanged: HookOrderStatusChanged,
	EventPaymentComplete:    HookPaymentComplete,
	EventPOStockDecreased:   HookPODecreaseStock,
	EventPOStockIncreased:   HookPOIncreaseStock,
}

// ShopEvent is the JSON payload of a channel message.
type ShopEvent struct {
	Type      string `json:"type"`
	OrderID   uint64 `json:"order_id"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// EventSubscriber turns channel messages into hook actions and scheduled
// backfill batches. Messages are handled one at a time.
type EventSubscriber struct {
	rdb      *goredis.Client
	channel  string
	hooks    *Hooks
	backfill *BackfillService
	log      *zap.Logger
}

func NewEventSubscriber(rdb *goredis.Client, channel string, hooks *Hooks, backfill *BackfillService) *EventSubscriber {
	if strings.TrimSpace(channel) == "" {
		channel = config.App.RedisChannel
	}
	return &EventSubscriber{
		rdb:      rdb,
		channel:  channel,
		hooks:    hooks,
		backfill: backfill,
		log:      config.Logger.Named("events"),
	}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Start subscribes and consumes messages in a goroutine until ctx is done.
func (s *EventSubscriber) Start(ctx context.Context) error {
	if s == nil || s.rdb == nil {
		return errors.New("event subscriber not initialized")
	}

	sub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	s.log.Info("subscribed to shop events", zap.String("channel", s.channel))

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				if err := s.Handle(ctx, []byte(m.Payload)); err != nil {
					s.log.Warn("failed to handle shop event", zap.String("payload", m.Payload), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// Publish sends ev on the channel.
func (s *EventSubscriber) Publish(ctx context.Context, ev ShopEvent) error {
	if s == nil || s.rdb == nil {
		return errors.New("event subscriber not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.channel, raw).Err()
}

// Handle dispatches one raw message.
func (s *EventSubscriber) Handle(ctx context.Context, payload []byte) error {
	var ev ShopEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode shop event: %w", err)
	}

	if ev.Type == EventBackfillBatch {
		if s.backfill == nil {
			return errors.New("backfill service not configured")
		}
		_, err := s.backfill.ProcessScheduledBatch(ctx, ev.Offset)
		return err
	}

	hook, ok := eventHooks[ev.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
	return s.hooks.DoAction(ctx, Event{
		Name:      hook,
		OrderID:   ev.OrderID,
		OldStatus: ev.OldStatus,
		NewStatus: ev.NewStatus,
	})
}
