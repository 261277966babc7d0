package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CourtsPubSub notifies listeners that a court's reservation set changed.
type CourtsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewCourtsPubSub(rdb *redis.Client) *CourtsPubSub {
	return &CourtsPubSub{
		rdb:     rdb,
		channel: ChannelCourtsChanged(),
	}
}

type CourtChanged struct {
	Type    string `json:"type"`
	CourtID int64  `json:"court_id"`
	TsUnix  int64  `json:"ts_unix"`
}

func (p *CourtsPubSub) PublishCourtChanged(ctx context.Context, courtID int64) error {
	b, err := json.Marshal(CourtChanged{
		Type:    "court_changed",
		CourtID: courtID,
		TsUnix:  time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe calls handler for every court change until ctx is done.
func (p *CourtsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, courtID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev CourtChanged
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.CourtID != 0 {
				handler(ctx, ev.CourtID)
			}
		}
	}
}
