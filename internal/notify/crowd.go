package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const crowdKeyFmt = "arena:crowd:%s"

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisCrowdGauge reads the day's crowd sentiment delta from a key that an
// outside service maintains. A missing key means no reading.
type RedisCrowdGauge struct {
	rdb getter
}

func NewRedisCrowdGauge(rdb *redis.Client) *RedisCrowdGauge {
	return &RedisCrowdGauge{rdb: rdb}
}

func CrowdKey(day string) string {
	return fmt.Sprintf(crowdKeyFmt, day)
}

func (g *RedisCrowdGauge) CrowdDelta(ctx context.Context, day string) (*float64, error) {
	raw, err := g.rdb.Get(ctx, CrowdKey(day)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("crowd delta %s: %w", day, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("crowd delta %s: %w", day, err)
	}
	return &v, nil
}
