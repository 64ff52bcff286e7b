// Package track keeps the latest known position per route in redis so
// dispatchers can see active vehicles without touching the relay.
package track

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/paratransit-relay/internal/relay"
)

type RedisTracker struct {
	client *redis.Client
	key    string
}

func NewRedisTracker(addr, password, key string) *RedisTracker {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisTracker{client: c, key: key}
}

// Record stores the position under the geo set keyed by route id and a
// metadata hash alongside it.
func (t *RedisTracker) Record(ctx context.Context, routeID, userID string, role relay.Role, lat, lon float64) error {
	if _, err := t.client.GeoAdd(ctx, t.key, &redis.GeoLocation{Longitude: lon, Latitude: lat, Name: routeID}).Result(); err != nil {
		return err
	}
	return t.client.HSet(ctx, metaKey(routeID), map[string]interface{}{
		"user":    userID,
		"role":    string(role),
		"lat":     strconv.FormatFloat(lat, 'f', 6, 64),
		"lon":     strconv.FormatFloat(lon, 'f', 6, 64),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

// Forget drops tracking state for a route, typically once it goes
// terminal.
func (t *RedisTracker) Forget(ctx context.Context, routeID string) error {
	if err := t.client.ZRem(ctx, t.key, routeID).Err(); err != nil {
		return err
	}
	return t.client.Del(ctx, metaKey(routeID)).Err()
}

func (t *RedisTracker) Close() error { return t.client.Close() }

func metaKey(routeID string) string { return "route:pos:" + routeID }
