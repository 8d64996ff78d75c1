package candidates

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-dispatch/internal/models"
)

// RedisSource ranks drivers with Redis GEO commands. The location consumer
// keeps the index fresh; metadata (vehicle class, online flag) lives in a
// per-driver hash.
type RedisSource struct {
	client *redis.Client
	key    string
	radius float64 // meters
}

func NewRedisSource(addr, password, key string) *RedisSource {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisSource{client: c, key: key, radius: 5000}
}

func (r *RedisSource) Upsert(ctx context.Context, d models.Driver) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(d.ID), map[string]interface{}{
		"rating":  strconv.FormatFloat(d.Rating, 'f', -1, 64),
		"vehicle": d.Vehicle,
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

// Candidates returns driver ids sorted nearest-first within the search
// radius, filtered to the requested vehicle class when one is set.
func (r *RedisSource) Candidates(ctx context.Context, origin models.Coord, vehicle string, limit int) ([]string, error) {
	res, err := r.client.GeoRadius(ctx, r.key, origin.Lon, origin.Lat, &redis.GeoRadiusQuery{
		Radius: r.radius, Unit: "m", WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(res))
	for _, g := range res {
		m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result()
		if err == nil {
			if v, ok := m["online"]; ok && v != "true" {
				continue
			}
			if vehicle != "" {
				if v, ok := m["vehicle"]; ok && v != "" && v != vehicle {
					continue
				}
			}
		}
		out = append(out, g.Name)
	}
	return out, nil
}

func (r *RedisSource) Close() error { return r.client.Close() }

func metaKey(id string) string { return "driver:meta:" + id }
