// README: Donor location index backed by Redis GEO.
package location

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"lifelink/internal/types"
)

const (
	donorGeoKey   = "location:donors"
	donorReadyKey = "location:donors:ready"

	// Redis measures GEO distances on a 6372.797 km sphere, slightly longer
	// than the 6371 km used by HaversineKm. Searching a little wider keeps
	// edge donors; callers re-apply the exact distance gate.
	searchSlack = 1.01
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) IndexDonor(ctx context.Context, id types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, donorGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *Store) RemoveDonor(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, donorGeoKey, string(id)).Err()
}

// NearbyDonors returns indexed donors within about radiusKm of p, nearest
// first. The result may include donors slightly beyond radiusKm. Donors that
// never reported a location are not in the index.
func (s *Store) NearbyDonors(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoRadius(ctx, donorGeoKey, p.Lng, p.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKm * searchSlack,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r.Name)
	}
	return ids, nil
}

// MarkReady records that the index was rebuilt from the donor table. The
// marker disappears with the index when Redis is flushed.
func (s *Store) MarkReady(ctx context.Context) error {
	return s.redis.Set(ctx, donorReadyKey, "1", 0).Err()
}

// Ready reports whether the index was rebuilt since Redis last lost its data.
func (s *Store) Ready(ctx context.Context) (bool, error) {
	err := s.redis.Get(ctx, donorReadyKey).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
