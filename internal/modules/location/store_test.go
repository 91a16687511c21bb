package location

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"lifelink/internal/types"
)

var kathmandu = types.Point{Lat: 27.7172, Lng: 85.3240}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb), mr
}

func contains(ids []types.ID, id types.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestNearbyDonors(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.IndexDonor(ctx, "near", types.Point{Lat: 27.70, Lng: 85.33}); err != nil {
		t.Fatalf("index near donor: %v", err)
	}
	if err := store.IndexDonor(ctx, "pokhara", types.Point{Lat: 28.2096, Lng: 83.9856}); err != nil {
		t.Fatalf("index far donor: %v", err)
	}

	ids, err := store.NearbyDonors(ctx, kathmandu, 25)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if !contains(ids, "near") || contains(ids, "pokhara") {
		t.Fatalf("expected only the near donor within 25km, got %v", ids)
	}

	if err := store.RemoveDonor(ctx, "near"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ids, err = store.NearbyDonors(ctx, kathmandu, 25)
	if err != nil {
		t.Fatalf("nearby after remove: %v", err)
	}
	if contains(ids, "near") {
		t.Fatalf("removed donor still indexed")
	}
}

// Redis uses a larger Earth radius than HaversineKm, so a donor just inside
// the radius by haversine reads as just outside it in Redis.
func TestNearbyDonors_KeepsHaversineEdge(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	edge := types.Point{Lat: 28.16677, Lng: kathmandu.Lng}
	beyond := types.Point{Lat: 28.17585, Lng: kathmandu.Lng}
	if km := HaversineKm(kathmandu, edge); km > 50 {
		t.Fatalf("edge donor should be inside 50km by haversine, got %.3f", km)
	}
	if km := HaversineKm(kathmandu, beyond); km < 50.9 {
		t.Fatalf("beyond donor should be about 51km by haversine, got %.3f", km)
	}
	if err := store.IndexDonor(ctx, "edge", edge); err != nil {
		t.Fatalf("index edge: %v", err)
	}
	if err := store.IndexDonor(ctx, "beyond", beyond); err != nil {
		t.Fatalf("index beyond: %v", err)
	}

	ids, err := store.NearbyDonors(ctx, kathmandu, 50)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if !contains(ids, "edge") {
		t.Fatalf("edge donor at %.3fkm dropped: %v", HaversineKm(kathmandu, edge), ids)
	}
	if contains(ids, "beyond") {
		t.Fatalf("donor at 51km should stay outside the search: %v", ids)
	}
}

func TestReady(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Ready(ctx)
	if err != nil || ok {
		t.Fatalf("fresh index should not be ready: ok=%v err=%v", ok, err)
	}
	if err := store.MarkReady(ctx); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if ok, _ := store.Ready(ctx); !ok {
		t.Fatalf("index should be ready after MarkReady")
	}

	mr.FlushAll()
	if ok, _ := store.Ready(ctx); ok {
		t.Fatalf("flushed index should not be ready")
	}
}
