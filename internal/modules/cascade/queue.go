package cascade

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

// BuildQueue materialises ranked donors as pending candidates. Order is
// ascending distance with unknown distances last, then descending score,
// then rank position. PriorityOrder is assigned 1..n in that order.
func BuildQueue(requestID types.ID, ranked []ranking.RankedDonor, distances map[types.ID]float64, now time.Time) []*Candidate {
	out := make([]*Candidate, len(ranked))
	for i, rd := range ranked {
		c := &Candidate{
			ID:         types.ID(uuid.NewString()),
			RequestID:  requestID,
			DonorID:    rd.Donor.ID,
			MatchScore: rd.Score,
			Status:     StatusPending,
			CreatedAt:  now,
		}
		if km, ok := distances[rd.Donor.ID]; ok {
			c.DistanceKm = &km
		}
		out[i] = c
	}

	sort.SliceStable(out, func(a, b int) bool {
		da, db := out[a].DistanceKm, out[b].DistanceKm
		switch {
		case da != nil && db == nil:
			return true
		case da == nil && db != nil:
			return false
		case da != nil && *da != *db:
			return *da < *db
		}
		return out[a].MatchScore > out[b].MatchScore
	})
	for i, c := range out {
		c.PriorityOrder = i + 1
	}
	return out
}
