package handlers

import (
	"time"

	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/matching"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

type pointJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p *pointJSON) point() *types.Point {
	if p == nil {
		return nil
	}
	return &types.Point{Lat: p.Lat, Lng: p.Lng}
}

func toPointJSON(p *types.Point) *pointJSON {
	if p == nil {
		return nil
	}
	return &pointJSON{Lat: p.Lat, Lng: p.Lng}
}

type donorResponse struct {
	ID               types.ID   `json:"id"`
	FullName         string     `json:"full_name"`
	BloodType        string     `json:"blood_type"`
	Location         *pointJSON `json:"location,omitempty"`
	Available        bool       `json:"available"`
	LastDonationDate *string    `json:"last_donation_date,omitempty"`
	DonationCount    int        `json:"donation_count"`
	Points           int        `json:"points"`
}

func toDonorResponse(d donor.Donor) donorResponse {
	out := donorResponse{
		ID:            d.ID,
		FullName:      d.FullName,
		BloodType:     d.BloodType.String(),
		Location:      toPointJSON(d.Location),
		Available:     d.Available,
		DonationCount: d.DonationCount,
		Points:        d.Points,
	}
	if d.LastDonationDate != nil {
		s := d.LastDonationDate.Format(time.DateOnly)
		out.LastDonationDate = &s
	}
	return out
}

type requestResponse struct {
	ID           types.ID   `json:"id"`
	FacilityID   types.ID   `json:"facility_id"`
	FacilityName string     `json:"facility_name,omitempty"`
	Location     *pointJSON `json:"location,omitempty"`
	PatientName  string     `json:"patient_name"`
	BloodType    string     `json:"blood_type"`
	UnitsNeeded  int        `json:"units_needed"`
	Urgency      string     `json:"urgency"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	RequiredBy   *time.Time `json:"required_by,omitempty"`
	FulfilledAt  *time.Time `json:"fulfilled_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func toRequestResponse(r hospital.BloodRequest) requestResponse {
	return requestResponse{
		ID:           r.ID,
		FacilityID:   r.FacilityID,
		FacilityName: r.FacilityName,
		Location:     toPointJSON(r.Location),
		PatientName:  r.PatientName,
		BloodType:    r.BloodType.String(),
		UnitsNeeded:  r.UnitsNeeded,
		Urgency:      string(r.Urgency),
		Status:       string(r.Status),
		Notes:        r.Notes,
		CreatedAt:    r.CreatedAt,
		RequiredBy:   r.RequiredBy,
		FulfilledAt:  r.FulfilledAt,
		CancelledAt:  r.CancelledAt,
	}
}

type rankedRequestResponse struct {
	requestResponse
	PriorityScore float64 `json:"priority_score"`
	PriorityLevel string  `json:"priority_level"`
}

func toRankedRequestResponses(in []ranking.RankedRequest) []rankedRequestResponse {
	out := make([]rankedRequestResponse, len(in))
	for i, r := range in {
		out[i] = rankedRequestResponse{
			requestResponse: toRequestResponse(r.Request),
			PriorityScore:   r.Score,
			PriorityLevel:   string(r.Level),
		}
	}
	return out
}

type openRequestResponse struct {
	requestResponse
	PriorityLevel string   `json:"priority_level"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
}

func toOpenRequestResponses(in []matching.OpenRequest) []openRequestResponse {
	out := make([]openRequestResponse, len(in))
	for i, r := range in {
		out[i] = openRequestResponse{
			requestResponse: toRequestResponse(r.Request),
			PriorityLevel:   string(r.Priority),
			DistanceKm:      r.DistanceKm,
		}
	}
	return out
}

type candidateResponse struct {
	ID            types.ID   `json:"id"`
	RequestID     types.ID   `json:"request_id"`
	DonorID       types.ID   `json:"donor_id"`
	MatchScore    float64    `json:"match_score"`
	DistanceKm    *float64   `json:"distance_km,omitempty"`
	Status        string     `json:"status"`
	PriorityOrder int        `json:"priority_order"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
}

func toCandidateResponse(c *cascade.Candidate) *candidateResponse {
	if c == nil {
		return nil
	}
	return &candidateResponse{
		ID:            c.ID,
		RequestID:     c.RequestID,
		DonorID:       c.DonorID,
		MatchScore:    c.MatchScore,
		DistanceKm:    c.DistanceKm,
		Status:        string(c.Status),
		PriorityOrder: c.PriorityOrder,
		NotifiedAt:    c.NotifiedAt,
		RespondedAt:   c.RespondedAt,
		DeliveredAt:   c.DeliveredAt,
		CancelReason:  string(c.CancelReason),
	}
}

type transitionResponse struct {
	Result    string             `json:"result"`
	Candidate *candidateResponse `json:"candidate,omitempty"`
	Next      *candidateResponse `json:"next,omitempty"`
	Exhausted bool               `json:"exhausted"`
}

func toTransitionResponse(r cascade.TransitionResult) transitionResponse {
	return transitionResponse{
		Result:    string(r.Kind),
		Candidate: toCandidateResponse(r.Candidate),
		Next:      toCandidateResponse(r.Next),
		Exhausted: r.Exhausted,
	}
}

type statsResponse struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Notified  int `json:"notified"`
	Fulfilled int `json:"fulfilled"`
	Cancelled int `json:"cancelled"`
}

func toStatsResponse(s hospital.Stats) statsResponse {
	return statsResponse(s)
}

type donationResponse struct {
	ID         types.ID `json:"id"`
	RequestID  types.ID `json:"request_id"`
	FacilityID types.ID `json:"facility_id"`
	DonatedOn  string   `json:"donated_on"`
	Units      int      `json:"units"`
}

func toDonationResponses(in []donor.DonationRecord) []donationResponse {
	out := make([]donationResponse, len(in))
	for i, r := range in {
		out[i] = donationResponse{
			ID:         r.ID,
			RequestID:  r.RequestID,
			FacilityID: r.FacilityID,
			DonatedOn:  r.DonatedOn.Format(time.DateOnly),
			Units:      r.Units,
		}
	}
	return out
}

type leaderboardResponse struct {
	Rank          int      `json:"rank"`
	DonorID       types.ID `json:"donor_id"`
	FullName      string   `json:"full_name"`
	BloodType     string   `json:"blood_type"`
	DonationCount int      `json:"donation_count"`
	Points        int      `json:"points"`
}

func toLeaderboardResponses(in []donor.LeaderboardEntry) []leaderboardResponse {
	out := make([]leaderboardResponse, len(in))
	for i, e := range in {
		out[i] = leaderboardResponse{
			Rank:          e.Rank,
			DonorID:       e.DonorID,
			FullName:      e.FullName,
			BloodType:     e.BloodType.String(),
			DonationCount: e.DonationCount,
			Points:        e.Points,
		}
	}
	return out
}

type nearbyDonorResponse struct {
	donorResponse
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func toNearbyDonorResponses(in []matching.NearbyDonor) []nearbyDonorResponse {
	out := make([]nearbyDonorResponse, len(in))
	for i, d := range in {
		out[i] = nearbyDonorResponse{
			donorResponse: toDonorResponse(d.Donor),
			DistanceKm:    d.DistanceKm,
		}
	}
	return out
}

type nearbyFacilityResponse struct {
	ID                 types.ID   `json:"id"`
	Name               string     `json:"name"`
	Address            string     `json:"address,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Location           *pointJSON `json:"location"`
	DistanceKm         float64    `json:"distance_km"`
	OpenRequests       int        `json:"open_requests"`
	CompatibleRequests int        `json:"compatible_requests"`
}

func toNearbyFacilityResponses(in []matching.NearbyFacility) []nearbyFacilityResponse {
	out := make([]nearbyFacilityResponse, len(in))
	for i, f := range in {
		out[i] = nearbyFacilityResponse{
			ID:                 f.Facility.ID,
			Name:               f.Facility.Name,
			Address:            f.Facility.Address,
			Phone:              f.Facility.Phone,
			Location:           toPointJSON(f.Facility.Location),
			DistanceKm:         f.DistanceKm,
			OpenRequests:       f.OpenRequests,
			CompatibleRequests: f.CompatibleRequests,
		}
	}
	return out
}
