// README: Hospital-facing handlers: facilities, blood requests, queues and stats.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/matching"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

type HospitalService interface {
	CreateFacility(ctx context.Context, cmd hospital.FacilityCommand) (types.ID, error)
	CreateRequest(ctx context.Context, cmd hospital.CreateRequestCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*hospital.BloodRequest, error)
	Stats(ctx context.Context, facilityID *types.ID) (hospital.Stats, error)
}

type Matcher interface {
	OnRequestCreated(ctx context.Context, requestID types.ID) (matching.Summary, error)
	PrioritizedRequests(ctx context.Context) ([]ranking.RankedRequest, error)
	OpenRequestsFor(ctx context.Context, donorID types.ID) ([]matching.OpenRequest, error)
	EligibilityFor(ctx context.Context, donorID, requestID types.ID) (matching.Eligibility, error)
	DonorsNear(ctx context.Context, facilityID types.ID, bt bloodtype.Type, radiusKm float64) ([]matching.NearbyDonor, error)
	FacilitiesNear(ctx context.Context, donorID types.ID) ([]matching.NearbyFacility, error)
}

type Cascade interface {
	RecordResponse(ctx context.Context, candidateID types.ID, outcome cascade.Outcome, notes string) (cascade.TransitionResult, error)
	CancelRequest(ctx context.Context, requestID types.ID, reason string) error
	MarkFulfilled(ctx context.Context, candidateID types.ID) (*cascade.Candidate, error)
	Candidates(ctx context.Context, requestID types.ID) ([]*cascade.Candidate, error)
	ConfirmDelivery(ctx context.Context, candidateID types.ID) error
}

type RequestHandler struct {
	hospital HospitalService
	matcher  Matcher
	cascade  Cascade
}

func NewRequestHandler(h HospitalService, m Matcher, c Cascade) *RequestHandler {
	return &RequestHandler{hospital: h, matcher: m, cascade: c}
}

type createFacilityReq struct {
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Phone    string     `json:"phone"`
	Location *pointJSON `json:"location"`
}

func (h *RequestHandler) CreateFacility(c *gin.Context) {
	var req createFacilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.hospital.CreateFacility(c.Request.Context(), hospital.FacilityCommand{
		Name:     req.Name,
		Address:  req.Address,
		Phone:    req.Phone,
		Location: req.Location.point(),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"facility_id": id})
}

type createRequestReq struct {
	FacilityID  string     `json:"facility_id"`
	PatientName string     `json:"patient_name"`
	BloodType   string     `json:"blood_type"`
	UnitsNeeded int        `json:"units_needed"`
	Urgency     string     `json:"urgency"`
	Notes       string     `json:"notes"`
	RequiredBy  *time.Time `json:"required_by"`
}

// Create stores the request and runs matching before replying. A matching
// failure does not undo the request; the response carries no summary then.
func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.hospital.CreateRequest(c.Request.Context(), hospital.CreateRequestCommand{
		FacilityID:  types.ID(req.FacilityID),
		PatientName: req.PatientName,
		BloodType:   req.BloodType,
		UnitsNeeded: req.UnitsNeeded,
		Urgency:     req.Urgency,
		Notes:       req.Notes,
		RequiredBy:  req.RequiredBy,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := map[string]any{"request_id": id, "status": hospital.StatusPending}
	sum, err := h.matcher.OnRequestCreated(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		_ = c.Error(err)
	} else {
		resp["matching"] = map[string]any{
			"considered": sum.Considered,
			"eligible":   sum.Eligible,
			"queued":     sum.Queued,
			"activated":  sum.Activated,
		}
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.hospital.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRequestResponse(*r))
}

// ListPrioritized returns open requests ordered by computed priority.
func (h *RequestHandler) ListPrioritized(c *gin.Context) {
	ranked, err := h.matcher.PrioritizedRequests(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": toRankedRequestResponses(ranked)})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req cancelReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if err := h.cascade.CancelRequest(c.Request.Context(), types.ID(id), req.Reason); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": hospital.StatusCancelled})
}

func (h *RequestHandler) Candidates(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cands, err := h.cascade.Candidates(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]*candidateResponse, len(cands))
	for i, cand := range cands {
		out[i] = toCandidateResponse(cand)
	}
	writeJSON(c, http.StatusOK, map[string]any{"candidates": out})
}

func (h *RequestHandler) Stats(c *gin.Context) {
	var facility *types.ID
	if raw := c.Query("facility_id"); raw != "" {
		if !isValidID(raw) {
			writeError(c, http.StatusBadRequest, "invalid facility_id")
			return
		}
		id := types.ID(raw)
		facility = &id
	}
	st, err := h.hospital.Stats(c.Request.Context(), facility)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toStatsResponse(st))
}

// NearbyDonors lists available donors around a facility, nearest first.
// blood_type narrows to one exact type; max_distance is in km.
func (h *RequestHandler) NearbyDonors(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	radius := 0.0
	if raw := c.Query("max_distance"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeError(c, http.StatusBadRequest, "max_distance must be a positive number")
			return
		}
		radius = v
	}
	bt := bloodtype.Type(c.Query("blood_type"))
	donors, err := h.matcher.DonorsNear(c.Request.Context(), types.ID(id), bt, radius)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"donors": toNearbyDonorResponses(donors)})
}
