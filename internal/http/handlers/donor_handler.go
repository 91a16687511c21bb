// README: Donor handlers for registration, profile updates and the donor dashboard.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lifelink/internal/modules/donor"
	"lifelink/internal/types"
)

type DonorService interface {
	Register(ctx context.Context, cmd donor.RegisterCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*donor.Donor, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) error
	SetAvailability(ctx context.Context, id types.ID, available bool) error
	SetDeviceToken(ctx context.Context, id types.ID, token string) error
	Leaderboard(ctx context.Context, limit int) ([]donor.LeaderboardEntry, error)
	History(ctx context.Context, donorID types.ID) ([]donor.DonationRecord, error)
}

type DonorHandler struct {
	donors  DonorService
	matcher Matcher
}

func NewDonorHandler(d DonorService, m Matcher) *DonorHandler {
	return &DonorHandler{donors: d, matcher: m}
}

type registerDonorReq struct {
	FullName         string     `json:"full_name"`
	Phone            string     `json:"phone"`
	DeviceToken      string     `json:"device_token"`
	BloodType        string     `json:"blood_type"`
	Location         *pointJSON `json:"location"`
	LastDonationDate string     `json:"last_donation_date"`
}

func (h *DonorHandler) Register(c *gin.Context) {
	var req registerDonorReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := donor.RegisterCommand{
		FullName:    req.FullName,
		Phone:       req.Phone,
		DeviceToken: req.DeviceToken,
		BloodType:   req.BloodType,
		Location:    req.Location.point(),
	}
	if req.LastDonationDate != "" {
		d, err := time.Parse(time.DateOnly, req.LastDonationDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, "last_donation_date must be YYYY-MM-DD")
			return
		}
		cmd.LastDonationDate = &d
	}
	id, err := h.donors.Register(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"donor_id": id})
}

func (h *DonorHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.donors.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDonorResponse(*d))
}

func (h *DonorHandler) UpdateLocation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req pointJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.donors.UpdateLocation(c.Request.Context(), types.ID(id), *req.point()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

func (h *DonorHandler) SetAvailability(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "available is required")
		return
	}
	if err := h.donors.SetAvailability(c.Request.Context(), types.ID(id), *req.Available); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type deviceTokenReq struct {
	Token string `json:"token"`
}

func (h *DonorHandler) SetDeviceToken(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req deviceTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.donors.SetDeviceToken(c.Request.Context(), types.ID(id), req.Token); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OpenRequests is the donor dashboard: open requests within reach, nearest first.
func (h *DonorHandler) OpenRequests(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	open, err := h.matcher.OpenRequestsFor(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": toOpenRequestResponses(open)})
}

func (h *DonorHandler) NearbyFacilities(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	facilities, err := h.matcher.FacilitiesNear(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"facilities": toNearbyFacilityResponses(facilities)})
}

func (h *DonorHandler) Eligibility(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	requestID, ok := pathID(c, "requestID")
	if !ok {
		return
	}
	e, err := h.matcher.EligibilityFor(c.Request.Context(), types.ID(id), types.ID(requestID))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := map[string]any{
		"eligible":            e.Eligible,
		"days_until_eligible": e.DaysUntilEligible,
	}
	if e.FailedGate != "" {
		resp["failed_gate"] = e.FailedGate
	}
	if e.DistanceKm != nil {
		resp["distance_km"] = *e.DistanceKm
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *DonorHandler) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	recs, err := h.donors.History(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"donations": toDonationResponses(recs)})
}

func (h *DonorHandler) Leaderboard(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := h.donors.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"leaderboard": toLeaderboardResponses(entries)})
}
