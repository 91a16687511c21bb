// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lifelink/internal/http/handlers"
	"lifelink/internal/http/middleware"
)

type RouterDeps struct {
	Hospital handlers.HospitalService
	Donors   handlers.DonorService
	Matcher  handlers.Matcher
	Cascade  handlers.Cascade
	// Metrics serves /metrics and observes request latency. Optional.
	Metrics interface {
		middleware.RequestObserver
		Handler() http.Handler
	}
	Logger *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	var obs middleware.RequestObserver
	if deps.Metrics != nil {
		obs = deps.Metrics
	}
	r.Use(middleware.Recovery(log), middleware.Logging(log, obs))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")

	requests := handlers.NewRequestHandler(deps.Hospital, deps.Matcher, deps.Cascade)
	api.POST("/facilities", requests.CreateFacility)
	api.GET("/facilities/:id/donors", requests.NearbyDonors)
	api.POST("/requests", requests.Create)
	api.GET("/requests", requests.ListPrioritized)
	api.GET("/requests/:id", requests.Get)
	api.POST("/requests/:id/cancel", requests.Cancel)
	api.GET("/requests/:id/candidates", requests.Candidates)
	api.GET("/stats", requests.Stats)

	candidates := handlers.NewCandidateHandler(deps.Cascade)
	api.POST("/candidates/:id/respond", candidates.Respond)
	api.POST("/candidates/:id/delivered", candidates.Delivered)
	api.POST("/candidates/:id/fulfill", candidates.Fulfill)

	donors := handlers.NewDonorHandler(deps.Donors, deps.Matcher)
	api.POST("/donors", donors.Register)
	api.GET("/donors/:id", donors.Get)
	api.PUT("/donors/:id/location", donors.UpdateLocation)
	api.PUT("/donors/:id/availability", donors.SetAvailability)
	api.PUT("/donors/:id/device-token", donors.SetDeviceToken)
	api.GET("/donors/:id/requests", donors.OpenRequests)
	api.GET("/donors/:id/facilities", donors.NearbyFacilities)
	api.GET("/donors/:id/requests/:requestID/eligibility", donors.Eligibility)
	api.GET("/donors/:id/donations", donors.History)
	api.GET("/leaderboard", donors.Leaderboard)

	return r
}
