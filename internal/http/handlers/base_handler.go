// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/matching"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts uuids and the short ids used by fixtures.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// pathID reads an id path parameter and writes 400 when it is malformed.
func pathID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return id, true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors to HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, hospital.ErrBadRequest),
		errors.Is(err, donor.ErrBadRequest),
		errors.Is(err, bloodtype.ErrUnknownType),
		errors.Is(err, cascade.ErrInvalidOutcome),
		errors.Is(err, matching.ErrDonorUnlocated):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, hospital.ErrNotFound),
		errors.Is(err, donor.ErrNotFound),
		errors.Is(err, cascade.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, hospital.ErrInvalidState),
		errors.Is(err, hospital.ErrConflict),
		errors.Is(err, cascade.ErrInvalidState),
		errors.Is(err, cascade.ErrQueueExists):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
