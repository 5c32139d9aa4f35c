package api

import (
	"errors"
	"net/http"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/lock"
	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors to HTTP status codes. Anything it
// does not recognise is reported as a 500 with the given fallback message.
func respondServiceError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrPlanNotActive),
		errors.Is(err, service.ErrDayNotFound),
		errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrRawPayloadMissing):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidPlanType),
		errors.Is(err, domain.ErrInvalidPlayer),
		errors.Is(err, service.ErrInvalidRange):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, lock.ErrLockTimeout):
		abortWithError(c, http.StatusConflict, "Plan generation already in progress, retry shortly.")
	case errors.Is(err, service.ErrGeneratorUnavailable):
		abortWithError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrArchiveDisabled):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
