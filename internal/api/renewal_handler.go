package api

import (
	"net/http"
	"time"

	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
)

type RenewalHandler struct {
	renewalService service.RenewalService
	now            func() time.Time
}

func NewRenewalHandler(renewalService service.RenewalService) *RenewalHandler {
	return &RenewalHandler{renewalService: renewalService, now: time.Now}
}

// RenewPlans godoc
// @Summary Generate a month's missing plans for recently active players
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param month query int false "Month (1-12), defaults to next month"
// @Param year query int false "Year, defaults to next month's year"
// @Success 200 {object} service.RenewalStats
// @Failure 400 {object} gin.H "Invalid period"
// @Router /admin/plans/renew [post]
func (h *RenewalHandler) RenewPlans(c *gin.Context) {
	month, year, ok := h.period(c)
	if !ok {
		return
	}
	stats, err := h.renewalService.RenewAll(c.Request.Context(), month, year)
	if err != nil {
		respondServiceError(c, err, "Failed to renew plans.")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetCoverage godoc
// @Summary Count a month's plans against the player base
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.RenewalCoverage
// @Router /admin/plans/coverage [get]
func (h *RenewalHandler) GetCoverage(c *gin.Context) {
	month, year, ok := h.period(c)
	if !ok {
		return
	}
	cov, err := h.renewalService.Coverage(c.Request.Context(), month, year)
	if err != nil {
		respondServiceError(c, err, "Failed to compute plan coverage.")
		return
	}
	c.JSON(http.StatusOK, cov)
}

// period reads month/year from the query, defaulting to next month.
func (h *RenewalHandler) period(c *gin.Context) (int, int, bool) {
	month, err := queryInt(c, "month")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "month must be a number")
		return 0, 0, false
	}
	year, err := queryInt(c, "year")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "year must be a number")
		return 0, 0, false
	}
	now := h.now().UTC()
	next := now.AddDate(0, 1, 1-now.Day())
	if month == 0 {
		month = int(next.Month())
	}
	if year == 0 {
		year = next.Year()
	}
	return month, year, true
}
