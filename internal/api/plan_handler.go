package api

import (
	"net/http"
	"strconv"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanHandler struct {
	planService service.PlanService
	now         func() time.Time
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService, now: time.Now}
}

// --- DTOs ---

// GeneratePlanRequest selects the month to plan. Zero month/year mean the current one.
type GeneratePlanRequest struct {
	Month  int                     `json:"month"`
	Year   int                     `json:"year"`
	Params domain.GenerationParams `json:"params"`
}

type RawURLResponse struct {
	URL string `json:"url"`
}

// GeneratePlan godoc
// @Summary Generate (or fetch) the monthly plan of a type
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "workout or meal"
// @Param request body GeneratePlanRequest false "Month, year and generation parameters"
// @Success 200 {object} domain.MonthlyPlan
// @Failure 400 {object} gin.H "Invalid plan type or period"
// @Failure 409 {object} gin.H "Generation already in progress"
// @Failure 502 {object} gin.H "Plan generator unavailable"
// @Router /plans/{type}/generate [post]
func (h *PlanHandler) GeneratePlan(c *gin.Context) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return
	}
	req, ok := h.bindGenerate(c, playerID)
	if !ok {
		return
	}

	plan, err := h.planService.Generate(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to generate plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetPlan godoc
// @Summary Get the current monthly plan of a type
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Param type path string true "workout or meal"
// @Param month query int false "Month (1-12), defaults to the current month"
// @Param year query int false "Year, defaults to the current year"
// @Success 200 {object} domain.MonthlyPlan
// @Failure 404 {object} gin.H "No plan for the period"
// @Router /plans/{type} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	key, ok := h.keyFromRequest(c)
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), key)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetPlanHistory returns every row stored for the period, superseded ones included.
func (h *PlanHandler) GetPlanHistory(c *gin.Context) {
	key, ok := h.keyFromRequest(c)
	if !ok {
		return
	}
	plans, err := h.planService.History(c.Request.Context(), key)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve plan history.")
		return
	}
	if plans == nil {
		plans = []domain.MonthlyPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

// RegeneratePlan godoc
// @Summary Retire a player's plan and generate it again
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param playerId path string true "Player ID"
// @Param type path string true "workout or meal"
// @Success 200 {object} domain.MonthlyPlan
// @Failure 403 {object} gin.H "Forbidden (not an operator)"
// @Router /admin/players/{playerId}/plans/{type}/regenerate [post]
func (h *PlanHandler) RegeneratePlan(c *gin.Context) {
	playerID, err := primitive.ObjectIDFromHex(c.Param("playerId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid player ID format.")
		return
	}
	req, ok := h.bindGenerate(c, playerID)
	if !ok {
		return
	}

	plan, err := h.planService.Regenerate(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "Failed to regenerate plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetRawPayloadURL returns a short-lived download URL for the archived AI payload.
func (h *PlanHandler) GetRawPayloadURL(c *gin.Context) {
	planID, err := primitive.ObjectIDFromHex(c.Param("planId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid plan ID format.")
		return
	}
	url, err := h.planService.RawPayloadURL(c.Request.Context(), planID)
	if err != nil {
		respondServiceError(c, err, "Failed to generate download URL.")
		return
	}
	c.JSON(http.StatusOK, RawURLResponse{URL: url})
}

func (h *PlanHandler) bindGenerate(c *gin.Context, playerID primitive.ObjectID) (service.GenerateRequest, bool) {
	planType, err := domain.ParsePlanType(c.Param("type"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return service.GenerateRequest{}, false
	}

	var body GeneratePlanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return service.GenerateRequest{}, false
		}
	}
	month, year := h.period(body.Month, body.Year)
	return service.GenerateRequest{
		PlayerID: playerID,
		Month:    month,
		Year:     year,
		Type:     planType,
		Params:   body.Params,
	}, true
}

func (h *PlanHandler) keyFromRequest(c *gin.Context) (domain.PlanKey, bool) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return domain.PlanKey{}, false
	}
	planType, err := domain.ParsePlanType(c.Param("type"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return domain.PlanKey{}, false
	}
	month, err := queryInt(c, "month")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "month must be an integer")
		return domain.PlanKey{}, false
	}
	year, err := queryInt(c, "year")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "year must be an integer")
		return domain.PlanKey{}, false
	}
	month, year = h.period(month, year)
	return domain.PlanKey{PlayerID: playerID, Month: month, Year: year, Type: planType}, true
}

func (h *PlanHandler) period(month, year int) (int, int) {
	now := h.now().UTC()
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return month, year
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
