package api

import (
	"net/http"
	"time"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

type DailyHandler struct {
	dailyService service.DailyService
	now          func() time.Time
}

func NewDailyHandler(dailyService service.DailyService) *DailyHandler {
	return &DailyHandler{dailyService: dailyService, now: time.Now}
}

// GetDailySlice godoc
// @Summary Get (populating on first access) the day's slice of a monthly plan
// @Tags Daily
// @Produce json
// @Security BearerAuth
// @Param type path string true "workout or meal"
// @Param date query string false "YYYY-MM-DD, defaults to today (UTC)"
// @Success 200 {object} domain.DailySlice
// @Failure 404 {object} gin.H "No active plan or no entry for the day"
// @Router /daily/{type} [get]
func (h *DailyHandler) GetDailySlice(c *gin.Context) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return
	}
	planType, err := domain.ParsePlanType(c.Param("type"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}

	slice, err := h.dailyService.Populate(c.Request.Context(), playerID, date, planType)
	if err != nil {
		respondServiceError(c, err, "Failed to populate daily plan.")
		return
	}
	c.JSON(http.StatusOK, slice)
}

// GetDaily serves two views: with start and end it lists stored slices,
// otherwise it populates both plan types for a single date.
func (h *DailyHandler) GetDaily(c *gin.Context) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return
	}

	if c.Query("start") != "" || c.Query("end") != "" {
		start, end, ok := h.rangeQuery(c)
		if !ok {
			return
		}
		slices, err := h.dailyService.Range(c.Request.Context(), playerID, start, end)
		if err != nil {
			respondServiceError(c, err, "Failed to list daily plans.")
			return
		}
		if slices == nil {
			slices = []domain.DailySlice{}
		}
		c.JSON(http.StatusOK, slices)
		return
	}

	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	out, err := h.dailyService.PopulateDay(c.Request.Context(), playerID, date)
	if err != nil {
		respondServiceError(c, err, "Failed to populate daily plans.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// RegenerateDaily deletes and re-cuts a player's slices between start and end.
func (h *DailyHandler) RegenerateDaily(c *gin.Context) {
	playerID, err := primitive.ObjectIDFromHex(c.Param("playerId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid player ID format.")
		return
	}
	start, end, ok := h.rangeQuery(c)
	if !ok {
		return
	}
	res, err := h.dailyService.RegenerateRange(c.Request.Context(), playerID, start, end)
	if err != nil {
		respondServiceError(c, err, "Failed to regenerate daily plans.")
		return
	}
	c.JSON(http.StatusOK, res)
}

// PopulateAllDaily cuts the day's slices for every player holding an ACTIVE plan.
func (h *DailyHandler) PopulateAllDaily(c *gin.Context) {
	date, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	res, err := h.dailyService.PopulateAll(c.Request.Context(), date)
	if err != nil {
		respondServiceError(c, err, "Failed to populate daily plans.")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *DailyHandler) dateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return domain.NormalizeDate(h.now()), true
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, name+" must be formatted as YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func (h *DailyHandler) rangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	if c.Query("start") == "" || c.Query("end") == "" {
		abortWithError(c, http.StatusBadRequest, "start and end are both required")
		return time.Time{}, time.Time{}, false
	}
	start, ok := h.dateQuery(c, "start")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := h.dateQuery(c, "end")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
