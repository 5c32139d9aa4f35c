package api

import (
	"net/http"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
)

type AchievementHandler struct {
	achievementService service.AchievementService
}

func NewAchievementHandler(achievementService service.AchievementService) *AchievementHandler {
	return &AchievementHandler{achievementService: achievementService}
}

type CheckAchievementsResponse struct {
	Unlocked []domain.UnlockEvent `json:"unlocked"`
}

// CheckAchievements godoc
// @Summary Recompute achievement progress for the authenticated player
// @Tags Achievements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CheckAchievementsResponse "Achievements unlocked by this call"
// @Router /achievements/check [post]
func (h *AchievementHandler) CheckAchievements(c *gin.Context) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return
	}
	events := h.achievementService.CheckAndUpdate(c.Request.Context(), playerID)
	c.JSON(http.StatusOK, CheckAchievementsResponse{Unlocked: events})
}

// GetAchievements godoc
// @Summary Achievement catalogue with the player's progress
// @Tags Achievements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.AchievementSummary
// @Router /achievements [get]
func (h *AchievementHandler) GetAchievements(c *gin.Context) {
	playerID, ok := playerFromToken(c)
	if !ok {
		return
	}
	sum, err := h.achievementService.Summary(c.Request.Context(), playerID)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve achievements.")
		return
	}
	c.JSON(http.StatusOK, sum)
}
