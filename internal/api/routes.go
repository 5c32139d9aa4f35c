package api

import (
	"net/http"

	"fithero/planner/internal/domain"
	"fithero/planner/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	planService service.PlanService,
	dailyService service.DailyService,
	achievementService service.AchievementService,
	renewalService service.RenewalService,
) {
	planHandler := NewPlanHandler(planService)
	dailyHandler := NewDailyHandler(dailyService)
	achievementHandler := NewAchievementHandler(achievementService)
	renewalHandler := NewRenewalHandler(renewalService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	protected := router.Group("/api/v1")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr, "role": role})
		})

		// --- Monthly Plans ---
		planGroup := protected.Group("/plans")
		{
			planGroup.POST("/:type/generate", planHandler.GeneratePlan)
			planGroup.GET("/:type", planHandler.GetPlan)
			planGroup.GET("/:type/history", planHandler.GetPlanHistory)
		}

		// --- Daily Slices ---
		protected.GET("/daily", dailyHandler.GetDaily)
		protected.GET("/daily/:type", dailyHandler.GetDailySlice)

		// --- Achievements ---
		protected.POST("/achievements/check", achievementHandler.CheckAchievements)
		protected.GET("/achievements", achievementHandler.GetAchievements)

		// --- Operator Routes ---
		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleOperator))
		{
			adminGroup.POST("/players/:playerId/plans/:type/regenerate", planHandler.RegeneratePlan)
			adminGroup.POST("/players/:playerId/daily/regenerate", dailyHandler.RegenerateDaily)
			adminGroup.GET("/plans/:planId/raw-url", planHandler.GetRawPayloadURL)
			adminGroup.POST("/plans/renew", renewalHandler.RenewPlans)
			adminGroup.GET("/plans/coverage", renewalHandler.GetCoverage)
			adminGroup.POST("/daily/populate", dailyHandler.PopulateAllDaily)
		}
	}
}
