package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/writgo/content-engine/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "content-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	creditHandler := handler.NewCreditHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs/run - Run a pipeline job, streaming progress
			jobs.POST("/run", jobHandler.RunJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		// POST /api/v1/plans/execute - Enqueue one background job per topic
		v1.POST("/plans/execute", jobHandler.ExecutePlan)

		credits := v1.Group("/credits")
		{
			// GET /api/v1/credits/:client_id - Account balance
			credits.GET("/:client_id", creditHandler.GetBalance)

			// POST /api/v1/credits/:client_id/topup - Grant purchased credits
			credits.POST("/:client_id/topup", creditHandler.TopUp)

			// GET /api/v1/credits/:client_id/transactions - Ledger history
			credits.GET("/:client_id/transactions", creditHandler.ListTransactions)
		}
	}

	return r
}
