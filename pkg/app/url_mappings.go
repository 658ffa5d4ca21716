package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgxn-tester/server/internal/controllers"
	"github.com/pgxn-tester/server/internal/middleware"
	"github.com/pgxn-tester/server/internal/ratelimit"
)

func SetupMappings(app *Application) {
	cfg := app.Config
	queueBucket := ratelimit.Bucket{
		RequestsPerMinute: cfg.QueueRequestsPerMinute,
		BurstSize:         cfg.QueueBurstSize,
	}
	submitBucket := ratelimit.Bucket{
		RequestsPerMinute: cfg.SubmitRequestsPerMinute,
		BurstSize:         cfg.SubmitBurstSize,
	}

	r := app.Engine
	{
		r.GET("/", controllers.NewIndexController().Handle)
		r.GET("/stats", controllers.NewStatsController(app.Stats).Handle)

		r.GET("/distributions", controllers.NewListDistributionsController(app.Distributions).Handle)
		r.GET("/distributions/:name", controllers.NewGetDistributionController(app.Distributions).Handle)
		r.GET("/distributions/:name/:version", controllers.NewGetVersionController(app.Distributions).Handle)

		r.GET("/users", controllers.NewListUsersController(app.Distributions).Handle)
		r.GET("/users/:name", controllers.NewGetUserController(app.Distributions).Handle)

		r.GET("/machines", controllers.NewListMachinesController(app.Machines).Handle)
		r.GET("/machines/:name", controllers.NewGetMachineController(app.Machines).Handle)
		r.GET("/machines/:name/queue",
			middleware.RateLimitQueue(app.RateLimiter, queueBucket),
			controllers.NewQueueController(app.Queue).Handle)

		r.GET("/results", controllers.NewListResultsController(app.Results).Handle)
		r.GET("/results/:uuid", controllers.NewGetResultController(app.Results).Handle)
		r.POST("/results",
			middleware.RateLimitSubmit(app.RateLimiter, submitBucket),
			controllers.NewSubmitResultController(app.Intake).Handle)

		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}
