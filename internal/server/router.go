package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"civicbudget/internal/handlers"
	"civicbudget/internal/middleware"
	"civicbudget/internal/services"

	_ "civicbudget/internal/docs" // Import swagger docs
)

// Options wires the router's dependencies.
type Options struct {
	DB             *gorm.DB
	Sweeper        handlers.SweepRunner
	VoteLimiter    *middleware.LimiterStore
	PipelineAPIKey string
	// ServiceOptions are passed to services that accept them (clock injection in tests).
	ServiceOptions []services.Option
	Swagger        bool
}

// NewRouter builds the gin engine with every API route registered.
func NewRouter(opts Options) *gin.Engine {
	db := opts.DB

	// Services
	userService := services.NewUserService(db)
	budgetService := services.NewBudgetService(db, opts.ServiceOptions...)
	categoryService := services.NewCategoryService(db)
	phaseService := services.NewPhaseService(db, opts.ServiceOptions...)
	projectService := services.NewProjectService(db)
	approvalService := services.NewApprovalService(db)
	votingService := services.NewVotingService(db, opts.ServiceOptions...)
	reportService := services.NewImpactReportService(db)

	// Handlers
	userHandler := handlers.NewUserHandler(userService)
	budgetHandler := handlers.NewBudgetHandler(budgetService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	phaseHandler := handlers.NewPhaseHandler(phaseService)
	projectHandler := handlers.NewProjectHandler(projectService)
	approvalHandler := handlers.NewApprovalHandler(approvalService)
	voteHandler := handlers.NewVoteHandler(votingService)
	impactHandler := handlers.NewImpactHandler(reportService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.APIKeyHeader+", "+middleware.RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes (API key, no user)
	if opts.Sweeper != nil {
		pipelineHandler := handlers.NewPipelineHandler(opts.Sweeper)
		pipeline := v1.Group("/pipeline", middleware.RequirePipelineKey(opts.PipelineAPIKey))
		pipeline.POST("/phase-sweep", pipelineHandler.RunPhaseSweep)
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Reviewer-only routes
	admin := protected.Group("/")
	admin.Use(middleware.RequirePrivileged())

	voteLimit := func(c *gin.Context) { c.Next() }
	if opts.VoteLimiter != nil {
		voteLimit = middleware.RateLimit(opts.VoteLimiter)
	}

	// Users
	protected.GET("/users/me", userHandler.GetMe)
	admin.POST("/users", userHandler.CreateUser)
	admin.GET("/users/:id", userHandler.GetUser)
	admin.PUT("/users/:id/votes", userHandler.SetAvailableVotes)
	admin.DELETE("/users/:id", userHandler.DeleteUser)

	// Budgets
	protected.GET("/budgets", budgetHandler.GetBudgets)
	protected.GET("/budgets/:id", budgetHandler.GetBudget)
	protected.GET("/budgets/:id/summary", budgetHandler.GetBudgetSummary)
	protected.GET("/budgets/:id/categories", categoryHandler.GetCategories)
	protected.GET("/budgets/:id/phases", phaseHandler.GetPhases)
	protected.GET("/budgets/:id/projects", projectHandler.GetProjects)
	protected.GET("/budgets/:id/votes-remaining", voteHandler.GetVotesRemaining)
	protected.POST("/budgets/:id/projects", projectHandler.CreateProject)
	admin.POST("/budgets", budgetHandler.CreateBudget)
	admin.PUT("/budgets/:id", budgetHandler.UpdateBudget)
	admin.POST("/budgets/:id/status", budgetHandler.TransitionStatus)
	admin.DELETE("/budgets/:id", budgetHandler.DeleteBudget)
	admin.POST("/budgets/:id/categories", categoryHandler.CreateCategory)
	admin.POST("/budgets/:id/phases", phaseHandler.CreatePhase)

	// Categories
	protected.GET("/categories/:id", categoryHandler.GetCategory)
	protected.GET("/categories/:id/utilization", categoryHandler.GetUtilization)
	admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
	admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)

	// Phases
	protected.GET("/phases/:id", phaseHandler.GetPhase)
	protected.GET("/phases/:id/status", phaseHandler.GetPhaseStatus)
	protected.GET("/phases/:id/results", budgetHandler.GetPhaseResults)
	admin.PUT("/phases/:id", phaseHandler.UpdatePhase)
	admin.POST("/phases/:id/activate", phaseHandler.ActivatePhase)
	admin.POST("/phases/:id/deactivate", phaseHandler.DeactivatePhase)
	admin.DELETE("/phases/:id", phaseHandler.DeletePhase)

	// Projects
	protected.GET("/projects/:id", projectHandler.GetProject)
	protected.GET("/projects/:id/impact", projectHandler.GetImpact)
	protected.GET("/projects/:id/can-vote", voteHandler.CanVote)
	protected.POST("/projects/:id/vote", voteLimit, voteHandler.CastVote)
	protected.DELETE("/projects/:id/vote", voteLimit, voteHandler.RetractVote)
	protected.PUT("/projects/:id", projectHandler.UpdateProject)
	protected.PUT("/projects/:id/impact", projectHandler.UpdateImpactMetric)
	protected.DELETE("/projects/:id", projectHandler.DeleteProject)
	admin.GET("/projects/:id/can-approve", approvalHandler.CanApprove)
	admin.GET("/projects/:id/approval-insight", projectHandler.GetApprovalInsight)
	admin.POST("/projects/:id/approve", approvalHandler.ApproveProject)
	admin.POST("/projects/:id/reject", approvalHandler.RejectProject)
	admin.PUT("/projects/:id/allocation", approvalHandler.AdjustAllocation)
	admin.POST("/projects/:id/implemented", approvalHandler.MarkImplemented)
	admin.POST("/projects/batch-approve", approvalHandler.BatchApprove)
	admin.POST("/projects/batch-reject", approvalHandler.BatchReject)

	// Reports
	protected.GET("/impact-report", impactHandler.GetImpactReport)

	return router
}
