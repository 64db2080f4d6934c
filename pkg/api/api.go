package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusride/config"
	"campusride/pkg/logger"
	"campusride/pkg/models"
	"campusride/pkg/socket"
	"campusride/service"
)

type Handler struct {
	Cfg *config.Config
	Svc service.IServiceManager
	Hub *socket.Hub
	Log logger.ILogger
}

func New(cfg *config.Config, svc service.IServiceManager, hub *socket.Hub, log logger.ILogger) *Handler {
	return &Handler{Cfg: cfg, Svc: svc, Hub: hub, Log: log}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	if h.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.cors())

	r.GET("/health", h.health)
	r.GET("/ws", h.serveWS)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.login)
		auth.POST("/signup", h.signup)
		auth.GET("/me", h.authenticate(), h.me)
	}

	rides := api.Group("/rides", h.authenticate())
	{
		student := rides.Group("", h.requireRole(models.RoleStudent))
		student.POST("/book", h.bookRide)
		student.POST("/leave", h.leaveQueue)
		student.GET("/student/current", h.studentCurrentRide)
		student.GET("/student/history", h.studentHistory)

		driver := rides.Group("/driver", h.requireRole(models.RoleDriver))
		driver.GET("/current", h.driverCurrentRide)
		driver.PATCH("/students/:queueEntryId/arrive", h.markArrived)
		driver.PATCH("/students/:queueEntryId/cancel", h.cancelStudent)
		driver.PATCH("/start", h.startTrip)
		driver.PATCH("/complete", h.completeTrip)

		admin := rides.Group("/admin", h.requireRole(models.RoleAdmin))
		admin.GET("/queue", h.adminQueue)
		admin.GET("/stats", h.adminStats)
	}

	chat := api.Group("/chat", h.authenticate())
	{
		chat.GET("/current-room", h.currentRoom)
		chat.GET("/rooms/:roomType/:roomId/messages", h.roomMessages)
		chat.POST("/rooms/:roomType/:roomId/messages", h.sendMessage)
	}

	complaints := api.Group("/complaints", h.authenticate())
	{
		complaints.POST("", h.requireRole(models.RoleStudent), h.createComplaint)
		complaints.GET("/mine", h.requireRole(models.RoleStudent), h.myComplaints)
		complaints.GET("", h.requireRole(models.RoleAdmin), h.allComplaints)
		complaints.PATCH("/:id/status", h.requireRole(models.RoleAdmin), h.updateComplaintStatus)
	}

	schedules := api.Group("/schedules", h.authenticate())
	{
		schedules.GET("", h.listSchedules)
		schedules.POST("", h.requireRole(models.RoleAdmin), h.createSchedule)
	}

	users := api.Group("/users", h.authenticate(), h.requireRole(models.RoleAdmin))
	{
		users.GET("", h.listUsers)
		users.POST("", h.createUser)
		users.POST("/remove-by-email", h.removeUserByEmail)
		users.DELETE("/:id", h.removeUser)
		users.POST("/:id/reactivate", h.reactivateUser)
	}

	return r
}

func (h *Handler) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(h.Cfg.CORSOrigins))
	for _, o := range h.Cfg.CORSOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	ok(c, "OK", gin.H{
		"status":    "ok",
		"clients":   h.Hub.ClientCount(),
		"timestamp": time.Now().UTC(),
	})
}
