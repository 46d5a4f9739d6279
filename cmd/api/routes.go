package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/handler"
	"github.com/campusconnect/campus-connect-api/internal/middleware"
	"github.com/campusconnect/campus-connect-api/internal/models"
	"github.com/campusconnect/campus-connect-api/internal/service"
	"github.com/campusconnect/campus-connect-api/internal/ws"
	"github.com/campusconnect/campus-connect-api/pkg/config"
	"github.com/campusconnect/campus-connect-api/pkg/logger"
	corsmiddleware "github.com/campusconnect/campus-connect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusconnect/campus-connect-api/pkg/middleware/requestid"
)

type routeDeps struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService

	auth          *handler.AuthHandler
	users         *handler.UserHandler
	chat          *handler.ChatHandler
	sessions      *handler.SessionHandler
	notifications *handler.NotificationHandler
	exports       *handler.ExportHandler
	socket        *ws.Handler

	authSvc *service.AuthService
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/uploads/:file", d.users.ServeUpload)

	requireAuth := middleware.JWT(d.authSvc)
	api := r.Group(d.cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", d.auth.Register)
		auth.POST("/login", d.auth.Login)
		auth.GET("/me", requireAuth, d.auth.Me)
	}

	users := api.Group("/users", requireAuth)
	{
		users.GET("/me", d.users.Me)
		users.PUT("/me", d.users.UpdateMe)
		users.PUT("/me/password", d.users.ChangePassword)
		users.POST("/me/picture", d.users.UploadPicture)
		users.GET("", d.users.List)
		users.GET("/seniors", d.users.Seniors)
		users.GET("/:id", d.users.Get)
	}

	chat := api.Group("/chat", requireAuth)
	{
		chat.POST("/request", d.chat.SendRequest)
		chat.GET("/requests", d.chat.ListRequests)
		chat.PUT("/requests/:id/accept", d.chat.Accept)
		chat.PUT("/requests/:id/reject", d.chat.Reject)
		chat.GET("/:id/messages", d.chat.ListMessages)
		chat.POST("/:id/messages", d.chat.SendMessage)
	}

	sessions := api.Group("/sessions", requireAuth)
	{
		sessions.GET("", d.sessions.List)
		sessions.GET("/:id", d.sessions.Get)
		sessions.POST("", middleware.RequireRoles(models.RoleSenior, models.RoleAlumni, models.RoleAdmin), d.sessions.Create)
		sessions.POST("/:id/join", d.sessions.Join)
		sessions.DELETE("/:id/join", d.sessions.Leave)
		sessions.DELETE("/:id", d.sessions.Delete)
	}

	notifications := api.Group("/notifications", requireAuth)
	{
		notifications.GET("", d.notifications.List)
		notifications.PUT("/:id/read", d.notifications.MarkRead)
		notifications.PUT("/read-all", d.notifications.MarkAllRead)
	}

	if d.exports != nil {
		admin := api.Group("/admin", requireAuth, middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/exports", d.exports.Request)
			admin.GET("/exports/:id", d.exports.Status)
			admin.GET("/exports/:id/download", d.exports.DownloadURL)
		}
		// Token-authenticated, links are handed out by the download endpoint.
		api.GET("/admin/exports/download", d.exports.Download)
	}

	api.GET("/ws", requireAuth, d.socket.Connect)

	return r
}
