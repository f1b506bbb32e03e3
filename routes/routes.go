package routes

import (
	"net/http"
	"strings"
	"time"

	"mitra/handlers"
	"mitra/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterAuthRoutes registers the partner API sign-in endpoints.
func RegisterAuthRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/auth")
	{
		api.POST("/login", hb.Account.LoginHandler)
		api.GET("/me", hb.Account.MeHandler)
	}

	signedIn := api.Group("")
	signedIn.Use(middleware.RequireMitraSession(hb.Session))
	signedIn.POST("/logout", hb.Account.LogoutHandler)
}

// RegisterMitraRoutes registers the booking session and top-up endpoints.
func RegisterMitraRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/mitra")
	api.Use(middleware.RequireMitraSession(hb.Session))
	{
		api.POST("/schedules/search", hb.Transactions.SearchHandler)
		api.GET("/schedules/:providerCode/seats", hb.Transactions.SeatMapHandler)
		api.POST("/selection", hb.Transactions.SelectHandler)

		api.POST("/transactions", hb.Transactions.BookHandler)
		api.GET("/transactions/:trxCode", hb.Transactions.RefreshHandler)
		api.GET("/transactions/:trxCode/history", hb.Transactions.HistoryHandler)
		api.POST("/transactions/:trxCode/pay", hb.Transactions.PayHandler)
		api.POST("/transactions/:trxCode/issue", hb.Transactions.IssueHandler)
		api.POST("/transactions/:trxCode/cancel", hb.Transactions.CancelHandler)

		api.GET("/session", hb.Transactions.SessionHandler)
		api.GET("/session/errors", hb.Transactions.ErrorsHandler)
		api.DELETE("/session", hb.Transactions.ResetHandler)

		api.GET("/topups", hb.Account.ListTopupsHandler)
		api.POST("/topups", hb.Account.CreateTopupHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", func(c *gin.Context) {
		if hb.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		status := hb.Health.Status()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
}

func RegisterMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes registers all routes. Only the listed browser origins may
// call the facade cross-origin; requests without an Origin header pass.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, allowedOrigins []string) {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" && o != "*" {
			allowed[o] = struct{}{}
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterMetricsRoute(r)
	RegisterAuthRoutes(r, hb)
	RegisterMitraRoutes(r, hb)
}
