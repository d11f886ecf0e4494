package routes

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/handlers/payement"
	"pointboard_back_end/internal/middleware"
)

func RegisterRoutes(r *gin.Engine) {
	frontend := os.Getenv("FRONTEND_URL")
	if frontend == "" {
		frontend = "http://localhost:3000"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontend},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")

	// Commandes
	api.POST("/orders",
		middleware.AuthOptional(),
		middleware.RateLimit("checkout", middleware.CheckoutMaxRequests, middleware.CheckoutWindow),
		payement.Checkout)
	api.GET("/orders/:reference", payement.GetOrder)
	api.GET("/orders/:reference/payment-status",
		middleware.RateLimit("status", middleware.StatusPollMaxRequests, middleware.StatusPollWindow),
		payement.PaymentStatus)
	api.GET("/orders/:reference/qr", payement.OrderQR)
	api.GET("/my-orders", middleware.AuthRequired(), payement.MyOrders)

	// Webhook passerelle, sans middleware d'auth : la décision de liste
	// blanche se prend dans le handler pour que l'appel soit journalisé
	api.POST("/payment/sepay-webhook", payement.SepayWebhook)

	// Réconciliation (admin)
	admin := api.Group("/admin", middleware.AuthRequired(), middleware.RequireAdmin)
	admin.GET("/transactions", payement.ListTransactions)
	admin.GET("/transactions/search", payement.SearchTransactions)
}
