package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/config"
	"pointboard_back_end/internal/database"
	"pointboard_back_end/internal/payref"
	"pointboard_back_end/internal/routes"
	"pointboard_back_end/internal/store"
)

func main() {
	config.Load()

	if os.Getenv("BANK_ACCOUNT_NUMBER") == "" || os.Getenv("BANK_CODE") == "" {
		log.Fatal("❌ BANK_ACCOUNT_NUMBER / BANK_CODE manquants : impossible de générer les QR de virement")
	}
	log.Printf("✅ Préfixe de libellé actif : %s", payref.Default().Prefix)

	if os.Getenv("SEPAY_SKIP_IP_CHECK") == "true" {
		log.Println("⚠️ Contrôle IP SePay désactivé — mode développement uniquement")
	}

	database.ConnectDatabases()

	scylla := store.NewScyllaStore()
	store.Use(scylla, scylla)

	r := gin.Default()
	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Println("🚀 Serveur PointBoard lancé sur le port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Erreur serveur:", err)
		}
	}()

	// Arrêt propre : on draine les requêtes en cours (un webhook en vol doit
	// finir d'être journalisé) puis on ferme les sessions Scylla
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🔌 Arrêt du serveur...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("⚠️ Arrêt forcé:", err)
	}
	database.CloseScylla()
}
