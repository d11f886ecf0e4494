package payement

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/cache"
	"pointboard_back_end/internal/models"
	"pointboard_back_end/internal/payref"
	"pointboard_back_end/internal/store"
)

// GetOrder récupère une commande par sa référence
func GetOrder(c *gin.Context) {
	reference := strings.ToUpper(c.Param("reference"))

	order, err := store.Orders.GetByReference(context.Background(), reference)
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		log.Println("❌ Erreur lecture commande:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commande"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// PaymentStatus est l'endpoint sondé par le front toutes les 2 secondes
// pendant l'attente du virement : Redis d'abord, Scylla sinon
func PaymentStatus(c *gin.Context) {
	reference := strings.ToUpper(c.Param("reference"))

	if status, ok := cache.GetPaymentStatus(reference); ok {
		c.JSON(http.StatusOK, gin.H{
			"payment_state":    status.State,
			"payment_verified": status.State == models.PaymentPaid,
			"transfer_amount":  status.TransferAmount,
		})
		return
	}

	order, err := store.Orders.GetByReference(context.Background(), reference)
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		log.Println("❌ Erreur lecture statut paiement:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération statut"})
		return
	}

	var transferAmount int64
	if order.Details != nil {
		transferAmount = order.Details.TransferAmount
	}

	// Une commande réglée ne change plus : on peut la mettre en cache
	if order.Payment == models.PaymentPaid {
		cache.SetPaymentStatus(reference, cache.PaymentStatus{
			State:          order.Payment,
			TransferAmount: transferAmount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_state":    order.Payment,
		"payment_verified": order.Payment == models.PaymentPaid,
		"transfer_amount":  transferAmount,
	})
}

// OrderQR sert le QR de virement en PNG (affiché sur la page de checkout)
func OrderQR(c *gin.Context) {
	reference := strings.ToUpper(c.Param("reference"))

	order, err := store.Orders.GetByReference(context.Background(), reference)
	if errors.Is(err, store.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commande"})
		return
	}

	if order.Method != models.PaymentMethodQRTransfer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Commande sans paiement par virement"})
		return
	}

	memo := payref.Default().Format(order.Reference)
	png, err := payref.QRPNG(order.TotalAmount, memo)
	if err != nil {
		log.Println("❌ Génération QR échouée:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur génération QR"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// MyOrders liste les commandes de l'utilisateur connecté
func MyOrders(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	orders, err := store.Orders.ListByUser(context.Background(), userID)
	if err != nil {
		log.Println("❌ Erreur lecture commandes:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération commandes"})
		return
	}

	log.Printf("✅ %d commandes trouvées pour user %s", len(orders), userID)

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
