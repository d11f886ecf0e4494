package payement

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/models"
	"pointboard_back_end/internal/payref"
	"pointboard_back_end/internal/store"
)

// Checkout crée la commande (statut pending/pending) et renvoie le QR de
// virement quand le paiement est en qr_transfer
func Checkout(c *gin.Context) {
	var req struct {
		Items       []models.OrderItem     `json:"items" binding:"required"`
		Shipping    models.ShippingDetails `json:"shipping" binding:"required"`
		ShippingFee int64                  `json:"shipping_fee"`
		TotalAmount int64                  `json:"total_amount" binding:"required"`
		Method      models.PaymentMethod   `json:"payment_method" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	if req.Method != models.PaymentMethodQRTransfer && req.Method != models.PaymentMethodCashOnDelivery {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mode de paiement non supporté"})
		return
	}

	order := &models.Order{
		Reference:   payref.NewReference(),
		UserID:      c.GetString("user_id"), // vide pour un invité
		Items:       req.Items,
		Shipping:    req.Shipping,
		ShippingFee: req.ShippingFee,
		TotalAmount: req.TotalAmount,
		Method:      req.Method,
		Payment:     models.PaymentPending,
		Fulfillment: models.FulfillmentPending,
		CreatedAt:   time.Now(),
	}

	ctx := context.Background()
	err := store.Orders.Create(ctx, order)
	if errors.Is(err, store.ErrReferenceTaken) {
		// Collision de référence : on retire une fois
		order.Reference = payref.NewReference()
		err = store.Orders.Create(ctx, order)
	}
	if errors.Is(err, store.ErrInvalidOrder) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Commande invalide : total incohérent ou panier vide"})
		return
	}
	if err != nil {
		log.Println("❌ Erreur création commande:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur création commande"})
		return
	}

	log.Printf("🧾 Commande créée : %s (%d ₫, %s)", order.Reference, order.TotalAmount, order.Method)

	response := gin.H{"order": order}

	if order.Method == models.PaymentMethodQRTransfer {
		memo := payref.Default().Format(order.Reference)
		qrImage, err := payref.QRPNGBase64(order.TotalAmount, memo)
		if err != nil {
			log.Println("⚠️ Génération QR échouée:", err)
		}
		response["payment_qr"] = gin.H{
			"memo":     memo,
			"qr_url":   payref.QuickLinkURL(order.TotalAmount, memo),
			"qr_image": qrImage,
		}
	}

	c.JSON(http.StatusCreated, response)
}
