package payement

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pointboard_back_end/internal/cache"
	"pointboard_back_end/internal/models"
	"pointboard_back_end/internal/payref"
	"pointboard_back_end/internal/services"
	"pointboard_back_end/internal/store"
	"pointboard_back_end/internal/utils"
)

//
// 🔔 Webhook SePay : notification de virement bancaire
//
// Chaque appel produit exactement une ligne dans le journal de transactions
// et répond TOUJOURS 200 {success: true} : la passerelle considère l'appel
// livré et ne le rejoue pas. Le résultat métier vit uniquement dans l'état
// persisté, pas dans le code HTTP.
//
func SepayWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	ctx := context.Background()

	txn := &models.Transaction{
		ID:         uuid.NewString(),
		SourceIP:   c.ClientIP(),
		Resolution: models.ResolutionPending,
		CreatedAt:  time.Now(),
	}

	// Filet de sécurité : même en cas de panique en cours de pipeline, on
	// journalise une transaction failed et on acquitte
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panique webhook: %v", r)
			txn.Resolution = models.ResolutionFailed
			txn.Note = "erreur interne"
			logTransaction(ctx, txn)
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "reçu"})
		}
	}()

	reject := func(note string) {
		txn.Resolution = models.ResolutionFailed
		txn.Note = note
		logTransaction(ctx, txn)
		log.Printf("⚠️ Webhook rejeté (%s) depuis %s", note, txn.SourceIP)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "reçu"})
	}

	payload, err := c.GetRawData()
	if err != nil {
		reject("lecture du corps échouée")
		return
	}
	txn.RawPayload = string(payload)

	// 1. Authentification par source : liste blanche d'IP SePay
	if !sourceAutorisee(c.ClientIP()) {
		reject("source non autorisée")
		return
	}

	var wh models.SepayWebhookPayload
	if err := json.Unmarshal(payload, &wh); err != nil {
		reject("JSON invalide")
		return
	}

	txn.GatewayTxnID = strconv.FormatInt(wh.ID, 10)
	txn.Amount = wh.TransferAmount
	txn.BankRefCode = wh.ReferenceCode

	// 2. Seuls les virements entrants nous intéressent
	if !strings.EqualFold(wh.TransferType, "in") {
		reject("virement sortant ignoré")
		return
	}

	// 3. Extraction de la référence depuis le libellé libre
	reference, ok := payref.Default().Parse(wh.Content)
	if !ok {
		reject("référence absente du libellé")
		return
	}
	txn.OrderReference = reference

	// 4. Résolution de la commande
	order, err := store.Orders.GetByReference(ctx, reference)
	if errors.Is(err, store.ErrOrderNotFound) {
		reject("commande introuvable")
		return
	}
	if err != nil {
		log.Println("❌ Erreur lecture commande:", err)
		reject("erreur lecture commande")
		return
	}

	// Un virement partiel ne règle rien : on journalise et on attend un
	// virement au bon montant
	if wh.TransferAmount != order.TotalAmount {
		reject("montant différent du total de la commande")
		return
	}

	// 5. Règlement
	details := models.PaymentDetails{
		GatewayTxnID:   txn.GatewayTxnID,
		Gateway:        wh.Gateway,
		TransferAmount: wh.TransferAmount,
		SettledAt:      parseTransactionDate(wh.TransactionDate),
	}

	applied, err := store.Orders.MarkPaid(ctx, reference, details)
	if errors.Is(err, store.ErrPaymentConflict) {
		// Deuxième virement avec un autre identifiant passerelle : on ne
		// touche pas à la commande, le journal part en revue manuelle
		reject("conflit de règlement — revue manuelle requise")
		return
	}
	if err != nil {
		log.Println("❌ Erreur règlement:", err)
		reject("erreur règlement")
		return
	}

	txn.Resolution = models.ResolutionSuccess
	logTransaction(ctx, txn)

	if !applied {
		// Rejeu du même webhook : la commande est déjà réglée, on
		// journalise l'appel sans refaire les effets de bord (e-mail,
		// archivage)
		log.Printf("ℹ️ Webhook rejoué pour la commande %s : déjà réglée", reference)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "déjà réglée"})
		return
	}

	log.Printf("✅ Paiement confirmé : commande %s (%d ₫ via %s)",
		reference, wh.TransferAmount, wh.Gateway)

	// Effets de bord post-règlement, jamais sur le chemin de l'ack
	cache.SetPaymentStatus(reference, cache.PaymentStatus{
		State:          models.PaymentPaid,
		TransferAmount: wh.TransferAmount,
	})
	services.ArchiveWebhookPayload(txn.ID, payload)

	order.Payment = models.PaymentPaid
	order.Details = &details
	go func(o models.Order) {
		if err := utils.SendSettlementEmail(&o); err != nil {
			log.Println("❌ Erreur envoi e-mail confirmation:", err)
		}
	}(*order)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "transaction enregistrée"})
}

// logTransaction persiste la ligne de journal et l'indexe pour la
// recherche de réconciliation. Best-effort : un échec se loggue, il ne
// bloque jamais l'acquittement.
func logTransaction(ctx context.Context, txn *models.Transaction) {
	if err := store.Transactions.Append(ctx, txn); err != nil {
		log.Println("❌ Échec journalisation transaction:", err)
	}
	services.IndexTransaction(txn)
}

// sourceAutorisee vérifie l'IP appelante contre SEPAY_IP_WHITELIST.
// SEPAY_SKIP_IP_CHECK=true court-circuite le contrôle en développement.
func sourceAutorisee(ip string) bool {
	if os.Getenv("SEPAY_SKIP_IP_CHECK") == "true" {
		return true
	}

	for _, allowed := range strings.Split(os.Getenv("SEPAY_IP_WHITELIST"), ",") {
		if strings.TrimSpace(allowed) == ip && ip != "" {
			return true
		}
	}
	return false
}

// parseTransactionDate lit le format SePay "2006-01-02 15:04:05",
// repli sur l'heure de réception
func parseTransactionDate(raw string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return time.Now()
	}
	return t
}
