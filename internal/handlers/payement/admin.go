package payement

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pointboard_back_end/internal/services"
	"pointboard_back_end/internal/store"
)

// ListTransactions renvoie le journal des webhooks (les plus récents
// d'abord), utilisé par le tableau de bord de réconciliation
func ListTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	txns, err := store.Transactions.ListRecent(context.Background(), limit)
	if err != nil {
		log.Println("❌ Erreur lecture journal transactions:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur récupération transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
	})
}

// SearchTransactions cherche dans le journal via Elasticsearch
// (revue manuelle : conflits de règlement, virements non matchés)
func SearchTransactions(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre q requis"})
		return
	}

	results, err := services.SearchTransactions(query)
	if err != nil {
		log.Println("⚠️ Recherche Elastic indisponible:", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recherche indisponible"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}
