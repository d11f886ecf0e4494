package cache

import (
	"context"
	"encoding/json"
	"time"

	"pointboard_back_end/internal/database"
	"pointboard_back_end/internal/models"
)

// Le front sonde le statut toutes les 2 secondes pendant des heures :
// on sert les commandes réglées depuis Redis plutôt que Scylla.
const PaymentStatusTTL = 30 * time.Minute

type PaymentStatus struct {
	State          models.PaymentState `json:"state"`
	TransferAmount int64               `json:"transfer_amount"`
}

// GetPaymentStatus lit le statut de paiement depuis Redis
func GetPaymentStatus(reference string) (*PaymentStatus, bool) {
	if database.Redis == nil {
		return nil, false
	}

	ctx := context.Background()
	data, err := database.Redis.Get(ctx, "payment:"+reference).Result()
	if err != nil {
		return nil, false
	}

	var status PaymentStatus
	if json.Unmarshal([]byte(data), &status) != nil {
		return nil, false
	}
	return &status, true
}

// SetPaymentStatus pousse le statut dans Redis (best-effort)
func SetPaymentStatus(reference string, status PaymentStatus) {
	if database.Redis == nil {
		return
	}

	data, err := json.Marshal(status)
	if err != nil {
		return
	}

	ctx := context.Background()
	database.Redis.Set(ctx, "payment:"+reference, data, PaymentStatusTTL)
}
