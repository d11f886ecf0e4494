package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pointboard_back_end/internal/models"
)

// MemoryStore : implémentation en mémoire, utilisée par les tests et le
// mode développement sans Scylla. Protégée par mutex, les webhooks
// concurrents doivent passer par le même contrat MarkPaid que la prod.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	txns   []models.Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*models.Order),
	}
}

func (m *MemoryStore) Create(_ context.Context, order *models.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.Reference]; exists {
		return ErrReferenceTaken
	}

	clone := *order
	m.orders[order.Reference] = &clone
	return nil
}

func (m *MemoryStore) GetByReference(_ context.Context, reference string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, exists := m.orders[reference]
	if !exists {
		return nil, ErrOrderNotFound
	}

	clone := *order
	if order.Details != nil {
		details := *order.Details
		clone.Details = &details
	}
	return &clone, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []models.Order
	for _, order := range m.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (m *MemoryStore) MarkPaid(_ context.Context, reference string, details models.PaymentDetails) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, exists := m.orders[reference]
	if !exists {
		return false, ErrOrderNotFound
	}

	if order.Payment == models.PaymentPaid {
		// Relivraison du même webhook : no-op. Autre identifiant : conflit.
		if order.Details != nil && order.Details.GatewayTxnID == details.GatewayTxnID {
			return false, nil
		}
		return false, ErrPaymentConflict
	}

	if details.SettledAt.IsZero() {
		details.SettledAt = time.Now()
	}
	order.Payment = models.PaymentPaid
	order.Details = &details
	return true, nil
}

func (m *MemoryStore) Append(_ context.Context, txn *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txns = append(m.txns, *txn)
	return nil
}

func (m *MemoryStore) ListRecent(_ context.Context, limit int) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txns := make([]models.Transaction, len(m.txns))
	copy(txns, m.txns)

	// Les plus récentes d'abord
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})

	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}
