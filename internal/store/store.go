package store

import (
	"context"
	"errors"

	"pointboard_back_end/internal/models"
)

var (
	ErrOrderNotFound   = errors.New("commande introuvable")
	ErrReferenceTaken  = errors.New("référence déjà utilisée")
	ErrInvalidOrder    = errors.New("commande invalide")
	ErrPaymentConflict = errors.New("conflit de règlement")
)

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByReference(ctx context.Context, reference string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)

	// MarkPaid est idempotent : une commande déjà payée avec le même
	// identifiant de transaction passerelle est un no-op (settled_at inchangé,
	// applied=false pour que l'appelant ne refasse pas les effets de bord) ;
	// un identifiant différent remonte ErrPaymentConflict pour revue manuelle.
	MarkPaid(ctx context.Context, reference string, details models.PaymentDetails) (applied bool, err error)
}

type TransactionStore interface {
	Append(ctx context.Context, txn *models.Transaction) error
	ListRecent(ctx context.Context, limit int) ([]models.Transaction, error)
}

// Implémentations actives, choisies au démarrage (Scylla en prod,
// mémoire dans les tests)
var (
	Orders       OrderStore
	Transactions TransactionStore
)

func Use(orders OrderStore, transactions TransactionStore) {
	Orders = orders
	Transactions = transactions
}

// validateOrder vérifie le contrat de création : lignes non vides,
// total strictement positif et égal à la somme des lignes + frais de port
func validateOrder(order *models.Order) error {
	if order.Reference == "" {
		return ErrInvalidOrder
	}
	if len(order.Items) == 0 {
		return ErrInvalidOrder
	}
	if order.TotalAmount <= 0 {
		return ErrInvalidOrder
	}

	var sum int64
	for _, item := range order.Items {
		if item.UnitPrice < 0 || item.Quantity <= 0 {
			return ErrInvalidOrder
		}
		sum += item.UnitPrice * int64(item.Quantity)
	}
	if sum+order.ShippingFee != order.TotalAmount {
		return ErrInvalidOrder
	}

	return nil
}
