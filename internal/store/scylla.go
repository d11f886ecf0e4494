package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"pointboard_back_end/internal/database"
	"pointboard_back_end/internal/models"
)

// ScyllaStore : persistance des commandes et du journal de transactions
// dans le keyspace orders. Le règlement passe par une écriture LWT pour
// que deux livraisons concurrentes du même webhook ne règlent qu'une fois.
type ScyllaStore struct{}

func NewScyllaStore() *ScyllaStore {
	return &ScyllaStore{}
}

func (s *ScyllaStore) Create(ctx context.Context, order *models.Order) error {
	if err := validateOrder(order); err != nil {
		return err
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	shippingJSON, err := json.Marshal(order.Shipping)
	if err != nil {
		return err
	}

	applied, err := session.Query(`INSERT INTO orders
		(reference, user_id, items, shipping, shipping_fee, total_amount,
		 payment_method, payment_state, fulfillment_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		order.Reference, order.UserID, string(itemsJSON), string(shippingJSON),
		order.ShippingFee, order.TotalAmount, string(order.Method),
		string(order.Payment), string(order.Fulfillment), order.CreatedAt).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrReferenceTaken
	}

	return nil
}

func (s *ScyllaStore) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var (
		itemsJSON, shippingJSON                   string
		userID, method, paymentState, fulfillment string
		gatewayTxnID, gatewayName                 string
		shippingFee, totalAmount, transferAmount  int64
		settledAt, createdAt                      time.Time
	)

	err = session.Query(`SELECT user_id, items, shipping, shipping_fee, total_amount,
		payment_method, payment_state, fulfillment_state,
		gateway_txn_id, gateway_name, transfer_amount, settled_at, created_at
		FROM orders WHERE reference = ?`, reference).
		WithContext(ctx).Scan(&userID, &itemsJSON, &shippingJSON, &shippingFee,
		&totalAmount, &method, &paymentState, &fulfillment,
		&gatewayTxnID, &gatewayName, &transferAmount, &settledAt, &createdAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Reference:   reference,
		UserID:      userID,
		ShippingFee: shippingFee,
		TotalAmount: totalAmount,
		Method:      models.PaymentMethod(method),
		Payment:     models.PaymentState(paymentState),
		Fulfillment: models.FulfillmentState(fulfillment),
		CreatedAt:   createdAt,
	}
	if err := json.Unmarshal([]byte(itemsJSON), &order.Items); err != nil {
		return nil, fmt.Errorf("lignes de commande corrompues: %v", err)
	}
	if err := json.Unmarshal([]byte(shippingJSON), &order.Shipping); err != nil {
		return nil, fmt.Errorf("adresse de livraison corrompue: %v", err)
	}
	if order.Payment == models.PaymentPaid {
		order.Details = &models.PaymentDetails{
			GatewayTxnID:   gatewayTxnID,
			Gateway:        gatewayName,
			TransferAmount: transferAmount,
			SettledAt:      settledAt,
		}
	}

	return order, nil
}

func (s *ScyllaStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT reference FROM orders WHERE user_id = ? ALLOW FILTERING`,
		userID).WithContext(ctx).Iter()

	var references []string
	var reference string
	for iter.Scan(&reference) {
		references = append(references, reference)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(references))
	for _, ref := range references {
		order, err := s.GetByReference(ctx, ref)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *ScyllaStore) MarkPaid(ctx context.Context, reference string, details models.PaymentDetails) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	if details.SettledAt.IsZero() {
		details.SettledAt = time.Now()
	}

	applied, err := session.Query(`UPDATE orders SET
		payment_state = ?, gateway_txn_id = ?, gateway_name = ?,
		transfer_amount = ?, settled_at = ?
		WHERE reference = ? IF payment_state = ?`,
		string(models.PaymentPaid), details.GatewayTxnID, details.Gateway,
		details.TransferAmount, details.SettledAt,
		reference, string(models.PaymentPending)).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, err
	}
	if applied {
		return true, nil
	}

	// LWT non appliquée : soit la commande n'existe pas, soit elle est
	// déjà réglée. On relit pour trancher.
	var state, gatewayTxnID string
	err = session.Query(`SELECT payment_state, gateway_txn_id FROM orders WHERE reference = ?`,
		reference).WithContext(ctx).Scan(&state, &gatewayTxnID)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, err
	}

	if models.PaymentState(state) == models.PaymentPaid && gatewayTxnID == details.GatewayTxnID {
		// Relivraison du même webhook : no-op, settled_at intact
		return false, nil
	}
	return false, ErrPaymentConflict
}

func (s *ScyllaStore) Append(ctx context.Context, txn *models.Transaction) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	id, err := gocql.ParseUUID(txn.ID)
	if err != nil {
		return fmt.Errorf("identifiant de transaction invalide: %v", err)
	}

	return session.Query(`INSERT INTO transactions
		(id, gateway_txn_id, order_reference, amount, raw_payload, source_ip,
		 resolution, note, bank_ref_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, txn.GatewayTxnID, txn.OrderReference, txn.Amount, txn.RawPayload,
		txn.SourceIP, string(txn.Resolution), txn.Note, txn.BankRefCode,
		txn.CreatedAt).WithContext(ctx).Exec()
}

func (s *ScyllaStore) ListRecent(ctx context.Context, limit int) ([]models.Transaction, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}

	iter := session.Query(`SELECT id, gateway_txn_id, order_reference, amount,
		raw_payload, source_ip, resolution, note, bank_ref_code, created_at
		FROM transactions LIMIT ?`, limit).WithContext(ctx).Iter()

	var txns []models.Transaction
	var (
		id                                      gocql.UUID
		gatewayTxnID, orderRef, rawPayload      string
		sourceIP, resolution, note, bankRefCode string
		amount                                  int64
		createdAt                               time.Time
	)
	for iter.Scan(&id, &gatewayTxnID, &orderRef, &amount, &rawPayload,
		&sourceIP, &resolution, &note, &bankRefCode, &createdAt) {
		txns = append(txns, models.Transaction{
			ID:             id.String(),
			GatewayTxnID:   gatewayTxnID,
			OrderReference: orderRef,
			Amount:         amount,
			RawPayload:     rawPayload,
			SourceIP:       sourceIP,
			Resolution:     models.ResolutionState(resolution),
			Note:           note,
			BankRefCode:    bankRefCode,
			CreatedAt:      createdAt,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	// L'ordre de scan Scylla suit les tokens, pas la date
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}
