package models

import "time"

type PaymentMethod string

const (
	PaymentMethodQRTransfer     PaymentMethod = "qr_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type PaymentState string

const (
	PaymentPending  PaymentState = "pending"
	PaymentPaid     PaymentState = "paid"
	PaymentFailed   PaymentState = "failed"
	PaymentRefunded PaymentState = "refunded"
)

type FulfillmentState string

const (
	FulfillmentPending    FulfillmentState = "pending"
	FulfillmentProcessing FulfillmentState = "processing"
	FulfillmentShipped    FulfillmentState = "shipped"
	FulfillmentDelivered  FulfillmentState = "delivered"
	FulfillmentCancelled  FulfillmentState = "cancelled"
)

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // en VND, pas de centimes
	Quantity  int    `json:"quantity"`
}

type ShippingDetails struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	AddressLine string `json:"address_line"`
	Ward        string `json:"ward"`
	District    string `json:"district"`
	City        string `json:"city"`
	Note        string `json:"note"`
}

// PaymentDetails n'est renseigné qu'au règlement, jamais modifié ensuite
type PaymentDetails struct {
	GatewayTxnID   string    `json:"gateway_txn_id"`
	Gateway        string    `json:"gateway"`
	TransferAmount int64     `json:"transfer_amount"`
	SettledAt      time.Time `json:"settled_at"`
}

type Order struct {
	Reference   string           `json:"reference"`
	UserID      string           `json:"user_id,omitempty"` // vide pour une commande invité
	Items       []OrderItem      `json:"items"`
	Shipping    ShippingDetails  `json:"shipping"`
	ShippingFee int64            `json:"shipping_fee"`
	TotalAmount int64            `json:"total_amount"`
	Method      PaymentMethod    `json:"payment_method"`
	Payment     PaymentState     `json:"payment_state"`
	Fulfillment FulfillmentState `json:"fulfillment_state"`
	Details     *PaymentDetails  `json:"payment_details,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
