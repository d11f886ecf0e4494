package models

import "time"

type ResolutionState string

const (
	ResolutionPending ResolutionState = "pending"
	ResolutionSuccess ResolutionState = "success"
	ResolutionFailed  ResolutionState = "failed"
)

// Transaction : une ligne par appel webhook entrant, quel que soit le résultat.
// Journal en append-only, le statut n'est finalisé qu'au sein de la requête.
type Transaction struct {
	ID             string          `json:"id"`
	GatewayTxnID   string          `json:"gateway_txn_id,omitempty"`
	OrderReference string          `json:"order_reference,omitempty"` // renseigné uniquement si le libellé a matché
	Amount         int64           `json:"amount"`
	RawPayload     string          `json:"raw_payload"`
	SourceIP       string          `json:"source_ip"`
	Resolution     ResolutionState `json:"resolution"`
	Note           string          `json:"note,omitempty"`
	BankRefCode    string          `json:"bank_reference_code,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SepayWebhookPayload : corps POST envoyé par la passerelle SePay
type SepayWebhookPayload struct {
	ID              int64  `json:"id"`
	Gateway         string `json:"gateway"`
	TransactionDate string `json:"transactionDate"`
	AccountNumber   string `json:"accountNumber"`
	SubAccount      string `json:"subAccount"`
	Content         string `json:"content"`
	TransferType    string `json:"transferType"` // "in" ou "out"
	TransferAmount  int64  `json:"transferAmount"`
	Accumulated     int64  `json:"accumulated"`
	ReferenceCode   string `json:"referenceCode"`
	Description     string `json:"description"`
}
