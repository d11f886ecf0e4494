package payement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointboard_back_end/internal/models"
	"pointboard_back_end/internal/store"
)

const sepayPath = "/api/payment/sepay-webhook"

func newTestRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemoryStore()
	store.Use(m, m)

	r := gin.New()
	r.POST(sepayPath, SepayWebhook)
	r.POST("/api/orders", Checkout)
	r.GET("/api/orders/:reference", GetOrder)
	r.GET("/api/orders/:reference/payment-status", PaymentStatus)
	r.GET("/api/orders/:reference/qr", OrderQR)
	return r, m
}

func seedOrder(t *testing.T, m *store.MemoryStore, reference string, amount int64) {
	t.Helper()
	order := &models.Order{
		Reference: reference,
		Items: []models.OrderItem{
			{ProductID: "bg-catan", Name: "Catan", UnitPrice: amount, Quantity: 1},
		},
		TotalAmount: amount,
		Method:      models.PaymentMethodQRTransfer,
		Payment:     models.PaymentPending,
		Fulfillment: models.FulfillmentPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, m.Create(context.Background(), order))
}

func sepayBody(content string, amount int64, transferType string, gatewayID int64) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"id":              gatewayID,
		"gateway":         "MBBank",
		"transactionDate": "2026-08-30 14:02:37",
		"accountNumber":   "0123499999",
		"content":         content,
		"transferType":    transferType,
		"transferAmount":  amount,
		"referenceCode":   "MBVCB.3278907687",
	})
	return body
}

func postWebhook(r *gin.Engine, body []byte, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, sepayPath, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	var ack map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	require.Equal(t, true, ack["success"])
	return ack
}

func TestWebhookSourceNonAutorisee(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "false")
	t.Setenv("SEPAY_IP_WHITELIST", "103.255.238.9, 103.255.238.10")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	w := postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 92704), "198.51.100.7:9999")

	// toujours 200 pour que la passerelle ne rejoue pas l'appel
	decodeAck(t, w)

	// la commande n'a pas bougé, une transaction failed est journalisée
	order, err := m.GetByReference(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, order.Payment)

	txns, err := m.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)
	assert.Equal(t, "198.51.100.7", txns[0].SourceIP)
}

func TestWebhookIPAutoriseeParListeBlanche(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "false")
	t.Setenv("SEPAY_IP_WHITELIST", "103.255.238.9")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	w := postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	order, err := m.GetByReference(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.Payment)
}

func TestWebhookVirementSortant(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	w := postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "out", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	order, _ := m.GetByReference(context.Background(), "ABC123")
	assert.Equal(t, models.PaymentPending, order.Payment)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)
	assert.Contains(t, txns[0].Note, "sortant")
}

func TestWebhookSansReference(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	w := postWebhook(r, sepayBody("virement sans libelle utile", 150000, "in", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	order, _ := m.GetByReference(context.Background(), "ABC123")
	assert.Equal(t, models.PaymentPending, order.Payment)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)
	assert.Empty(t, txns[0].OrderReference)
}

func TestWebhookCommandeInconnue(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)

	w := postWebhook(r, sepayBody("PointBoard-ZZZ999", 150000, "in", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)
	assert.Equal(t, "ZZZ999", txns[0].OrderReference)
}

func TestWebhookJSONInvalide(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)

	w := postWebhook(r, []byte("pas du json"), "103.255.238.9:443")
	decodeAck(t, w)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)
	assert.Equal(t, "pas du json", txns[0].RawPayload)
}

func TestWebhookMontantDifferent(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	// virement de 140 000 pour une commande de 150 000
	w := postWebhook(r, sepayBody("PointBoard-ABC123", 140000, "in", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	// la commande reste pending jusqu'à un virement au bon montant
	order, _ := m.GetByReference(context.Background(), "ABC123")
	assert.Equal(t, models.PaymentPending, order.Payment)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionFailed, txns[0].Resolution)

	// le bon virement finit par arriver
	w = postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 92705), "103.255.238.9:443")
	decodeAck(t, w)

	order, _ = m.GetByReference(context.Background(), "ABC123")
	assert.Equal(t, models.PaymentPaid, order.Payment)
}

func TestWebhookBoutEnBout(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	w := postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 92704), "103.255.238.9:443")
	decodeAck(t, w)

	// commande réglée avec les métadonnées passerelle
	order, err := m.GetByReference(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Equal(t, models.PaymentPaid, order.Payment)
	require.NotNil(t, order.Details)
	assert.Equal(t, "92704", order.Details.GatewayTxnID)
	assert.Equal(t, "MBBank", order.Details.Gateway)
	assert.Equal(t, int64(150000), order.Details.TransferAmount)
	assert.Equal(t, time.Date(2026, 8, 30, 14, 2, 37, 0, time.UTC), order.Details.SettledAt)

	// une transaction success dans le journal
	txns, err := m.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.ResolutionSuccess, txns[0].Resolution)
	assert.Equal(t, "ABC123", txns[0].OrderReference)

	// le statut sondé par le front passe à verified
	req := httptest.NewRequest(http.MethodGet, "/api/orders/ABC123/payment-status", nil)
	wStatus := httptest.NewRecorder()
	r.ServeHTTP(wStatus, req)
	require.Equal(t, http.StatusOK, wStatus.Code)

	var status struct {
		PaymentState    models.PaymentState `json:"payment_state"`
		PaymentVerified bool                `json:"payment_verified"`
		TransferAmount  int64               `json:"transfer_amount"`
	}
	require.NoError(t, json.Unmarshal(wStatus.Body.Bytes(), &status))
	assert.Equal(t, models.PaymentPaid, status.PaymentState)
	assert.True(t, status.PaymentVerified)
	assert.Equal(t, int64(150000), status.TransferAmount)
}

func TestWebhookIdempotent(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	body := sepayBody("PointBoard-ABC123", 150000, "in", 92704)

	first := decodeAck(t, postWebhook(r, body, "103.255.238.9:443"))
	assert.Equal(t, "transaction enregistrée", first["message"])

	// la passerelle rejoue exactement le même webhook : acquitté comme
	// déjà réglée, sans refaire les effets de bord (e-mail, archivage)
	replay := decodeAck(t, postWebhook(r, body, "103.255.238.9:443"))
	assert.Equal(t, "déjà réglée", replay["message"])

	// la commande n'a été réglée qu'une fois, les deux appels sont journalisés
	order, _ := m.GetByReference(context.Background(), "ABC123")
	require.Equal(t, models.PaymentPaid, order.Payment)
	assert.Equal(t, "92704", order.Details.GatewayTxnID)

	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 2)
	assert.Equal(t, models.ResolutionSuccess, txns[0].Resolution)
	assert.Equal(t, models.ResolutionSuccess, txns[1].Resolution)
}

func TestWebhookConflitDeReglement(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	decodeAck(t, postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 92704), "103.255.238.9:443"))

	// second virement avec un autre identifiant passerelle (double paiement)
	decodeAck(t, postWebhook(r, sepayBody("PointBoard-ABC123", 150000, "in", 88888), "103.255.238.9:443"))

	// la commande garde le règlement d'origine
	order, _ := m.GetByReference(context.Background(), "ABC123")
	assert.Equal(t, "92704", order.Details.GatewayTxnID)

	// le conflit part en revue manuelle via le journal
	txns, _ := m.ListRecent(context.Background(), 10)
	require.Len(t, txns, 2)

	var conflictNote string
	for _, txn := range txns {
		if txn.Resolution == models.ResolutionFailed {
			conflictNote = txn.Note
		}
	}
	assert.Contains(t, conflictNote, "conflit")
}

func TestCheckoutPuisWebhook(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")
	t.Setenv("BANK_CODE", "MB")
	t.Setenv("BANK_ACCOUNT_NUMBER", "0123499999")

	r, m := newTestRouter(t)

	checkout := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "bg-wingspan", "name": "Wingspan", "unit_price": 150000, "quantity": 1},
		},
		"shipping": map[string]interface{}{
			"full_name":    "Tran Minh",
			"phone":        "0901234567",
			"email":        "minh@example.com",
			"address_line": "12 Nguyen Hue",
			"city":         "Ho Chi Minh",
		},
		"total_amount":   150000,
		"payment_method": "qr_transfer",
	}
	body, _ := json.Marshal(checkout)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Order     models.Order `json:"order"`
		PaymentQR struct {
			Memo    string `json:"memo"`
			QRURL   string `json:"qr_url"`
			QRImage string `json:"qr_image"`
		} `json:"payment_qr"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	ref := created.Order.Reference
	require.NotEmpty(t, ref)
	assert.Equal(t, models.PaymentPending, created.Order.Payment)
	assert.Equal(t, "PointBoard-"+ref, created.PaymentQR.Memo)
	assert.Contains(t, created.PaymentQR.QRURL, "amount=150000")
	assert.Contains(t, created.PaymentQR.QRImage, "data:image/png;base64,")

	// le QR est aussi servi en PNG
	reqQR := httptest.NewRequest(http.MethodGet, "/api/orders/"+ref+"/qr", nil)
	wQR := httptest.NewRecorder()
	r.ServeHTTP(wQR, reqQR)
	require.Equal(t, http.StatusOK, wQR.Code)
	assert.Equal(t, "image/png", wQR.Header().Get("Content-Type"))

	// le virement arrive avec le libellé du QR
	decodeAck(t, postWebhook(r, sepayBody(created.PaymentQR.Memo, 150000, "in", 31337), "103.255.238.9:443"))

	order, err := m.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, order.Payment)
}

func TestCheckoutValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	post := func(payload map[string]interface{}) *httptest.ResponseRecorder {
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	shipping := map[string]interface{}{"full_name": "Tran Minh", "city": "Ho Chi Minh"}
	items := []map[string]interface{}{
		{"product_id": "bg-catan", "name": "Catan", "unit_price": 150000, "quantity": 1},
	}

	t.Run("total absent", func(t *testing.T) {
		w := post(map[string]interface{}{
			"items": items, "shipping": shipping, "payment_method": "qr_transfer",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("total incohérent", func(t *testing.T) {
		w := post(map[string]interface{}{
			"items": items, "shipping": shipping,
			"total_amount": 99, "payment_method": "qr_transfer",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mode de paiement inconnu", func(t *testing.T) {
		w := post(map[string]interface{}{
			"items": items, "shipping": shipping,
			"total_amount": 150000, "payment_method": "carte_bancaire",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("contre-remboursement accepté", func(t *testing.T) {
		w := post(map[string]interface{}{
			"items": items, "shipping": shipping,
			"total_amount": 150000, "payment_method": "cash_on_delivery",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		// pas de QR pour un paiement à la livraison
		assert.NotContains(t, w.Body.String(), "payment_qr")
	})
}

func TestGetOrderIntrouvable(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/INTROUVABLE", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/INTROUVABLE/payment-status", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookChaqueAppelJournalise(t *testing.T) {
	t.Setenv("SEPAY_SKIP_IP_CHECK", "true")

	r, m := newTestRouter(t)
	seedOrder(t, m, "ABC123", 150000)

	// un mélange d'appels valides et invalides
	for i, body := range [][]byte{
		sepayBody("sans reference", 150000, "in", 1),
		sepayBody("PointBoard-ABC123", 150000, "out", 2),
		sepayBody("PointBoard-ABC123", 150000, "in", 3),
		sepayBody("PointBoard-ABC123", 150000, "in", 3), // rejeu
		[]byte("{corrompu"),
	} {
		w := postWebhook(r, body, fmt.Sprintf("103.255.238.%d:443", i+1))
		decodeAck(t, w)
	}

	// exactement une ligne de journal par appel
	txns, err := m.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, txns, 5)
}
