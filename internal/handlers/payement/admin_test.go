package payement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointboard_back_end/internal/middleware"
	"pointboard_back_end/internal/models"
	"pointboard_back_end/internal/store"
)

func newAdminRouter(t *testing.T) (*gin.Engine, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemoryStore()
	store.Use(m, m)

	r := gin.New()
	r.GET("/api/my-orders", middleware.AuthRequired(), MyOrders)
	admin := r.Group("/api/admin", middleware.AuthRequired(), middleware.RequireAdmin)
	admin.GET("/transactions", ListTransactions)
	admin.GET("/transactions/search", SearchTransactions)
	return r, m
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret-test"))
	require.NoError(t, err)
	return signed
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminTransactionsAccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-test")

	r, m := newAdminRouter(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Append(context.Background(), &models.Transaction{
			ID:         string(rune('a' + i)),
			Resolution: models.ResolutionFailed,
			Note:       "source non autorisée",
			CreatedAt:  time.Now(),
		}))
	}

	t.Run("sans token", func(t *testing.T) {
		w := get(r, "/api/admin/transactions", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token sans rôle admin", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"user_id": "u1", "role": "customer"})
		w := get(r, "/api/admin/transactions", token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("mauvais secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1", "role": "admin"})
		signed, err := token.SignedString([]byte("autre-secret"))
		require.NoError(t, err)
		w := get(r, "/api/admin/transactions", signed)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin", func(t *testing.T) {
		token := signToken(t, jwt.MapClaims{"user_id": "u1", "role": "admin"})
		w := get(r, "/api/admin/transactions?limit=2", token)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Transactions []models.Transaction `json:"transactions"`
			Count        int                  `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})
}

func TestAdminSearchSansElastic(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-test")

	r, _ := newAdminRouter(t)
	token := signToken(t, jwt.MapClaims{"user_id": "u1", "role": "admin"})

	t.Run("paramètre manquant", func(t *testing.T) {
		w := get(r, "/api/admin/transactions/search", token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("elastic indisponible", func(t *testing.T) {
		w := get(r, "/api/admin/transactions/search?q=conflit", token)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMyOrders(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-test")

	r, m := newAdminRouter(t)

	order := &models.Order{
		Reference: "MINE01",
		UserID:    "u1",
		Items: []models.OrderItem{
			{ProductID: "bg-azul", Name: "Azul", UnitPrice: 90000, Quantity: 1},
		},
		TotalAmount: 90000,
		Method:      models.PaymentMethodCashOnDelivery,
		Payment:     models.PaymentPending,
		Fulfillment: models.FulfillmentPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, m.Create(context.Background(), order))

	token := signToken(t, jwt.MapClaims{"user_id": "u1", "email": "minh@example.com", "role": "customer"})
	w := get(r, "/api/my-orders", token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "MINE01", resp.Orders[0].Reference)
}
