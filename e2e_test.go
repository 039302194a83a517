package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Okprime/MVP-Match-Assessment/handlers"
	"github.com/Okprime/MVP-Match-Assessment/models"
	"github.com/Okprime/MVP-Match-Assessment/repository"
	"github.com/Okprime/MVP-Match-Assessment/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestServer() *httptest.Server {
	repo := repository.NewMemoryRepository()
	engine := service.NewDefaultEngine(repo, zap.NewNop())
	auth := service.NewAuthService(repo, "secret")
	h := handlers.NewHandler(engine, auth, zap.NewNop())
	return httptest.NewServer(handlers.NewRouter(h))
}

type apiClient struct {
	t      *testing.T
	ts     *httptest.Server
	client *http.Client
}

func (c apiClient) do(method, path, token string, payload interface{}, out interface{}) int {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.ts.URL+path, body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c apiClient) register(username, role string) string {
	c.t.Helper()
	var auth handlers.AuthResponse
	code := c.do(http.MethodPost, "/user", "", handlers.RegisterRequest{
		Username: username,
		Password: "password1",
		Role:     role,
	}, &auth)
	require.Equal(c.t, http.StatusCreated, code)
	require.NotEmpty(c.t, auth.AccessToken)
	return auth.AccessToken
}

func TestE2E_BuyFlow(t *testing.T) {
	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	sellerToken := c.register("e2e_seller", "seller")
	buyerToken := c.register("e2e_buyer", "buyer")

	var product models.Product
	code := c.do(http.MethodPost, "/product", sellerToken, handlers.CreateProductRequest{
		ProductName:     "cola",
		AmountAvailable: 10,
		Cost:            30,
	}, &product)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, 10, product.Stock)

	var user models.User
	code = c.do(http.MethodPost, "/product/deposit", buyerToken, handlers.DepositRequest{Amount: 100}, &user)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 100, user.Balance)

	var result models.PurchaseResult
	code = c.do(http.MethodPost, "/product/buy", buyerToken, handlers.BuyRequest{
		ProductID:        product.ID,
		AmountOfProducts: 2,
	}, &result)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 60, result.TotalSpent)
	require.Equal(t, []int{20, 20}, result.Change)
	require.Equal(t, 8, result.PurchasedProduct.Stock)

	code = c.do(http.MethodGet, fmt.Sprintf("/user/%d", user.ID), buyerToken, nil, &user)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 40, user.Balance)

	var errResp handlers.ErrorResponse
	code = c.do(http.MethodPost, "/product/buy", buyerToken, handlers.BuyRequest{
		ProductID:        product.ID,
		AmountOfProducts: 9,
	}, &errResp)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, errResp.Errors, "insufficient stock")

	for i := 0; i < 2; i++ {
		code = c.do(http.MethodPost, "/product/reset", buyerToken, nil, &user)
		require.Equal(t, http.StatusOK, code)
		require.Zero(t, user.Balance)
	}

	code = c.do(http.MethodPost, "/product/buy", buyerToken, handlers.BuyRequest{
		ProductID:        product.ID,
		AmountOfProducts: 1,
	}, &errResp)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, errResp.Errors, "insufficient funds")

	code = c.do(http.MethodGet, fmt.Sprintf("/product/%d", product.ID), buyerToken, nil, &product)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 8, product.Stock)
}

func TestE2E_Deposit(t *testing.T) {
	type args struct {
		role  string
		coins []int
	}
	type expected struct {
		lastStatus int
		balance    int
	}
	tests := []struct {
		name     string
		args     args
		expected expected
	}{
		{
			name:     "Buyer deposits every denomination",
			args:     args{role: "buyer", coins: []int{5, 10, 20, 50, 100}},
			expected: expected{lastStatus: http.StatusOK, balance: 185},
		},
		{
			name:     "Coin 7 is rejected and balance stays at 50",
			args:     args{role: "buyer", coins: []int{50, 7}},
			expected: expected{lastStatus: http.StatusBadRequest, balance: 50},
		},
		{
			name:     "Seller cannot deposit",
			args:     args{role: "seller", coins: []int{5}},
			expected: expected{lastStatus: http.StatusForbidden},
		},
	}

	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			token := c.register(fmt.Sprintf("e2e_depositor_%d", i), tt.args.role)

			var (
				user models.User
				code int
			)
			for _, coin := range tt.args.coins {
				code = c.do(http.MethodPost, "/product/deposit", token, handlers.DepositRequest{Amount: coin}, nil)
			}
			require.Equal(t, tt.expected.lastStatus, code)

			if tt.args.role != "buyer" {
				return
			}
			code = c.do(http.MethodGet, fmt.Sprintf("/user/%d", i+1), token, nil, &user)
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, tt.expected.balance, user.Balance)
		})
	}
}

func TestE2E_ProductOwnership(t *testing.T) {
	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	ownerToken := c.register("e2e_owner", "seller")
	strangerToken := c.register("e2e_stranger", "seller")
	buyerToken := c.register("e2e_customer", "buyer")

	var product models.Product
	code := c.do(http.MethodPost, "/product", ownerToken, handlers.CreateProductRequest{
		ProductName:     "water",
		AmountAvailable: 3,
		Cost:            15,
	}, &product)
	require.Equal(t, http.StatusCreated, code)

	cost := 25
	patch := handlers.UpdateProductRequest{Cost: &cost}
	require.Equal(t, http.StatusForbidden,
		c.do(http.MethodPatch, fmt.Sprintf("/product/%d", product.ID), strangerToken, patch, nil))
	require.Equal(t, http.StatusForbidden,
		c.do(http.MethodPatch, fmt.Sprintf("/product/%d", product.ID), buyerToken, patch, nil))

	code = c.do(http.MethodPatch, fmt.Sprintf("/product/%d", product.ID), ownerToken, patch, &product)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 25, product.Price)

	badCost := 27
	require.Equal(t, http.StatusBadRequest,
		c.do(http.MethodPatch, fmt.Sprintf("/product/%d", product.ID), ownerToken,
			handlers.UpdateProductRequest{Cost: &badCost}, nil))

	require.Equal(t, http.StatusForbidden,
		c.do(http.MethodDelete, fmt.Sprintf("/product/%d", product.ID), strangerToken, nil, nil))
	require.Equal(t, http.StatusOK,
		c.do(http.MethodDelete, fmt.Sprintf("/product/%d", product.ID), ownerToken, nil, nil))
	require.Equal(t, http.StatusNotFound,
		c.do(http.MethodGet, fmt.Sprintf("/product/%d", product.ID), buyerToken, nil, nil))

	var products []models.Product
	code = c.do(http.MethodGet, "/product/products", buyerToken, nil, &products)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, products)
}

func TestE2E_AuthRequired(t *testing.T) {
	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	require.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodPost, "/product/deposit", "", handlers.DepositRequest{Amount: 5}, nil))
	require.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodPost, "/product/buy", "bogus", handlers.BuyRequest{ProductID: 1, AmountOfProducts: 1}, nil))

	c.register("e2e_login", "buyer")
	var auth handlers.AuthResponse
	code := c.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{
		Username: "e2e_login",
		Password: "password1",
	}, &auth)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, auth.AccessToken)

	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{
		Username: "e2e_login",
		Password: "wrong-password",
	}, nil))
	require.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/user", "", handlers.RegisterRequest{
		Username: "e2e_login",
		Password: "password1",
		Role:     "buyer",
	}, nil))
}

func TestE2E_UserProfile(t *testing.T) {
	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	aliceToken := c.register("e2e_alice", "buyer")
	bobToken := c.register("e2e_bob", "seller")
	c.register("e2e_carol", "buyer")

	var users []models.User
	code := c.do(http.MethodGet, "/user/users?offset=1&limit=1", aliceToken, nil, &users)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, users, 1)
	require.Equal(t, "e2e_bob", users[0].Username)

	code = c.do(http.MethodGet, "/user/users", aliceToken, nil, &users)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, users, 3)
	require.Equal(t, "e2e_carol", users[0].Username)

	var raw []map[string]interface{}
	c.do(http.MethodGet, "/user/users", aliceToken, nil, &raw)
	for _, u := range raw {
		require.NotContains(t, u, "password")
	}

	require.Equal(t, http.StatusOK,
		c.do(http.MethodPost, "/product/deposit", aliceToken, handlers.DepositRequest{Amount: 50}, nil))

	var alice models.User
	code = c.do(http.MethodPatch, "/user/1", aliceToken, handlers.UpdateUserRequest{Username: "e2e_alicia"}, &alice)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "e2e_alicia", alice.Username)
	require.Equal(t, 50, alice.Balance)
	require.Equal(t, models.RoleBuyer, alice.Role)

	require.Equal(t, http.StatusForbidden,
		c.do(http.MethodPatch, "/user/1", bobToken, handlers.UpdateUserRequest{Username: "stolen"}, nil))
	require.Equal(t, http.StatusConflict,
		c.do(http.MethodPatch, "/user/2", bobToken, handlers.UpdateUserRequest{Username: "e2e_alicia"}, nil))
	require.Equal(t, http.StatusBadRequest,
		c.do(http.MethodPatch, "/user/2", bobToken, handlers.UpdateUserRequest{Username: " "}, nil))

	var auth handlers.AuthResponse
	code = c.do(http.MethodPost, "/auth/login", "", handlers.LoginRequest{
		Username: "e2e_alicia",
		Password: "password1",
	}, &auth)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, auth.AccessToken)

	require.Equal(t, http.StatusMethodNotAllowed,
		c.do(http.MethodDelete, "/user/1", aliceToken, nil, nil))
}

func TestE2E_OversizedAmounts(t *testing.T) {
	ts := setupTestServer()
	defer ts.Close()
	c := apiClient{t: t, ts: ts, client: ts.Client()}

	sellerToken := c.register("e2e_big_seller", "seller")
	require.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/product", sellerToken, handlers.CreateProductRequest{
		ProductName:     "gold bar",
		AmountAvailable: 33,
		Cost:            5589922446578652005,
	}, nil))
	require.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/product", sellerToken, handlers.CreateProductRequest{
		ProductName:     "sand",
		AmountAvailable: models.MaxAmount + 1,
		Cost:            5,
	}, nil))
}
