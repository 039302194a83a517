package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Okprime/MVP-Match-Assessment/models"
	"github.com/Okprime/MVP-Match-Assessment/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handler struct {
	engine service.Engine
	auth   service.AuthService
	logger *zap.Logger
}

func NewHandler(engine service.Engine, auth service.AuthService, logger *zap.Logger) Handler {
	return Handler{
		engine: engine,
		auth:   auth,
		logger: logger,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken string `json:"accessToken"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
}

type DepositRequest struct {
	Amount int `json:"amount"`
}

type BuyRequest struct {
	ProductID        int `json:"productId"`
	AmountOfProducts int `json:"amountOfProducts"`
}

type CreateProductRequest struct {
	ProductName     string `json:"productName"`
	AmountAvailable int    `json:"amountAvailable"`
	Cost            int    `json:"cost"`
}

type UpdateProductRequest struct {
	ProductName     *string `json:"productName"`
	AmountAvailable *int    `json:"amountAvailable"`
	Cost            *int    `json:"cost"`
}

type ErrorResponse struct {
	Errors    string `json:"errors"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.auth.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, AuthResponse{AccessToken: token})
}

func (h Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AuthResponse{AccessToken: token})
}

func (h Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.engine.GetUser(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	users, err := h.engine.ListUsers(r.Context(), offset, limit)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, users)
}

func (h Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.engine.UpdateUsername(r.Context(), principal, id, req.Username)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := h.engine.CreateProduct(r.Context(), principal, service.ProductDraft{
		Name:  req.ProductName,
		Stock: req.AmountAvailable,
		Price: req.Cost,
	})
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, product)
}

func (h Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	products, err := h.engine.ListProducts(r.Context(), offset, limit)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.engine.GetProduct(r.Context(), id)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := h.engine.UpdateProduct(r.Context(), principal, id, service.ProductPatch{
		Name:  req.ProductName,
		Stock: req.AmountAvailable,
		Price: req.Cost,
	})
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteProduct(r.Context(), principal, id); err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.engine.Deposit(r.Context(), principal, req.Amount)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func (h Handler) BuyHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.engine.Buy(r.Context(), principal, req.ProductID, req.AmountOfProducts)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h Handler) ResetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrUnauthorized(w, r)
	if !ok {
		return
	}
	user, err := h.engine.ResetDeposit(r.Context(), principal)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidDenomination),
		errors.Is(err, models.ErrUnrepresentableAmount),
		errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInsufficientFunds),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrTransactionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h Handler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		respondWithError(w, code, "internal server error")
		return
	}
	respondWithJSON(w, code, ErrorResponse{
		Errors:    err.Error(),
		Retryable: models.IsRetryable(err),
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Errors: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func principalOrUnauthorized(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "principal not found in context")
		return models.Principal{}, false
	}
	return principal, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return 0, nil
	}
	return strconv.Atoi(val)
}
