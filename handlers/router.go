package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

func NewRouter(h Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(WithRequestID, h.WithLogging)

	r.HandleFunc("/user", h.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/user/users", h.JWTMiddleware(h.ListUsersHandler)).Methods(http.MethodGet)
	r.HandleFunc("/user/{id:[0-9]+}", h.JWTMiddleware(h.GetUserHandler)).Methods(http.MethodGet)
	r.HandleFunc("/user/{id:[0-9]+}", h.JWTMiddleware(h.UpdateUserHandler)).Methods(http.MethodPatch)

	r.HandleFunc("/product", h.JWTMiddleware(h.CreateProductHandler)).Methods(http.MethodPost)
	r.HandleFunc("/product/products", h.JWTMiddleware(h.ListProductsHandler)).Methods(http.MethodGet)
	r.HandleFunc("/product/deposit", h.JWTMiddleware(h.DepositHandler)).Methods(http.MethodPost)
	r.HandleFunc("/product/buy", h.JWTMiddleware(h.BuyHandler)).Methods(http.MethodPost)
	r.HandleFunc("/product/reset", h.JWTMiddleware(h.ResetHandler)).Methods(http.MethodPost)
	r.HandleFunc("/product/{id:[0-9]+}", h.JWTMiddleware(h.GetProductHandler)).Methods(http.MethodGet)
	r.HandleFunc("/product/{id:[0-9]+}", h.JWTMiddleware(h.UpdateProductHandler)).Methods(http.MethodPatch)
	r.HandleFunc("/product/{id:[0-9]+}", h.JWTMiddleware(h.DeleteProductHandler)).Methods(http.MethodDelete)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Vending machine API"))
	}).Methods(http.MethodGet)
	return r
}
