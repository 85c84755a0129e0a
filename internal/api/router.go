package api

import (
	"net/http"
	"net/netip"

	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint. Ops routes skip the session ticket.
func NewRouter(h *Handler, store cache.Store, sessions *auth.Middleware, ratePerMinute int, trustedProxies []netip.Prefix) *mux.Router {
	r := mux.NewRouter()
	r.Use(telemetry.RequestID, telemetry.Middleware, RateLimit(store, ratePerMinute, trustedProxies))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(sessions.WithSession)

	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", h.Session).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", h.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", h.UpdateProfile).Methods(http.MethodPatch)

	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", h.UpdateProduct).Methods(http.MethodPatch)
	api.HandleFunc("/products/{id:[0-9]+}", h.DeleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)

	api.HandleFunc("/shops", h.ListShops).Methods(http.MethodGet)
	api.HandleFunc("/shops", h.CreateShop).Methods(http.MethodPost)
	api.HandleFunc("/shops/mine", h.MyShops).Methods(http.MethodGet)
	api.HandleFunc("/shops/{id:[0-9]+}", h.GetShop).Methods(http.MethodGet)
	api.HandleFunc("/shops/{id:[0-9]+}", h.UpdateShop).Methods(http.MethodPatch)
	api.HandleFunc("/shops/{id:[0-9]+}", h.DeleteShop).Methods(http.MethodDelete)
	api.HandleFunc("/shops/{id:[0-9]+}/status", h.SetShopStatus).Methods(http.MethodPost)
	api.HandleFunc("/shops/{id:[0-9]+}/reset", h.ResetShop).Methods(http.MethodPost)

	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)

	api.HandleFunc("/uploads", h.CreateUpload).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{id}", h.GetUpload).Methods(http.MethodGet)
	api.HandleFunc("/uploads/{id}/crop", h.CropUpload).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{id}/preview", h.PreviewUpload).Methods(http.MethodGet)

	api.HandleFunc("/geo/search", h.GeoSearch).Methods(http.MethodGet)
	api.HandleFunc("/geo/reverse", h.GeoReverse).Methods(http.MethodGet)
	api.HandleFunc("/geo/pick", h.GeoPick).Methods(http.MethodPost)

	api.HandleFunc("/actions", h.Actions).Methods(http.MethodGet)

	return r
}
