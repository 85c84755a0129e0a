// Package marketstub is an in-memory stand-in for the marketplace REST API.
// It speaks the same paths, payloads and DRF-style error bodies, and backs
// local development and the handler tests.
package marketstub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type account struct {
	user     models.User
	password string
}

type Server struct {
	mu         sync.Mutex
	secret     []byte
	tokenTTL   time.Duration
	now        func() time.Time
	accounts   map[int64]*account
	byName     map[string]int64
	shops      map[int64]*models.Shop
	products   map[int64]*models.Product
	categories []models.Category
	nextID     int64
	router     *mux.Router
}

func New(secret string) *Server {
	s := &Server{
		secret:   []byte(secret),
		tokenTTL: time.Hour,
		now:      time.Now,
		accounts: make(map[int64]*account),
		byName:   make(map[string]int64),
		shops:    make(map[int64]*models.Shop),
		products: make(map[int64]*models.Product),
		categories: []models.Category{
			{ID: 1, Name: "Electrónica"},
			{ID: 2, Name: "Ropa y Moda"},
			{ID: 3, Name: "Hogar y Jardín"},
			{ID: 4, Name: "Deportes"},
			{ID: 5, Name: "Juguetes y Juegos"},
			{ID: 6, Name: "Salud y Belleza"},
			{ID: 7, Name: "Automóviles"},
			{ID: 8, Name: "Libros y Papelería"},
			{ID: 9, Name: "Alimentos y Bebidas"},
			{ID: 10, Name: "Mascotas"},
		},
		nextID: 100,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(s.logRequests)

	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/login/", s.login).Methods(http.MethodPost)
	a.HandleFunc("/register/", s.register).Methods(http.MethodPost)
	a.HandleFunc("/profile/", s.authenticated(s.getProfile)).Methods(http.MethodGet)
	a.HandleFunc("/profile/", s.authenticated(s.updateProfile)).Methods(http.MethodPatch)

	m := r.PathPrefix("/api/market").Subrouter()
	m.HandleFunc("/categories/", s.listCategories).Methods(http.MethodGet)
	m.HandleFunc("/products/", s.listProducts).Methods(http.MethodGet)
	m.HandleFunc("/products/", s.authenticated(s.createProduct)).Methods(http.MethodPost)
	m.HandleFunc("/products/{id:[0-9]+}/", s.getProduct).Methods(http.MethodGet)
	m.HandleFunc("/products/{id:[0-9]+}/", s.authenticated(s.updateProduct)).Methods(http.MethodPatch, http.MethodPut)
	m.HandleFunc("/products/{id:[0-9]+}/", s.authenticated(s.deleteProduct)).Methods(http.MethodDelete)
	m.HandleFunc("/shops/", s.listShops).Methods(http.MethodGet)
	m.HandleFunc("/shops/", s.authenticated(s.createShop)).Methods(http.MethodPost)
	m.HandleFunc("/shops/{id:[0-9]+}/", s.getShop).Methods(http.MethodGet)
	m.HandleFunc("/shops/{id:[0-9]+}/", s.authenticated(s.updateShop)).Methods(http.MethodPatch, http.MethodPut)
	m.HandleFunc("/shops/{id:[0-9]+}/", s.authenticated(s.deleteShop)).Methods(http.MethodDelete)
	m.HandleFunc("/shops/{id:[0-9]+}/reset/", s.authenticated(s.resetShop)).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	return r
}

// ServeHTTP serves the API under /api, like the real backend.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.L().Debug("Market stub request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Error("Failed to encode stub response", zap.Error(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fieldErrors renders like a DRF serializer's errors.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func required(f fieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, "This field is required.")
	}
}

// page wraps a list in the pagination envelope.
type page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
