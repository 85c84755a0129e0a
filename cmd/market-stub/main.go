package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"buskalo-bff/internal/config"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/marketstub"
	"buskalo-bff/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg := config.NewConfig()

	log, err := logger.Init(cfg.LogLevel, cfg.Environment, "market-stub")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	stub := marketstub.New(cfg.SessionSecret)
	seed(stub)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.StubPort),
		Handler:           stub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Market stub listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Market stub failed", zap.Error(err))
	}
}

// seed adds a demo account (demo / demo12345) with one shop of each status.
func seed(stub *marketstub.Server) {
	demo := stub.AddUser("demo", "demo@buskalo.local", "demo12345")
	lat, lng := -12.0464, -77.0428

	cafe := stub.AddShop(models.Shop{
		Owner:       demo.ID,
		Name:        "Café del Centro",
		Description: "Café de altura tostado en casa",
		Location:    "Lima, Perú",
		Latitude:    &lat,
		Longitude:   &lng,
		IsPhysical:  true,
		Status:      models.ShopActive,
	})
	stub.AddShop(models.Shop{
		Owner:       demo.ID,
		Name:        "Libros Usados",
		Description: "Próximamente",
		Location:    "Tienda en línea",
		Status:      models.ShopDraft,
	})

	drinks := int64(9)
	stub.AddProduct(models.Product{Shop: cafe.ID, Category: &drinks, Name: "Café molido 250g", Description: "Tueste medio", Price: decimal.RequireFromString("24.90"), Stock: 12})
	stub.AddProduct(models.Product{Shop: cafe.ID, Category: &drinks, Name: "Taza de degustación", Description: "Para probar en tienda", Price: decimal.Zero, IsInfiniteStock: true})
}
