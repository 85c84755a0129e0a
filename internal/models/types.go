package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is the login response. Access is the bearer token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID              int64           `json:"id"`
	Shop            int64           `json:"shop"`
	Category        *int64          `json:"category"`
	CategoryName    *string         `json:"category_name"`
	ShopName        *string         `json:"shop_name,omitempty"`
	ShopLocation    *string         `json:"shop_location,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Image           *string         `json:"image"`
	Price           decimal.Decimal `json:"price"`
	Stock           int             `json:"stock"`
	IsInfiniteStock bool            `json:"is_infinite_stock"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Available ignores the stock count when the product has infinite stock.
func (p Product) Available() bool {
	return p.IsInfiniteStock || p.Stock > 0
}

func (p Product) IsFree() bool {
	return p.Price.IsZero()
}

// MarshalJSON adds the derived available and is_free flags the product
// cards render from.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Available bool `json:"available"`
		IsFree    bool `json:"is_free"`
	}{plain(p), p.Available(), p.IsFree()})
}

type ShopStatus string

const (
	ShopActive ShopStatus = "active"
	ShopDraft  ShopStatus = "draft"
)

func (s ShopStatus) Valid() bool {
	return s == ShopActive || s == ShopDraft
}

func (s ShopStatus) Toggle() ShopStatus {
	if s == ShopActive {
		return ShopDraft
	}
	return ShopActive
}

type Shop struct {
	ID            int64      `json:"id"`
	Owner         int64      `json:"owner"`
	OwnerUsername string     `json:"owner_username"`
	OwnerAvatar   *string    `json:"owner_avatar,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Image         *string    `json:"image"`
	Location      string     `json:"location"`
	Latitude      *float64   `json:"latitude"`
	Longitude     *float64   `json:"longitude"`
	IsPhysical    bool       `json:"is_physical"`
	Status        ShopStatus `json:"status"`
	Products      []Product  `json:"products,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type SessionView struct {
	User          *User  `json:"user"`
	Authenticated bool   `json:"authenticated"`
	Loading       bool   `json:"loading"`
	State         string `json:"state"`
}

type SearchResponse struct {
	Mode     string    `json:"mode"`
	Query    string    `json:"query"`
	Products []Product `json:"products,omitempty"`
	Shops    []Shop    `json:"shops,omitempty"`
}

// ShopPage is a shop together with its product listing.
type ShopPage struct {
	Shop     *Shop     `json:"shop"`
	Products []Product `json:"products"`
}
