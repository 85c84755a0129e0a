package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"buskalo-bff/internal/action"
	"buskalo-bff/internal/auth"
	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/catalog"
	"buskalo-bff/internal/config"
	"buskalo-bff/internal/geo"
	"buskalo-bff/internal/imaging"
	"buskalo-bff/internal/marketstub"
	"buskalo-bff/internal/media"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/search"
	"buskalo-bff/internal/services"
	"buskalo-bff/internal/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	t      *testing.T
	stub   *marketstub.Server
	url    string
	client *http.Client
}

func newEnv(t *testing.T, ratePerMinute int) *env {
	t.Helper()
	return newEnvBehind(t, ratePerMinute, nil)
}

// newEnvBehind serves the gateway as if trustedProxies fronted it.
func newEnvBehind(t *testing.T, ratePerMinute int, trustedProxies []netip.Prefix) *env {
	t.Helper()

	stub := marketstub.New("stub-secret")
	upstream := httptest.NewServer(stub)
	t.Cleanup(upstream.Close)

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			fmt.Fprint(w, `[{"lat":"-12.0464","lon":"-77.0428","display_name":"Lima, Perú"}]`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(nominatim.Close)

	cfg := &config.Config{
		MarketAPIURL:      upstream.URL + "/api",
		UpstreamTimeout:   2 * time.Second,
		NominatimURL:      nominatim.URL,
		GeocoderUserAgent: "buskalo-bff-test",
	}

	store := cache.NewMemory(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	svc := services.NewServiceClient(cfg)
	sessions := session.NewRegistry(store, svc, time.Hour, time.Hour, 2*time.Second)
	t.Cleanup(sessions.Close)

	actions := action.NewTracker(time.Hour)
	t.Cleanup(actions.Close)

	h := NewHandler(Deps{
		Services:      svc,
		Catalog:       catalog.New(svc, store, time.Minute, time.Minute),
		Sessions:      sessions,
		Media:         media.NewStore(store, time.Minute, imaging.DefaultOptions, nil),
		Geo:           geo.NewClient(cfg, store),
		Actions:       actions,
		DropdownLimit: 5,
	})
	tickets := auth.NewMiddleware(auth.NewTickets("ticket-secret", time.Hour), false)

	srv := httptest.NewServer(NewRouter(h, store, tickets, ratePerMinute, trustedProxies))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &env{t: t, stub: stub, url: srv.URL, client: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (e *env) do(method, path string, body any) (int, []byte) {
	e.t.Helper()
	return e.doWith(method, path, body, nil)
}

func (e *env) doWith(method, path string, body any, header http.Header) (int, []byte) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.url+path, rd)
	require.NoError(e.t, err)
	for k, vs := range header {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func (e *env) login(username, password string) models.SessionView {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Username: username, Password: password})
	require.Equal(e.t, http.StatusOK, status, string(body))
	return decode[models.SessionView](e.t, body)
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func detail(t *testing.T, data []byte) string {
	return decode[map[string]string](t, data)["detail"]
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t, 0)
	e.stub.AddUser("ana", "ana@example.com", "secret123")

	status, body := e.do(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, status)
	view := decode[models.SessionView](t, body)
	assert.Nil(t, view.User)
	assert.False(t, view.Authenticated)
	assert.False(t, view.Loading)
	assert.Equal(t, "anonymous", view.State)

	view = e.login("ana", "secret123")
	require.NotNil(t, view.User)
	assert.Equal(t, "ana", view.User.Username)
	assert.Equal(t, "authenticated", view.State)

	status, body = e.do(http.MethodGet, "/api/auth/profile", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ana@example.com", decode[models.User](t, body).Email)

	status, body = e.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, decode[models.SessionView](t, body).Authenticated)

	status, _ = e.do(http.MethodGet, "/api/auth/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLoginErrorsCarryUpstreamMessage(t *testing.T) {
	e := newEnv(t, 0)
	e.stub.AddUser("ana", "ana@example.com", "secret123")

	status, body := e.do(http.MethodPost, "/api/auth/login", models.LoginRequest{Username: "ana", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "No active account found with the given credentials", detail(t, body))

	status, body = e.do(http.MethodPost, "/api/auth/register", models.RegisterRequest{Email: "x@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, detail(t, body), "Username: This field is required.")
}

func TestRegisterLogsIn(t *testing.T) {
	e := newEnv(t, 0)

	status, body := e.do(http.MethodPost, "/api/auth/register", models.RegisterRequest{
		Username: "beto", Email: "beto@example.com", Password: "secret123",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	view := decode[models.SessionView](t, body)
	assert.True(t, view.Authenticated)
	assert.Equal(t, "beto", view.User.Username)
}

func TestMutationsNeedAToken(t *testing.T) {
	e := newEnv(t, 0)

	status, body := e.do(http.MethodPost, "/api/products", map[string]any{"name": "Mug", "price": "1", "shop": 1})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication credentials were not provided.", detail(t, body))
}

func TestCreateProductNormalizesInput(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co", Location: "Lima"})
	e.login("ana", "secret123")

	status, body := e.do(http.MethodPost, "/api/products", map[string]any{
		"name":  "Red Mug",
		"price": "099.5",
		"stock": "007",
		"shop":  shop.ID,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	p := decode[models.Product](t, body)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("99.5")))
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, "Cafe Co", *p.ShopName)

	status, body = e.do(http.MethodPost, "/api/products", map[string]any{
		"name":  "Bad Mug",
		"price": "-3",
		"shop":  shop.ID,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, detail(t, body), "Price")

	status, body = e.do(http.MethodGet, "/api/products?q=mug", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Product](t, body), 1)
}

func TestProductMutationRefreshesCatalog(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co"})
	e.login("ana", "secret123")

	status, body := e.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Product](t, body))

	status, body = e.do(http.MethodPost, "/api/products", map[string]any{"name": "Mug", "price": 5, "shop": shop.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[models.Product](t, body)

	status, body = e.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Product](t, body), 1)

	status, _ = e.do(http.MethodDelete, fmt.Sprintf("/api/products/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = e.do(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]models.Product](t, body))
}

func TestUpdateProductKeepsShopAndOmittedFields(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co"})
	category := int64(1)
	image := "/media/products/mug.webp"
	mug := e.stub.AddProduct(models.Product{
		Shop: shop.ID, Category: &category, Image: &image,
		Name: "Mug", Description: "Stoneware", Price: decimal.NewFromInt(5), Stock: 1,
	})
	e.login("ana", "secret123")
	path := fmt.Sprintf("/api/products/%d", mug.ID)

	status, body := e.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = e.do(http.MethodPatch, path, map[string]any{
		"name":        "Big Mug",
		"description": "Stoneware",
		"price":       "7",
		"stock":       "3",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	got := decode[models.Product](t, body)
	assert.Equal(t, "Big Mug", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, 3, got.Stock)
	assert.Equal(t, shop.ID, got.Shop)
	require.NotNil(t, got.Category)
	assert.Equal(t, category, *got.Category)
	require.NotNil(t, got.Image)
	assert.Equal(t, image, *got.Image)

	status, body = e.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	fresh := decode[models.Product](t, body)
	assert.Equal(t, "Big Mug", fresh.Name)
	assert.Equal(t, shop.ID, fresh.Shop)
}

func TestUpdateShopKeepsOmittedFields(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	lat, lng := -12.0464, -77.0428
	physical := e.stub.AddShop(models.Shop{
		Owner: owner.ID, Name: "Cafe Co", Description: "Tostado local", Location: "Lima",
		Latitude: &lat, Longitude: &lng, IsPhysical: true, Status: models.ShopDraft,
	})
	online := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Tienda Web", Description: "Envíos", Location: "Tienda en línea"})
	e.login("ana", "secret123")

	status, body := e.do(http.MethodPatch, fmt.Sprintf("/api/shops/%d", physical.ID), map[string]any{"name": "Cafe Central"})
	require.Equal(t, http.StatusOK, status, string(body))
	got := decode[models.Shop](t, body)
	assert.Equal(t, "Cafe Central", got.Name)
	assert.Equal(t, "Tostado local", got.Description)
	assert.Equal(t, "Lima", got.Location)
	assert.True(t, got.IsPhysical)
	assert.Equal(t, models.ShopDraft, got.Status)
	require.NotNil(t, got.Latitude)
	assert.Equal(t, lat, *got.Latitude)

	onlinePath := fmt.Sprintf("/api/shops/%d", online.ID)
	status, body = e.do(http.MethodPatch, onlinePath, map[string]any{
		"name":        "Tienda Web Plus",
		"description": "Envíos a todo el país",
		"location":    "Tienda en línea",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	got = decode[models.Shop](t, body)
	assert.Equal(t, "Tienda Web Plus", got.Name)
	assert.Equal(t, "Envíos a todo el país", got.Description)
	assert.False(t, got.IsPhysical)
	assert.Equal(t, models.ShopActive, got.Status)

	status, body = e.do(http.MethodPatch, onlinePath, map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, detail(t, body), "Name")
}

func TestShopStatusToggle(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co", Description: "Tostado local", Status: models.ShopActive})
	e.login("ana", "secret123")
	path := fmt.Sprintf("/api/shops/%d/status", shop.ID)

	status, body := e.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	got := decode[models.Shop](t, body)
	assert.Equal(t, models.ShopDraft, got.Status)
	assert.Equal(t, "Cafe Co", got.Name)
	assert.Equal(t, "Tostado local", got.Description)

	status, body = e.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ShopActive, decode[models.Shop](t, body).Status)

	status, body = e.do(http.MethodPost, path, map[string]string{"status": "draft"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.ShopDraft, decode[models.Shop](t, body).Status)

	status, _ = e.do(http.MethodPost, path, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = e.do(http.MethodGet, "/api/shops/mine?status=draft", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.Shop](t, body), 1)

	status, body = e.do(http.MethodGet, "/api/actions", nil)
	require.Equal(t, http.StatusOK, status)
	actions := decode[map[string]action.Result[any]](t, body)
	assert.Equal(t, action.StatusSuccess, actions[fmt.Sprintf("shop.status:%d", shop.ID)].Status)
	assert.Equal(t, action.StatusSuccess, actions["auth.login"].Status)
}

func TestShopPageAndReset(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co"})
	e.stub.AddProduct(models.Product{Shop: shop.ID, Name: "Mug", Price: decimal.NewFromInt(5)})
	e.stub.AddProduct(models.Product{Shop: shop.ID, Name: "Plate", Price: decimal.Zero})
	e.login("ana", "secret123")

	status, body := e.do(http.MethodGet, fmt.Sprintf("/api/shops/%d", shop.ID), nil)
	require.Equal(t, http.StatusOK, status)
	page := decode[models.ShopPage](t, body)
	assert.Equal(t, "Cafe Co", page.Shop.Name)
	assert.Len(t, page.Products, 2)

	reset := fmt.Sprintf("/api/shops/%d/reset", shop.ID)
	status, _ = e.do(http.MethodPost, reset, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = e.do(http.MethodPost, reset, map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, status)

	status, body = e.do(http.MethodGet, fmt.Sprintf("/api/shops/%d", shop.ID), nil)
	require.Equal(t, http.StatusOK, status)
	page = decode[models.ShopPage](t, body)
	assert.Empty(t, page.Products)
	assert.Equal(t, models.ShopDraft, page.Shop.Status)

	status, _ = e.do(http.MethodGet, "/api/shops/999999", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateShopOnline(t *testing.T) {
	e := newEnv(t, 0)
	e.stub.AddUser("ana", "ana@example.com", "secret123")
	e.login("ana", "secret123")

	lat, lng := -12.0464, -77.0428
	status, body := e.do(http.MethodPost, "/api/shops", map[string]any{
		"name":        "Tienda Web",
		"is_physical": false,
		"latitude":    lat,
		"longitude":   lng,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	shop := decode[models.Shop](t, body)
	assert.Equal(t, models.ShopActive, shop.Status)
	assert.False(t, shop.IsPhysical)
	assert.Equal(t, "Tienda en línea", shop.Location)
	assert.Nil(t, shop.Latitude)

	status, body = e.do(http.MethodPost, "/api/shops", map[string]any{"name": "Borrador", "status": "draft"})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Equal(t, models.ShopDraft, decode[models.Shop](t, body).Status)
}

func TestInstantSearch(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co", Location: "Lima"})
	e.stub.AddProduct(models.Product{Shop: shop.ID, Name: "Red Mug", Price: decimal.NewFromInt(5)})
	e.stub.AddProduct(models.Product{Shop: shop.ID, Name: "Plate", Price: decimal.NewFromInt(3)})

	status, body := e.do(http.MethodGet, "/api/search?q=MUG", nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[models.SearchResponse](t, body)
	assert.Equal(t, string(search.ModeProducts), res.Mode)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Red Mug", res.Products[0].Name)
	assert.Empty(t, res.Shops)

	status, body = e.do(http.MethodGet, "/api/search?q=lima&mode=shops", nil)
	require.Equal(t, http.StatusOK, status)
	res = decode[models.SearchResponse](t, body)
	assert.Len(t, res.Shops, 1)
	assert.Empty(t, res.Products)

	status, body = e.do(http.MethodGet, "/api/search?q=%20%20", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[models.SearchResponse](t, body).Products)
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestUploadCropAndAttach(t *testing.T) {
	e := newEnv(t, 0)
	owner := e.stub.AddUser("ana", "ana@example.com", "secret123")
	shop := e.stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co"})
	e.login("ana", "secret123")

	status, body := e.do(http.MethodPost, "/api/uploads", map[string]string{"data_url": pngDataURL(t, 120, 80)})
	require.Equal(t, http.StatusCreated, status, string(body))
	info := decode[media.Info](t, body)
	assert.Equal(t, "upload.png", info.Name)
	assert.False(t, info.Cropped)
	assert.Equal(t, "/api/uploads/"+info.ID+"/preview", info.PreviewURL)

	status, body = e.do(http.MethodPost, "/api/uploads/"+info.ID+"/crop", imaging.CropParams{Aspect: imaging.Square, Zoom: 1.5})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[media.Info](t, body).Cropped)

	resp, err := e.client.Get(e.url + info.PreviewURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	preview, _, err := image.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, preview.Bounds().Dx(), preview.Bounds().Dy())

	status, body = e.do(http.MethodPost, "/api/products", map[string]any{
		"name":         "Mug",
		"price":        "5",
		"shop":         shop.ID,
		"image_upload": info.ID,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	p := decode[models.Product](t, body)
	require.NotNil(t, p.Image)
	assert.True(t, strings.HasSuffix(*p.Image, "product_image.jpg"), *p.Image)

	status, _ = e.do(http.MethodGet, "/api/uploads/"+info.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	e := newEnv(t, 0)

	status, _ := e.do(http.MethodPost, "/api/uploads", map[string]string{"name": "notes.txt", "data_url": "data:text/plain;base64,aG9sYQ=="})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGeoEndpoints(t *testing.T) {
	e := newEnv(t, 0)

	status, body := e.do(http.MethodGet, "/api/geo/search?q=lima", nil)
	require.Equal(t, http.StatusOK, status)
	loc := decode[models.Location](t, body)
	assert.Equal(t, "Lima, Perú", loc.Address)
	assert.InDelta(t, -12.0464, loc.Latitude, 1e-9)

	status, body = e.do(http.MethodGet, "/api/geo/reverse?lat=-12.0464&lng=-77.0428", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "-12.0464, -77.0428", decode[models.Location](t, body).Address)

	status, _ = e.do(http.MethodGet, "/api/geo/reverse?lat=abc&lng=1", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = e.do(http.MethodPost, "/api/geo/pick", map[string]any{"address": "ignored", "latitude": 1.5, "longitude": 2.25})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1.5000, 2.2500", decode[models.Location](t, body).Address)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, 2)

	for i := 0; i < 2; i++ {
		status, _ := e.do(http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, body := e.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many requests", detail(t, body))
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	e := newEnv(t, 2)

	for i, fwd := range []string{"203.0.113.1", "203.0.113.2"} {
		status, _ := e.doWith(http.MethodGet, "/health", nil, http.Header{"X-Forwarded-For": {fwd}})
		require.Equal(t, http.StatusOK, status, "request %d", i+1)
	}
	status, _ := e.doWith(http.MethodGet, "/health", nil, http.Header{"X-Forwarded-For": {"203.0.113.3"}})
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	e := newEnvBehind(t, 1, []netip.Prefix{netip.MustParsePrefix("127.0.0.1/32")})

	from := func(fwd string) int {
		status, _ := e.doWith(http.MethodGet, "/health", nil, http.Header{"X-Forwarded-For": {fwd}})
		return status
	}
	assert.Equal(t, http.StatusOK, from("203.0.113.7"))
	assert.Equal(t, http.StatusOK, from("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, from("203.0.113.7"))
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name   string
		remote string
		fwd    string
		want   string
	}{
		{"no header", "198.51.100.4:5000", "", "198.51.100.4"},
		{"untrusted peer", "198.51.100.4:5000", "203.0.113.9", "198.51.100.4"},
		{"trusted peer", "10.0.0.2:5000", "203.0.113.9", "203.0.113.9"},
		{"spoofed left entry", "10.0.0.2:5000", "1.2.3.4, 203.0.113.9", "203.0.113.9"},
		{"trusted hops skipped", "10.0.0.2:5000", "203.0.113.9, 10.1.1.1", "203.0.113.9"},
		{"garbage hop", "10.0.0.2:5000", "nonsense", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			r.RemoteAddr = tt.remote
			if tt.fwd != "" {
				r.Header.Set("X-Forwarded-For", tt.fwd)
			}
			assert.Equal(t, tt.want, clientIP(r, trusted))
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream", &services.APIError{Status: http.StatusForbidden, Message: "no"}, http.StatusForbidden},
		{"in flight", action.ErrInFlight, http.StatusConflict},
		{"too large", fmt.Errorf("wrap: %w", imaging.ErrTooLarge), http.StatusRequestEntityTooLarge},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"bad request", badRequest("x"), http.StatusBadRequest},
		{"unknown", io.ErrUnexpectedEOF, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
