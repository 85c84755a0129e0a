package marketstub

import (
	"context"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"buskalo-bff/internal/config"
	"buskalo-bff/internal/models"
	"buskalo-bff/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*Server, *services.ServiceClient) {
	t.Helper()
	stub := New("stub-secret")
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return stub, services.NewServiceClient(&config.Config{
		MarketAPIURL:    srv.URL + "/api",
		UpstreamTimeout: time.Second,
	})
}

func login(t *testing.T, c *services.ServiceClient, username, password string) string {
	t.Helper()
	pair, err := c.Login(context.Background(), models.LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return pair.Access
}

func TestAuthFlow(t *testing.T) {
	_, c := newClient(t)
	ctx := context.Background()

	_, err := c.Register(ctx, models.RegisterRequest{Email: "ana@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Contains(t, services.Message(err), "Username: This field is required.")

	user, err := c.Register(ctx, models.RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = c.Login(ctx, models.LoginRequest{Username: "ana", Password: "wrong"})
	assert.Equal(t, "No active account found with the given credentials", services.Message(err))

	token := login(t, c, "ana", "secret123")
	profile, err := c.GetProfile(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.ID)

	updated, err := c.UpdateProfile(ctx, token, services.NewForm().Set("bio", "hola"))
	require.NoError(t, err)
	assert.Equal(t, "hola", updated.Bio)

	_, err = c.GetProfile(ctx, "bogus")
	var apiErr *services.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestProductsAndShops(t *testing.T) {
	stub, c := newClient(t)
	ctx := context.Background()
	owner := stub.AddUser("ana", "ana@example.com", "secret123")
	token := login(t, c, "ana", "secret123")

	shop, err := c.CreateShop(ctx, token, services.NewForm().
		Set("name", "Cafe Co").
		Set("location", "Lima").
		Set("status", "active").
		Set("is_physical", "false"))
	require.NoError(t, err)
	assert.Equal(t, owner.ID, shop.Owner)

	p, err := c.CreateProduct(ctx, token, services.NewForm().
		Set("name", "Red Mug").
		Set("price", "12.5").
		Set("stock", "0").
		Set("shop", "0").
		Set("is_infinite_stock", "1"))
	require.Error(t, err)
	assert.Nil(t, p)

	p, err = c.CreateProduct(ctx, token, services.NewForm().
		Set("name", "Red Mug").
		Set("price", "12.5").
		Set("stock", "0").
		Set("shop", strconv.FormatInt(shop.ID, 10)).
		Set("category", "1").
		Set("is_infinite_stock", "1").
		Attach(services.File{Field: "image", Name: "product_image.jpg", Data: []byte{0xff}}))
	require.NoError(t, err)
	assert.Equal(t, "Cafe Co", *p.ShopName)
	assert.Equal(t, "Electrónica", *p.CategoryName)
	assert.True(t, p.IsInfiniteStock)
	assert.NotNil(t, p.Image)

	products, err := c.ListProducts(ctx, services.ProductQuery{})
	require.NoError(t, err)
	require.Len(t, products, 1)

	shops, err := c.ListShops(ctx, services.ShopQuery{Owner: strconv.FormatInt(owner.ID, 10), Status: "active"})
	require.NoError(t, err)
	require.Len(t, shops, 1)

	got, err := c.GetShop(ctx, shop.ID)
	require.NoError(t, err)
	assert.Len(t, got.Products, 1)

	require.NoError(t, c.ResetShop(ctx, token, shop.ID))
	got, err = c.GetShop(ctx, shop.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Products)
	assert.Equal(t, models.ShopDraft, got.Status)
}

func TestOwnershipIsEnforced(t *testing.T) {
	stub, c := newClient(t)
	ctx := context.Background()
	owner := stub.AddUser("ana", "ana@example.com", "secret123")
	stub.AddUser("beto", "beto@example.com", "secret123")
	shop := stub.AddShop(models.Shop{Owner: owner.ID, Name: "Cafe Co"})

	token := login(t, c, "beto", "secret123")
	_, err := c.UpdateShop(ctx, token, shop.ID, services.NewForm().Set("status", "draft"))

	var apiErr *services.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Status)
	assert.Equal(t, "You do not have permission to perform this action.", apiErr.Message)
}
