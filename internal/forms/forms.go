package forms

import (
	"strconv"
	"strings"

	"buskalo-bff/internal/models"
	"buskalo-bff/internal/services"
)

// OnlineShopLocation is sent as the location of shops without a physical store.
const OnlineShopLocation = "Tienda en línea"

// NormalizePrice applies the price input rules to a new value. A leading
// minus is rejected and prev is returned unchanged; leading zeros are
// stripped unless they precede the decimal point.
func NormalizePrice(prev, input string) (string, bool) {
	if strings.HasPrefix(input, "-") {
		return prev, false
	}
	return stripLeadingZeros(input, true), true
}

// NormalizeStock is NormalizePrice for whole numbers.
func NormalizeStock(prev, input string) (string, bool) {
	if strings.HasPrefix(input, "-") || strings.Contains(input, ".") {
		return prev, false
	}
	return stripLeadingZeros(input, false), true
}

func stripLeadingZeros(v string, decimal bool) string {
	if len(v) < 2 || v[0] != '0' || (decimal && v[1] == '.') {
		return v
	}
	v = strings.TrimLeft(v, "0")
	if v == "" {
		return "0"
	}
	return v
}

// ProductDraft holds the create/edit product form state.
type ProductDraft struct {
	Name        string
	Description string
	Price       string
	Stock       string
	ShopID      int64
	CategoryID  *int64
	Infinite    bool
	Image       *services.File
}

// SetPrice reports false when the keystroke was rejected.
func (d *ProductDraft) SetPrice(v string) bool {
	var ok bool
	d.Price, ok = NormalizePrice(d.Price, v)
	return ok
}

// SetStock clears the infinite-stock flag once a count of one or more is typed.
func (d *ProductDraft) SetStock(v string) bool {
	var ok bool
	d.Stock, ok = NormalizeStock(d.Stock, v)
	if !ok {
		return false
	}
	if n, err := strconv.Atoi(d.Stock); err == nil && n >= 1 {
		d.Infinite = false
	}
	return true
}

// Form leaves shop out when ShopID is zero, which is what edits do.
func (d *ProductDraft) Form() *services.Form {
	f := services.NewForm().
		Set("name", d.Name).
		Set("description", d.Description).
		Set("price", orZero(d.Price)).
		Set("stock", orZero(d.Stock))
	if d.ShopID != 0 {
		f.Set("shop", strconv.FormatInt(d.ShopID, 10))
	}
	f.Set("is_infinite_stock", boolDigit(d.Infinite))
	if d.CategoryID != nil {
		f.Set("category", strconv.FormatInt(*d.CategoryID, 10))
	}
	if d.Image != nil {
		img := *d.Image
		img.Field = "image"
		f.Attach(img)
	}
	return f
}

// ShopDraft holds the create/edit shop form state.
type ShopDraft struct {
	Name        string
	Description string
	Location    string
	Latitude    *float64
	Longitude   *float64
	IsPhysical  bool
	Status      models.ShopStatus
	Image       *services.File
}

// Form leaves status out when it is empty, which is what edits do.
func (d *ShopDraft) Form() *services.Form {
	location := d.Location
	if !d.IsPhysical {
		location = OnlineShopLocation
	}

	f := services.NewForm().
		Set("name", d.Name).
		Set("description", d.Description).
		Set("location", location)
	if d.Status != "" {
		f.Set("status", string(d.Status))
	}
	f.Set("is_physical", strconv.FormatBool(d.IsPhysical))
	if d.IsPhysical && d.Latitude != nil && *d.Latitude != 0 {
		f.Set("latitude", strconv.FormatFloat(*d.Latitude, 'f', -1, 64))
	}
	if d.IsPhysical && d.Longitude != nil && *d.Longitude != 0 {
		f.Set("longitude", strconv.FormatFloat(*d.Longitude, 'f', -1, 64))
	}
	if d.Image != nil {
		img := *d.Image
		img.Field = "image"
		f.Attach(img)
	}
	return f
}

// ShopPatch holds an edit of a shop. Nil fields are left out of the form,
// so the upstream keeps their current values.
type ShopPatch struct {
	Name        *string
	Description *string
	Location    *string
	Latitude    *float64
	Longitude   *float64
	IsPhysical  *bool
	Status      *models.ShopStatus
	Image       *services.File
}

func (p *ShopPatch) Form() *services.Form {
	f := services.NewForm()
	setString(f, "name", p.Name)
	setString(f, "description", p.Description)

	location := p.Location
	physical := true
	if p.IsPhysical != nil {
		physical = *p.IsPhysical
		f.Set("is_physical", strconv.FormatBool(physical))
		if !physical {
			online := OnlineShopLocation
			location = &online
		}
	}
	setString(f, "location", location)

	if p.Status != nil {
		f.Set("status", string(*p.Status))
	}
	if physical && p.Latitude != nil {
		f.Set("latitude", strconv.FormatFloat(*p.Latitude, 'f', -1, 64))
	}
	if physical && p.Longitude != nil {
		f.Set("longitude", strconv.FormatFloat(*p.Longitude, 'f', -1, 64))
	}
	if p.Image != nil {
		img := *p.Image
		img.Field = "image"
		f.Attach(img)
	}
	return f
}

func setString(f *services.Form, name string, v *string) {
	if v != nil {
		f.Set(name, *v)
	}
}

// StatusForm changes nothing but the shop status.
func StatusForm(status models.ShopStatus) *services.Form {
	return services.NewForm().Set("status", string(status))
}

type ProfileDraft struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Bio       string
	Avatar    *services.File
}

func (d *ProfileDraft) Form() *services.Form {
	f := services.NewForm().
		Set("username", d.Username).
		Set("email", d.Email).
		Set("first_name", d.FirstName).
		Set("last_name", d.LastName).
		Set("bio", d.Bio)
	if d.Avatar != nil {
		img := *d.Avatar
		img.Field = "avatar"
		f.Attach(img)
	}
	return f
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
