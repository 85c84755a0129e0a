package marketstub

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"buskalo-bff/internal/models"

	"github.com/shopspring/decimal"
)

const maxFormMemory = 10 << 20

func formValue(r *http.Request, name string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	vs, ok := r.MultipartForm.Value[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func uploadedFile(r *http.Request, field string) (string, bool) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return "", false
	}
	return r.MultipartForm.File[field][0].Filename, true
}

func strPtr(s string) *string { return &s }

// AddShop stores shop as given, assigning an id, for seeding.
func (s *Server) AddShop(shop models.Shop) models.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	shop.ID = s.id()
	shop.CreatedAt = s.now()
	if acc, ok := s.accounts[shop.Owner]; ok {
		shop.OwnerUsername = acc.user.Username
	}
	if shop.Status == "" {
		shop.Status = models.ShopActive
	}
	s.shops[shop.ID] = &shop
	return shop
}

// AddProduct stores product as given, assigning an id, for seeding.
func (s *Server) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.CreatedAt = s.now()
	s.products[p.ID] = &p
	return s.decorate(p)
}

// decorate fills the denormalized shop and category fields.
func (s *Server) decorate(p models.Product) models.Product {
	if shop, ok := s.shops[p.Shop]; ok {
		p.ShopName = strPtr(shop.Name)
		p.ShopLocation = strPtr(shop.Location)
	}
	p.CategoryName = nil
	if p.Category != nil {
		for _, c := range s.categories {
			if c.ID == *p.Category {
				p.CategoryName = strPtr(c.Name)
			}
		}
	}
	return p
}

func (s *Server) productsOf(shopID int64) []models.Product {
	out := []models.Product{}
	for _, p := range s.products {
		if p.Shop == shopID {
			out = append(out, s.decorate(*p))
		}
	}
	sortProducts(out)
	return out
}

func sortProducts(ps []models.Product) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID > ps[j].ID })
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.categories)
}

// listProducts answers with the pagination envelope.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	shopFilter := r.URL.Query().Get("shop_id")

	s.mu.Lock()
	out := []models.Product{}
	for _, p := range s.products {
		if shopFilter != "" && strconv.FormatInt(p.Shop, 10) != shopFilter {
			continue
		}
		if shop, ok := s.shops[p.Shop]; ok && shop.Status != models.ShopActive && shopFilter == "" {
			continue
		}
		out = append(out, s.decorate(*p))
	}
	s.mu.Unlock()

	sortProducts(out)
	writeJSON(w, http.StatusOK, page[models.Product]{Count: len(out), Results: out})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No Product matches the given query.")
		return
	}
	writeJSON(w, http.StatusOK, s.decorate(*p))
}

// applyProduct copies form fields onto p. create demands the required ones.
func (s *Server) applyProduct(r *http.Request, p *models.Product, uid int64, create bool) fieldErrors {
	errs := fieldErrors{}

	if v, ok := formValue(r, "name"); ok || create {
		required(errs, "name", v)
		p.Name = v
	}
	if v, ok := formValue(r, "description"); ok {
		p.Description = v
	}
	if v, ok := formValue(r, "price"); ok || create {
		price, err := decimal.NewFromString(v)
		switch {
		case err != nil:
			errs.add("price", "A valid number is required.")
		case price.IsNegative():
			errs.add("price", "Ensure this value is greater than or equal to 0.")
		default:
			p.Price = price
		}
	}
	if v, ok := formValue(r, "stock"); ok {
		stock, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs.add("stock", "A valid integer is required.")
		case stock < 0:
			errs.add("stock", "Ensure this value is greater than or equal to 0.")
		default:
			p.Stock = stock
		}
	}
	if v, ok := formValue(r, "is_infinite_stock"); ok {
		p.IsInfiniteStock = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := formValue(r, "category"); ok {
		if v == "" {
			p.Category = nil
		} else if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.Category = &id
		} else {
			errs.add("category", "Incorrect type. Expected pk value.")
		}
	}
	if v, ok := formValue(r, "shop"); ok || create {
		id, _ := strconv.ParseInt(v, 10, 64)
		shop, found := s.shops[id]
		switch {
		case !found:
			errs.add("shop", "Invalid pk \""+v+"\" - object does not exist.")
		case shop.Owner != uid:
			errs.add("shop", "You can only add products to your own shops.")
		default:
			p.Shop = id
		}
	}
	if name, ok := uploadedFile(r, "image"); ok {
		p.Image = strPtr("/media/products/" + name)
	}
	return errs
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := models.Product{}
	if errs := s.applyProduct(r, &p, currentUser(r), true); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	s.products[p.ID] = &p
	writeJSON(w, http.StatusCreated, s.decorate(p))
}

func (s *Server) ownedProduct(w http.ResponseWriter, r *http.Request) (*models.Product, bool) {
	p, ok := s.products[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No Product matches the given query.")
		return nil, false
	}
	if shop, ok := s.shops[p.Shop]; !ok || shop.Owner != currentUser(r) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return nil, false
	}
	return p, true
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}
	updated := *p
	if errs := s.applyProduct(r, &updated, currentUser(r), false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	*p = updated
	writeJSON(w, http.StatusOK, s.decorate(*p))
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.ownedProduct(w, r)
	if !ok {
		return
	}
	delete(s.products, p.ID)
	w.WriteHeader(http.StatusNoContent)
}

// listShops answers with a bare array.
func (s *Server) listShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner, status := q.Get("owner"), q.Get("status")

	s.mu.Lock()
	out := []models.Shop{}
	for _, shop := range s.shops {
		if owner != "" && strconv.FormatInt(shop.Owner, 10) != owner {
			continue
		}
		if status != "" && string(shop.Status) != status {
			continue
		}
		out = append(out, *shop)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getShop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.shops[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No Shop matches the given query.")
		return
	}
	out := *shop
	out.Products = s.productsOf(shop.ID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) applyShop(r *http.Request, shop *models.Shop, create bool) fieldErrors {
	errs := fieldErrors{}

	if v, ok := formValue(r, "name"); ok || create {
		required(errs, "name", v)
		shop.Name = v
	}
	if v, ok := formValue(r, "description"); ok {
		shop.Description = v
	}
	if v, ok := formValue(r, "location"); ok {
		shop.Location = v
	}
	if v, ok := formValue(r, "status"); ok {
		if st := models.ShopStatus(v); st.Valid() {
			shop.Status = st
		} else {
			errs.add("status", "\""+v+"\" is not a valid choice.")
		}
	} else if create {
		shop.Status = models.ShopActive
	}
	if v, ok := formValue(r, "is_physical"); ok {
		shop.IsPhysical = strings.EqualFold(v, "true") || v == "1"
	}
	for field, dst := range map[string]**float64{"latitude": &shop.Latitude, "longitude": &shop.Longitude} {
		if v, ok := formValue(r, field); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs.add(field, "A valid number is required.")
				continue
			}
			*dst = &f
		}
	}
	if !shop.IsPhysical {
		shop.Latitude, shop.Longitude = nil, nil
	}
	if name, ok := uploadedFile(r, "image"); ok {
		shop.Image = strPtr("/media/shops/" + name)
	}
	return errs
}

func (s *Server) createShop(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	uid := currentUser(r)
	shop := models.Shop{Owner: uid, OwnerUsername: s.accounts[uid].user.Username}
	if errs := s.applyShop(r, &shop, true); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	shop.ID = s.id()
	shop.CreatedAt = s.now()
	s.shops[shop.ID] = &shop
	writeJSON(w, http.StatusCreated, shop)
}

func (s *Server) ownedShop(w http.ResponseWriter, r *http.Request) (*models.Shop, bool) {
	shop, ok := s.shops[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No Shop matches the given query.")
		return nil, false
	}
	if shop.Owner != currentUser(r) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return nil, false
	}
	return shop, true
}

func (s *Server) updateShop(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.ownedShop(w, r)
	if !ok {
		return
	}
	updated := *shop
	if errs := s.applyShop(r, &updated, false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}
	*shop = updated
	writeJSON(w, http.StatusOK, *shop)
}

func (s *Server) deleteShop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.ownedShop(w, r)
	if !ok {
		return
	}
	for id, p := range s.products {
		if p.Shop == shop.ID {
			delete(s.products, id)
		}
	}
	delete(s.shops, shop.ID)
	w.WriteHeader(http.StatusNoContent)
}

// resetShop removes every product of the shop and puts it back in draft.
func (s *Server) resetShop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirm bool `json:"confirm"`
	}
	if err := decodeJSON(r, &body); err != nil || !body.Confirm {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"confirm": {"Reset must be confirmed."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shop, ok := s.ownedShop(w, r)
	if !ok {
		return
	}
	for id, p := range s.products {
		if p.Shop == shop.ID {
			delete(s.products, id)
		}
	}
	shop.Status = models.ShopDraft
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Shop reset."})
}
