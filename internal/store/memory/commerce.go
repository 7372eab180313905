package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Offers ---------------------------------------------------------------------

func (s *Store) CreateOffer(_ context.Context, o *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt = s.now()
	s.offers[o.ID] = *o
	return nil
}

func (s *Store) GetOffer(_ context.Context, id primitive.ObjectID) (*models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) ListOffers(_ context.Context, f models.OfferFilter, p models.Page) ([]models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Offer
	for _, o := range s.offers {
		if !f.ShopID.IsZero() && o.ShopID != f.ShopID {
			continue
		}
		if !f.LiveAt.IsZero() && !o.LiveAt(f.LiveAt) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, p), nil
}

func (s *Store) DeleteOffer(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.offers, id)
	return nil
}

func (s *Store) DeactivateExpiredOffers(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, o := range s.offers {
		if o.Active && !now.Before(o.EndsAt) {
			o.Active = false
			s.offers[id] = o
			n++
		}
	}
	return n, nil
}

// Coupons --------------------------------------------------------------------

func (s *Store) CreateCoupon(_ context.Context, c *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.coupons {
		if existing.Code == c.Code {
			return store.ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	s.coupons[c.ID] = *c
	return nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.coupons {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListCoupons(_ context.Context, shopID primitive.ObjectID) ([]models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Coupon
	for _, c := range s.coupons {
		if c.ShopID == shopID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) RedeemCoupon(_ context.Context, code string, amount float64, now time.Time) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.coupons {
		if c.Code != code {
			continue
		}
		if !c.UsableAt(now, amount) {
			return nil, store.ErrConflict
		}
		c.UsedCount++
		s.coupons[id] = c
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeactivateExpiredCoupons(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.coupons {
		if c.Active && c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
			c.Active = false
			s.coupons[id] = c
			n++
		}
	}
	return n, nil
}

// Categories -----------------------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if existing.Slug == c.Slug {
			return store.ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) UpdateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, other := range s.categories {
		if id != c.ID && other.Slug == c.Slug {
			return store.ErrDuplicate
		}
	}
	c.CreatedAt = existing.CreatedAt
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context, activeOnly bool) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Category{}
	for _, c := range s.categories {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) UpsertCategoryBySlug(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.categories {
		if existing.Slug == c.Slug {
			c.ID = id
			c.CreatedAt = existing.CreatedAt
			s.categories[id] = *c
			return nil
		}
	}
	c.ID = primitive.NewObjectID()
	c.CreatedAt = s.now()
	s.categories[c.ID] = *c
	return nil
}

// Ads ------------------------------------------------------------------------

func (s *Store) CreateAd(_ context.Context, a *models.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = s.now()
	s.ads[a.ID] = *a
	return nil
}

func (s *Store) DeleteAd(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ads[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.ads, id)
	return nil
}

func (s *Store) ListLiveAds(_ context.Context, placement string, now time.Time) ([]models.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Ad{}
	for _, a := range s.ads {
		if !a.Active || (placement != "" && a.Placement != placement) {
			continue
		}
		if now.Before(a.StartsAt) || !now.Before(a.EndsAt) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, nil
}

func (s *Store) DeactivateExpiredAds(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.ads {
		if a.Active && !now.Before(a.EndsAt) {
			a.Active = false
			s.ads[id] = a
			n++
		}
	}
	return n, nil
}

// Packages -------------------------------------------------------------------

func (s *Store) CreatePackage(_ context.Context, p *models.RollPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.packages {
		if existing.Name == p.Name {
			return store.ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = s.now()
	s.packages[p.ID] = *p
	return nil
}

func (s *Store) UpdatePackage(_ context.Context, p *models.RollPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.packages[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	s.packages[p.ID] = *p
	return nil
}

func (s *Store) GetPackage(_ context.Context, id primitive.ObjectID) (*models.RollPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListPackages(_ context.Context, activeOnly bool) ([]models.RollPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.RollPackage{}
	for _, p := range s.packages {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

func (s *Store) UpsertPackageByName(_ context.Context, p *models.RollPackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.packages {
		if existing.Name == p.Name {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			s.packages[id] = *p
			return nil
		}
	}
	p.ID = primitive.NewObjectID()
	p.CreatedAt = s.now()
	s.packages[p.ID] = *p
	return nil
}
