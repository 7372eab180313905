// Package memory is an in-memory implementation of the store interfaces. It is
// safe for concurrent use and is intended for tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	users      map[primitive.ObjectID]models.User
	shops      map[primitive.ObjectID]models.Shop
	rolls      map[primitive.ObjectID]models.Roll
	saved      map[primitive.ObjectID]models.Saved
	comments   map[primitive.ObjectID]models.Comment
	offers     map[primitive.ObjectID]models.Offer
	coupons    map[primitive.ObjectID]models.Coupon
	categories map[primitive.ObjectID]models.Category
	ads        map[primitive.ObjectID]models.Ad
	reviews    map[primitive.ObjectID]models.Review
	packages   map[primitive.ObjectID]models.RollPackage
	vendors    map[primitive.ObjectID]models.VendorProfile
	shares     map[primitive.ObjectID]models.WeeklyShopShare

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[primitive.ObjectID]models.User),
		shops:      make(map[primitive.ObjectID]models.Shop),
		rolls:      make(map[primitive.ObjectID]models.Roll),
		saved:      make(map[primitive.ObjectID]models.Saved),
		comments:   make(map[primitive.ObjectID]models.Comment),
		offers:     make(map[primitive.ObjectID]models.Offer),
		coupons:    make(map[primitive.ObjectID]models.Coupon),
		categories: make(map[primitive.ObjectID]models.Category),
		ads:        make(map[primitive.ObjectID]models.Ad),
		reviews:    make(map[primitive.ObjectID]models.Review),
		packages:   make(map[primitive.ObjectID]models.RollPackage),
		vendors:    make(map[primitive.ObjectID]models.VendorProfile),
		shares:     make(map[primitive.ObjectID]models.WeeklyShopShare),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

func window[T any](items []T, p models.Page) []T {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Skip >= int64(len(items)) {
		return []T{}
	}
	items = items[p.Skip:]
	if p.Limit > 0 && p.Limit < int64(len(items)) {
		items = items[:p.Limit]
	}
	return items
}

// newer sorts by creation time desc with id as tiebreaker; ObjectIDs are
// monotonic within a process so this matches insertion order.
func newer(a, b time.Time, ida, idb primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return ida.Hex() > idb.Hex()
}

// Users ----------------------------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if u.Email != "" && existing.Email == u.Email {
			return store.ErrDuplicate
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return store.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) findUser(match func(models.User) bool) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Phone == phone })
}

func (s *Store) UpdateUser(_ context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	setString(&u.Name, upd.Name)
	setString(&u.Avatar, upd.Avatar)
	setString(&u.Country, upd.Country)
	setString(&u.PushToken, upd.PushToken)
	u.UpdatedAt = s.now()
	s.users[id] = u
	return &u, nil
}

func (s *Store) SetUserRole(_ context.Context, id primitive.ObjectID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Shops ----------------------------------------------------------------------

func (s *Store) CreateShop(_ context.Context, sh *models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shops {
		if existing.OwnerID == sh.OwnerID {
			return store.ErrDuplicate
		}
	}
	if sh.ID.IsZero() {
		sh.ID = primitive.NewObjectID()
	}
	now := s.now()
	sh.CreatedAt, sh.UpdatedAt = now, now
	s.shops[sh.ID] = *sh
	return nil
}

func (s *Store) GetShop(_ context.Context, id primitive.ObjectID) (*models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sh, nil
}

func (s *Store) GetShopByOwner(_ context.Context, ownerID primitive.ObjectID) (*models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sh := range s.shops {
		if sh.OwnerID == ownerID {
			return &sh, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetShops(_ context.Context, ids []primitive.ObjectID) ([]models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Shop, 0, len(ids))
	for _, id := range ids {
		if sh, ok := s.shops[id]; ok {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (s *Store) ListShops(_ context.Context, f models.ShopFilter, p models.Page) ([]models.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	var out []models.Shop
	for _, sh := range s.shops {
		if f.Status != "" && sh.Status != f.Status {
			continue
		}
		if !f.CategoryID.IsZero() && sh.CategoryID != f.CategoryID {
			continue
		}
		if f.Country != "" && sh.Country != f.Country {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sh.Name), search) {
			continue
		}
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, p), nil
}

func (s *Store) UpdateShop(_ context.Context, id primitive.ObjectID, upd models.ShopUpdate) (*models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	setString(&sh.Name, upd.Name)
	setString(&sh.Description, upd.Description)
	setString(&sh.Logo, upd.Logo)
	setString(&sh.Cover, upd.Cover)
	setString(&sh.Address, upd.Address)
	setString(&sh.City, upd.City)
	setString(&sh.Country, upd.Country)
	setString(&sh.Phone, upd.Phone)
	if upd.CategoryID != nil {
		sh.CategoryID = *upd.CategoryID
	}
	sh.UpdatedAt = s.now()
	s.shops[id] = sh
	return &sh, nil
}

func (s *Store) SetShopStatus(_ context.Context, id primitive.ObjectID, status, reason string, at time.Time) (*models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	before := sh
	sh.Status = status
	sh.StatusReason = reason
	if status == models.ShopApproved && sh.ApprovedAt == nil {
		sh.ApprovedAt = &at
	}
	sh.UpdatedAt = at
	s.shops[id] = sh
	return &before, nil
}

func (s *Store) IncrementShopShares(_ context.Context, id primitive.ObjectID, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shops[id]
	if !ok {
		return store.ErrNotFound
	}
	sh.ShareCount += n
	s.shops[id] = sh
	return nil
}

func (s *Store) SetShopRating(_ context.Context, id primitive.ObjectID, rating float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shops[id]
	if !ok {
		return store.ErrNotFound
	}
	sh.Rating = rating
	sh.ReviewCount = count
	s.shops[id] = sh
	return nil
}

// Reviews --------------------------------------------------------------------

func (s *Store) UpsertReview(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.reviews {
		if existing.ShopID == r.ShopID && existing.UserID == r.UserID {
			r.ID = id
			r.CreatedAt = existing.CreatedAt
			r.UpdatedAt = now
			s.reviews[id] = *r
			return nil
		}
	}
	r.ID = primitive.NewObjectID()
	r.CreatedAt, r.UpdatedAt = now, now
	s.reviews[r.ID] = *r
	return nil
}

func (s *Store) ListReviews(_ context.Context, shopID primitive.ObjectID, p models.Page) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Review
	for _, r := range s.reviews {
		if r.ShopID == shopID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].UpdatedAt, out[j].UpdatedAt, out[i].ID, out[j].ID)
	})
	return window(out, p), nil
}

func (s *Store) ReviewSummary(_ context.Context, shopID primitive.ObjectID) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum, n int
	for _, r := range s.reviews {
		if r.ShopID == shopID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}
