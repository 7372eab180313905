package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Vendor profiles -------------------------------------------------------------

func (s *Store) vendorLocked(userID primitive.ObjectID) (models.VendorProfile, bool) {
	for _, vp := range s.vendors {
		if vp.UserID == userID {
			return vp, true
		}
	}
	return models.VendorProfile{}, false
}

func (s *Store) putVendorLocked(vp models.VendorProfile) *models.VendorProfile {
	vp.UpdatedAt = s.now()
	s.vendors[vp.ID] = vp
	out := vp
	out.Purchases = append([]models.RollPurchase(nil), vp.Purchases...)
	return &out
}

func (s *Store) EnsureVendorProfile(_ context.Context, userID, shopID primitive.ObjectID) (*models.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, ok := s.vendorLocked(userID)
	if !ok {
		vp = models.VendorProfile{ID: primitive.NewObjectID(), UserID: userID, CreatedAt: s.now()}
	}
	if !shopID.IsZero() {
		vp.ShopID = shopID
	}
	return s.putVendorLocked(vp), nil
}

func (s *Store) GetVendorProfile(_ context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vp, ok := s.vendorLocked(userID)
	if !ok {
		return nil, store.ErrNotFound
	}
	vp.Purchases = append([]models.RollPurchase(nil), vp.Purchases...)
	return &vp, nil
}

func (s *Store) ConsumeRoll(_ context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, ok := s.vendorLocked(userID)
	if !ok || vp.AvailableRolls <= 0 {
		return nil, store.ErrConflict
	}
	vp.AvailableRolls--
	vp.UsedRolls++
	return s.putVendorLocked(vp), nil
}

func (s *Store) RefundRoll(_ context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, ok := s.vendorLocked(userID)
	if !ok {
		return nil, store.ErrNotFound
	}
	vp.AvailableRolls++
	vp.UsedRolls--
	return s.putVendorLocked(vp), nil
}

func (s *Store) CreditRolls(_ context.Context, userID primitive.ObjectID, p models.RollPurchase, countsAsPurchase bool) (*models.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vp, ok := s.vendorLocked(userID)
	if !ok {
		return nil, store.ErrNotFound
	}
	vp.AvailableRolls += p.Rolls
	if countsAsPurchase {
		vp.TotalPurchasedRolls += p.Rolls
	}
	vp.Purchases = append(append([]models.RollPurchase(nil), vp.Purchases...), p)
	return s.putVendorLocked(vp), nil
}

// Weekly shares ---------------------------------------------------------------

func (s *Store) IncrementWeeklyShare(_ context.Context, shopID primitive.ObjectID, country string, weekStart time.Time, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, ws := range s.shares {
		if ws.ShopID == shopID && ws.Country == country && ws.WeekStart.Equal(weekStart) {
			ws.Count += n
			ws.UpdatedAt = now
			s.shares[id] = ws
			return nil
		}
	}
	year, week := weekStart.ISOWeek()
	ws := models.WeeklyShopShare{
		ID:        primitive.NewObjectID(),
		ShopID:    shopID,
		Country:   country,
		WeekStart: weekStart,
		Year:      year,
		Week:      week,
		Count:     n,
		UpdatedAt: now,
	}
	s.shares[ws.ID] = ws
	return nil
}

func (s *Store) TopShops(_ context.Context, weekStart time.Time, country string, limit int) ([]models.ShareTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[primitive.ObjectID]int64)
	for _, ws := range s.shares {
		if !ws.WeekStart.Equal(weekStart) {
			continue
		}
		if country != "" && ws.Country != country {
			continue
		}
		totals[ws.ShopID] += ws.Count
	}
	out := make([]models.ShareTally, 0, len(totals))
	for id, c := range totals {
		out = append(out, models.ShareTally{ShopID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ShopID.Hex() < out[j].ShopID.Hex()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ShopWeeklyShares(_ context.Context, shopID primitive.ObjectID, since time.Time) ([]models.WeeklyShopShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.WeeklyShopShare
	for _, ws := range s.shares {
		if ws.ShopID == shopID && !ws.WeekStart.Before(since) {
			out = append(out, ws)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out, nil
}

func (s *Store) PruneWeeklyShares(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, ws := range s.shares {
		if ws.WeekStart.Before(before) {
			delete(s.shares, id)
			n++
		}
	}
	return n, nil
}
