package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

func (s *Store) CreateRoll(_ context.Context, r *models.Roll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt = s.now()
	s.rolls[r.ID] = cloneRoll(*r)
	return nil
}

func (s *Store) GetRoll(_ context.Context, id primitive.ObjectID) (*models.Roll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rolls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = cloneRoll(r)
	return &r, nil
}

func (s *Store) GetRolls(_ context.Context, ids []primitive.ObjectID) ([]models.Roll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Roll, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.rolls[id]; ok {
			out = append(out, cloneRoll(r))
		}
	}
	return out, nil
}

func (s *Store) ListRolls(_ context.Context, f models.RollFilter, p models.Page) ([]models.Roll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[primitive.ObjectID]bool
	if f.ShopIDs != nil {
		allowed = make(map[primitive.ObjectID]bool, len(f.ShopIDs))
		for _, id := range f.ShopIDs {
			allowed[id] = true
		}
	}

	var out []models.Roll
	for _, r := range s.rolls {
		if !f.ShopID.IsZero() && r.ShopID != f.ShopID {
			continue
		}
		if !f.VendorID.IsZero() && r.VendorID != f.VendorID {
			continue
		}
		if !f.CategoryID.IsZero() && r.CategoryID != f.CategoryID {
			continue
		}
		if allowed != nil && !allowed[r.ShopID] {
			continue
		}
		out = append(out, cloneRoll(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, p), nil
}

func (s *Store) DeleteRoll(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rolls[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rolls, id)
	return nil
}

func (s *Store) IncrementRollCounter(_ context.Context, id primitive.ObjectID, field string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rolls[id]
	if !ok {
		return store.ErrNotFound
	}
	switch field {
	case models.RollViews:
		r.ViewCount += n
	case models.RollShares:
		r.ShareCount += n
	case models.RollComments:
		r.CommentCount += n
	case models.RollSaves:
		r.SaveCount += n
	default:
		return store.ErrConflict
	}
	s.rolls[id] = r
	return nil
}

func (s *Store) LikeRoll(_ context.Context, id, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rolls[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if r.LikedByUser(userID) {
		return false, nil
	}
	r.LikedBy = append(append([]primitive.ObjectID(nil), r.LikedBy...), userID)
	r.LikeCount++
	s.rolls[id] = r
	return true, nil
}

func (s *Store) UnlikeRoll(_ context.Context, id, userID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rolls[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !r.LikedByUser(userID) {
		return false, nil
	}
	kept := make([]primitive.ObjectID, 0, len(r.LikedBy))
	for _, u := range r.LikedBy {
		if u != userID {
			kept = append(kept, u)
		}
	}
	r.LikedBy = kept
	r.LikeCount--
	s.rolls[id] = r
	return true, nil
}

func cloneRoll(r models.Roll) models.Roll {
	r.LikedBy = append([]primitive.ObjectID(nil), r.LikedBy...)
	r.Tags = append([]string(nil), r.Tags...)
	return r
}

// Saved ----------------------------------------------------------------------

func (s *Store) SaveRoll(_ context.Context, userID, rollID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sv := range s.saved {
		if sv.UserID == userID && sv.RollID == rollID {
			return false, nil
		}
	}
	sv := models.Saved{ID: primitive.NewObjectID(), UserID: userID, RollID: rollID, CreatedAt: s.now()}
	s.saved[sv.ID] = sv
	return true, nil
}

func (s *Store) UnsaveRoll(_ context.Context, userID, rollID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sv := range s.saved {
		if sv.UserID == userID && sv.RollID == rollID {
			delete(s.saved, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListSaved(_ context.Context, userID primitive.ObjectID, p models.Page) ([]models.Saved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Saved
	for _, sv := range s.saved {
		if sv.UserID == userID {
			out = append(out, sv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return window(out, p), nil
}

func (s *Store) DeleteSavedForRoll(_ context.Context, rollID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sv := range s.saved {
		if sv.RollID == rollID {
			delete(s.saved, id)
		}
	}
	return nil
}

// Comments -------------------------------------------------------------------

func (s *Store) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) GetComment(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListComments(_ context.Context, rollID primitive.ObjectID, p models.Page) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Comment
	for _, c := range s.comments {
		if c.RollID == rollID {
			out = append(out, c)
		}
	}
	// oldest first
	sort.Slice(out, func(i, j int) bool {
		return newer(out[j].CreatedAt, out[i].CreatedAt, out[j].ID, out[i].ID)
	})
	return window(out, p), nil
}

func (s *Store) DeleteComment(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) DeleteCommentsForRoll(_ context.Context, rollID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.comments {
		if c.RollID == rollID {
			delete(s.comments, id)
		}
	}
	return nil
}
