package mongostore

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.col(colUsers).InsertOne(ctx, u)
	return mapErr(err)
}

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s.col(colUsers), bson.M{"_id": id})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(colUsers), bson.M{"email": email})
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return findOne[models.User](ctx, s.col(colUsers), bson.M{"phone": phone})
}

func (s *Store) UpdateUser(ctx context.Context, id primitive.ObjectID, upd models.UserUpdate) (*models.User, error) {
	set := bson.M{"updatedAt": s.now()}
	putString(set, "name", upd.Name)
	putString(set, "avatar", upd.Avatar)
	putString(set, "country", upd.Country)
	putString(set, "pushToken", upd.PushToken)

	var u models.User
	err := s.col(colUsers).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&u)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) SetUserRole(ctx context.Context, id primitive.ObjectID, role string) error {
	res, err := s.col(colUsers).UpdateByID(ctx, id, bson.M{"$set": bson.M{"role": role, "updatedAt": s.now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func putString(set bson.M, key string, v *string) {
	if v != nil {
		set[key] = *v
	}
}

// Shops ----------------------------------------------------------------------

func (s *Store) CreateShop(ctx context.Context, sh *models.Shop) error {
	if sh.ID.IsZero() {
		sh.ID = primitive.NewObjectID()
	}
	now := s.now()
	sh.CreatedAt, sh.UpdatedAt = now, now
	_, err := s.col(colShops).InsertOne(ctx, sh)
	return mapErr(err)
}

func (s *Store) GetShop(ctx context.Context, id primitive.ObjectID) (*models.Shop, error) {
	return findOne[models.Shop](ctx, s.col(colShops), bson.M{"_id": id})
}

func (s *Store) GetShopByOwner(ctx context.Context, ownerID primitive.ObjectID) (*models.Shop, error) {
	return findOne[models.Shop](ctx, s.col(colShops), bson.M{"ownerId": ownerID})
}

func (s *Store) GetShops(ctx context.Context, ids []primitive.ObjectID) ([]models.Shop, error) {
	return findAll[models.Shop](ctx, s.col(colShops), bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (s *Store) ListShops(ctx context.Context, f models.ShopFilter, p models.Page) ([]models.Shop, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.CategoryID.IsZero() {
		filter["categoryId"] = f.CategoryID
	}
	if f.Country != "" {
		filter["country"] = f.Country
	}
	if f.Search != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	return findAll[models.Shop](ctx, s.col(colShops), filter, findOpts(p, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) UpdateShop(ctx context.Context, id primitive.ObjectID, upd models.ShopUpdate) (*models.Shop, error) {
	set := bson.M{"updatedAt": s.now()}
	putString(set, "name", upd.Name)
	putString(set, "description", upd.Description)
	putString(set, "logo", upd.Logo)
	putString(set, "cover", upd.Cover)
	putString(set, "address", upd.Address)
	putString(set, "city", upd.City)
	putString(set, "country", upd.Country)
	putString(set, "phone", upd.Phone)
	if upd.CategoryID != nil {
		set["categoryId"] = *upd.CategoryID
	}

	var sh models.Shop
	err := s.col(colShops).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, afterUpdate()).Decode(&sh)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sh, nil
}

func (s *Store) SetShopStatus(ctx context.Context, id primitive.ObjectID, status, reason string, at time.Time) (*models.Shop, error) {
	// Pipeline form so approvedAt keeps the first approval time.
	set := bson.M{
		"status":       bson.M{"$literal": status},
		"statusReason": bson.M{"$literal": reason},
		"updatedAt":    at,
	}
	if status == models.ShopApproved {
		set["approvedAt"] = bson.M{"$ifNull": bson.A{"$approvedAt", at}}
	}
	update := bson.A{bson.M{"$set": set}}

	var before models.Shop
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	if err := s.col(colShops).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&before); err != nil {
		return nil, mapErr(err)
	}
	return &before, nil
}

func (s *Store) IncrementShopShares(ctx context.Context, id primitive.ObjectID, n int64) error {
	res, err := s.col(colShops).UpdateByID(ctx, id, bson.M{"$inc": bson.M{"shareCount": n}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetShopRating(ctx context.Context, id primitive.ObjectID, rating float64, count int) error {
	res, err := s.col(colShops).UpdateByID(ctx, id, bson.M{"$set": bson.M{"rating": rating, "reviewCount": count}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Reviews --------------------------------------------------------------------

func (s *Store) UpsertReview(ctx context.Context, r *models.Review) error {
	now := s.now()
	filter := bson.M{"shopId": r.ShopID, "userId": r.UserID}
	update := bson.M{
		"$set": bson.M{
			"rating":    r.Rating,
			"comment":   r.Comment,
			"userName":  r.UserName,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := s.col(colReviews).FindOneAndUpdate(ctx, filter, update, opts).Decode(r); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) ListReviews(ctx context.Context, shopID primitive.ObjectID, p models.Page) ([]models.Review, error) {
	return findAll[models.Review](ctx, s.col(colReviews), bson.M{"shopId": shopID},
		findOpts(p, bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) ReviewSummary(ctx context.Context, shopID primitive.ObjectID) (float64, int, error) {
	pipeline := bson.A{
		bson.M{"$match": bson.M{"shopId": shopID}},
		bson.M{"$group": bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}},
	}
	cur, err := s.col(colReviews).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, err
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Avg, rows[0].Count, nil
}
