package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

// Offers ---------------------------------------------------------------------

func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt = s.now()
	_, err := s.col(colOffers).InsertOne(ctx, o)
	return mapErr(err)
}

func (s *Store) GetOffer(ctx context.Context, id primitive.ObjectID) (*models.Offer, error) {
	return findOne[models.Offer](ctx, s.col(colOffers), bson.M{"_id": id})
}

func (s *Store) ListOffers(ctx context.Context, f models.OfferFilter, p models.Page) ([]models.Offer, error) {
	filter := bson.M{}
	if !f.ShopID.IsZero() {
		filter["shopId"] = f.ShopID
	}
	if !f.LiveAt.IsZero() {
		filter["active"] = true
		filter["startsAt"] = bson.M{"$lte": f.LiveAt}
		filter["endsAt"] = bson.M{"$gt": f.LiveAt}
	}
	return findAll[models.Offer](ctx, s.col(colOffers), filter, findOpts(p, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) DeleteOffer(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colOffers), bson.M{"_id": id})
}

func (s *Store) DeactivateExpiredOffers(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.col(colOffers).UpdateMany(ctx,
		bson.M{"active": true, "endsAt": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Coupons --------------------------------------------------------------------

func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	_, err := s.col(colCoupons).InsertOne(ctx, c)
	return mapErr(err)
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return findOne[models.Coupon](ctx, s.col(colCoupons), bson.M{"code": code})
}

func (s *Store) ListCoupons(ctx context.Context, shopID primitive.ObjectID) ([]models.Coupon, error) {
	return findAll[models.Coupon](ctx, s.col(colCoupons), bson.M{"shopId": shopID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *Store) RedeemCoupon(ctx context.Context, code string, amount float64, now time.Time) (*models.Coupon, error) {
	filter := bson.M{
		"code":     code,
		"active":   true,
		"minOrder": bson.M{"$lte": amount},
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"expiresAt": bson.M{"$exists": false}},
				bson.M{"expiresAt": nil},
				bson.M{"expiresAt": bson.M{"$gt": now}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"maxUses": 0},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$maxUses"}}},
			}},
		},
	}

	var c models.Coupon
	err := s.col(colCoupons).FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"usedCount": 1}}, afterUpdate()).Decode(&c)
	if err == nil {
		return &c, nil
	}
	if err = mapErr(err); err != store.ErrNotFound {
		return nil, err
	}
	if _, err := s.GetCouponByCode(ctx, code); err != nil {
		return nil, err
	}
	return nil, store.ErrConflict
}

func (s *Store) DeactivateExpiredCoupons(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.col(colCoupons).UpdateMany(ctx,
		bson.M{"active": true, "expiresAt": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Categories -----------------------------------------------------------------

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	_, err := s.col(colCategories).InsertOne(ctx, c)
	return mapErr(err)
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := s.col(colCategories).UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"name":      c.Name,
		"slug":      c.Slug,
		"icon":      c.Icon,
		"sortOrder": c.SortOrder,
		"active":    c.Active,
	}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colCategories), bson.M{"_id": id})
}

func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]models.Category, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[models.Category](ctx, s.col(colCategories), filter,
		options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}))
}

func (s *Store) UpsertCategoryBySlug(ctx context.Context, c *models.Category) error {
	update := bson.M{
		"$set": bson.M{
			"name":      c.Name,
			"icon":      c.Icon,
			"sortOrder": c.SortOrder,
			"active":    c.Active,
		},
		"$setOnInsert": bson.M{"createdAt": s.now()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return mapErr(s.col(colCategories).FindOneAndUpdate(ctx, bson.M{"slug": c.Slug}, update, opts).Decode(c))
}

// Ads ------------------------------------------------------------------------

func (s *Store) CreateAd(ctx context.Context, a *models.Ad) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = s.now()
	_, err := s.col(colAds).InsertOne(ctx, a)
	return mapErr(err)
}

func (s *Store) DeleteAd(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colAds), bson.M{"_id": id})
}

func (s *Store) ListLiveAds(ctx context.Context, placement string, now time.Time) ([]models.Ad, error) {
	filter := bson.M{
		"active":   true,
		"startsAt": bson.M{"$lte": now},
		"endsAt":   bson.M{"$gt": now},
	}
	if placement != "" {
		filter["placement"] = placement
	}
	return findAll[models.Ad](ctx, s.col(colAds), filter,
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: -1}}))
}

func (s *Store) DeactivateExpiredAds(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.col(colAds).UpdateMany(ctx,
		bson.M{"active": true, "endsAt": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Packages -------------------------------------------------------------------

func (s *Store) CreatePackage(ctx context.Context, p *models.RollPackage) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = s.now()
	_, err := s.col(colPackages).InsertOne(ctx, p)
	return mapErr(err)
}

func (s *Store) UpdatePackage(ctx context.Context, p *models.RollPackage) error {
	res, err := s.col(colPackages).UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"rollCount":   p.RollCount,
		"price":       p.Price,
		"currency":    p.Currency,
		"active":      p.Active,
		"sortOrder":   p.SortOrder,
	}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, id primitive.ObjectID) (*models.RollPackage, error) {
	return findOne[models.RollPackage](ctx, s.col(colPackages), bson.M{"_id": id})
}

func (s *Store) ListPackages(ctx context.Context, activeOnly bool) ([]models.RollPackage, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[models.RollPackage](ctx, s.col(colPackages), filter,
		options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "price", Value: 1}}))
}

func (s *Store) UpsertPackageByName(ctx context.Context, p *models.RollPackage) error {
	update := bson.M{
		"$set": bson.M{
			"description": p.Description,
			"rollCount":   p.RollCount,
			"price":       p.Price,
			"currency":    p.Currency,
			"active":      p.Active,
			"sortOrder":   p.SortOrder,
		},
		"$setOnInsert": bson.M{"createdAt": s.now()},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return mapErr(s.col(colPackages).FindOneAndUpdate(ctx, bson.M{"name": p.Name}, update, opts).Decode(p))
}
