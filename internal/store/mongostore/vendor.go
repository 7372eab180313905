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

func (s *Store) EnsureVendorProfile(ctx context.Context, userID, shopID primitive.ObjectID) (*models.VendorProfile, error) {
	now := s.now()
	set := bson.M{"updatedAt": now}
	if !shopID.IsZero() {
		set["shopId"] = shopID
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"availableRolls":      0,
			"usedRolls":           0,
			"totalPurchasedRolls": 0,
			"createdAt":           now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var vp models.VendorProfile
	if err := s.col(colVendors).FindOneAndUpdate(ctx, bson.M{"userId": userID}, update, opts).Decode(&vp); err != nil {
		return nil, mapErr(err)
	}
	return &vp, nil
}

func (s *Store) GetVendorProfile(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	return findOne[models.VendorProfile](ctx, s.col(colVendors), bson.M{"userId": userID})
}

func (s *Store) ConsumeRoll(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	var vp models.VendorProfile
	err := s.col(colVendors).FindOneAndUpdate(ctx,
		bson.M{"userId": userID, "availableRolls": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"availableRolls": -1, "usedRolls": 1},
			"$set": bson.M{"updatedAt": s.now()},
		},
		afterUpdate(),
	).Decode(&vp)
	if err != nil {
		if err = mapErr(err); err == store.ErrNotFound {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &vp, nil
}

func (s *Store) RefundRoll(ctx context.Context, userID primitive.ObjectID) (*models.VendorProfile, error) {
	var vp models.VendorProfile
	err := s.col(colVendors).FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc": bson.M{"availableRolls": 1, "usedRolls": -1},
			"$set": bson.M{"updatedAt": s.now()},
		},
		afterUpdate(),
	).Decode(&vp)
	if err != nil {
		return nil, mapErr(err)
	}
	return &vp, nil
}

func (s *Store) CreditRolls(ctx context.Context, userID primitive.ObjectID, p models.RollPurchase, countsAsPurchase bool) (*models.VendorProfile, error) {
	inc := bson.M{"availableRolls": p.Rolls}
	if countsAsPurchase {
		inc["totalPurchasedRolls"] = p.Rolls
	}

	var vp models.VendorProfile
	err := s.col(colVendors).FindOneAndUpdate(ctx,
		bson.M{"userId": userID},
		bson.M{
			"$inc":  inc,
			"$push": bson.M{"purchases": p},
			"$set":  bson.M{"updatedAt": s.now()},
		},
		afterUpdate(),
	).Decode(&vp)
	if err != nil {
		return nil, mapErr(err)
	}
	return &vp, nil
}

// Weekly shares ---------------------------------------------------------------

func (s *Store) IncrementWeeklyShare(ctx context.Context, shopID primitive.ObjectID, country string, weekStart time.Time, n int64) error {
	year, week := weekStart.ISOWeek()
	_, err := s.col(colShares).UpdateOne(ctx,
		bson.M{"shopId": shopID, "country": country, "weekStart": weekStart},
		bson.M{
			"$inc":         bson.M{"count": n},
			"$set":         bson.M{"updatedAt": s.now()},
			"$setOnInsert": bson.M{"year": year, "week": week},
		},
		options.Update().SetUpsert(true),
	)
	return mapErr(err)
}

func (s *Store) TopShops(ctx context.Context, weekStart time.Time, country string, limit int) ([]models.ShareTally, error) {
	match := bson.M{"weekStart": weekStart}
	if country != "" {
		match["country"] = country
	}
	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{"$group": bson.M{"_id": "$shopId", "count": bson.M{"$sum": "$count"}}},
		bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": limit})
	}

	cur, err := s.col(colShares).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []models.ShareTally{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ShopWeeklyShares(ctx context.Context, shopID primitive.ObjectID, since time.Time) ([]models.WeeklyShopShare, error) {
	return findAll[models.WeeklyShopShare](ctx, s.col(colShares),
		bson.M{"shopId": shopID, "weekStart": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "weekStart", Value: 1}}))
}

func (s *Store) PruneWeeklyShares(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.col(colShares).DeleteMany(ctx, bson.M{"weekStart": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
