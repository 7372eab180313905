package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bigbag/internal/models"
	"bigbag/internal/store"
)

var rollCounters = map[string]bool{
	models.RollViews:    true,
	models.RollShares:   true,
	models.RollComments: true,
	models.RollSaves:    true,
}

func (s *Store) CreateRoll(ctx context.Context, r *models.Roll) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	r.CreatedAt = s.now()
	_, err := s.col(colRolls).InsertOne(ctx, r)
	return mapErr(err)
}

func (s *Store) GetRoll(ctx context.Context, id primitive.ObjectID) (*models.Roll, error) {
	return findOne[models.Roll](ctx, s.col(colRolls), bson.M{"_id": id})
}

func (s *Store) GetRolls(ctx context.Context, ids []primitive.ObjectID) ([]models.Roll, error) {
	return findAll[models.Roll](ctx, s.col(colRolls), bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (s *Store) ListRolls(ctx context.Context, f models.RollFilter, p models.Page) ([]models.Roll, error) {
	filter := bson.M{}
	if !f.ShopID.IsZero() {
		filter["shopId"] = f.ShopID
	}
	if !f.VendorID.IsZero() {
		filter["vendorId"] = f.VendorID
	}
	if !f.CategoryID.IsZero() {
		filter["categoryId"] = f.CategoryID
	}
	if f.ShopIDs != nil {
		if shop, ok := filter["shopId"]; ok {
			filter["shopId"] = bson.M{"$eq": shop, "$in": f.ShopIDs}
		} else {
			filter["shopId"] = bson.M{"$in": f.ShopIDs}
		}
	}
	return findAll[models.Roll](ctx, s.col(colRolls), filter, findOpts(p, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) DeleteRoll(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colRolls), bson.M{"_id": id})
}

func (s *Store) IncrementRollCounter(ctx context.Context, id primitive.ObjectID, field string, n int64) error {
	if !rollCounters[field] {
		return fmt.Errorf("unknown roll counter %q: %w", field, store.ErrConflict)
	}
	res, err := s.col(colRolls).UpdateByID(ctx, id, bson.M{"$inc": bson.M{field: n}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// LikeRoll only matches while the user is absent from likedBy, so the count
// moves exactly once per membership change.
func (s *Store) LikeRoll(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	res, err := s.col(colRolls).UpdateOne(ctx,
		bson.M{"_id": id, "likedBy": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"likedBy": userID}, "$inc": bson.M{"likeCount": 1}},
	)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	return false, s.rollExists(ctx, id)
}

func (s *Store) UnlikeRoll(ctx context.Context, id, userID primitive.ObjectID) (bool, error) {
	res, err := s.col(colRolls).UpdateOne(ctx,
		bson.M{"_id": id, "likedBy": userID},
		bson.M{"$pull": bson.M{"likedBy": userID}, "$inc": bson.M{"likeCount": -1}},
	)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	return false, s.rollExists(ctx, id)
}

func (s *Store) rollExists(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.col(colRolls).CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Saved ----------------------------------------------------------------------

func (s *Store) SaveRoll(ctx context.Context, userID, rollID primitive.ObjectID) (bool, error) {
	res, err := s.col(colSaved).UpdateOne(ctx,
		bson.M{"userId": userID, "rollId": rollID},
		bson.M{"$setOnInsert": bson.M{"createdAt": s.now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, mapErr(err)
	}
	return res.UpsertedCount == 1, nil
}

func (s *Store) UnsaveRoll(ctx context.Context, userID, rollID primitive.ObjectID) (bool, error) {
	res, err := s.col(colSaved).DeleteOne(ctx, bson.M{"userId": userID, "rollId": rollID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (s *Store) ListSaved(ctx context.Context, userID primitive.ObjectID, p models.Page) ([]models.Saved, error) {
	return findAll[models.Saved](ctx, s.col(colSaved), bson.M{"userId": userID},
		findOpts(p, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *Store) DeleteSavedForRoll(ctx context.Context, rollID primitive.ObjectID) error {
	_, err := s.col(colSaved).DeleteMany(ctx, bson.M{"rollId": rollID})
	return err
}

// Comments -------------------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = s.now()
	_, err := s.col(colComments).InsertOne(ctx, c)
	return mapErr(err)
}

func (s *Store) GetComment(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	return findOne[models.Comment](ctx, s.col(colComments), bson.M{"_id": id})
}

func (s *Store) ListComments(ctx context.Context, rollID primitive.ObjectID, p models.Page) ([]models.Comment, error) {
	return findAll[models.Comment](ctx, s.col(colComments), bson.M{"rollId": rollID},
		findOpts(p, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *Store) DeleteComment(ctx context.Context, id primitive.ObjectID) error {
	return deleteOne(ctx, s.col(colComments), bson.M{"_id": id})
}

func (s *Store) DeleteCommentsForRoll(ctx context.Context, rollID primitive.ObjectID) error {
	_, err := s.col(colComments).DeleteMany(ctx, bson.M{"rollId": rollID})
	return err
}
