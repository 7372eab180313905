// Package mongostore implements the store interfaces on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bigbag/internal/models"
	"bigbag/internal/resilience"
	"bigbag/internal/store"
)

const (
	colUsers      = "users"
	colShops      = "shops"
	colRolls      = "rolls"
	colSaved      = "saved"
	colComments   = "comments"
	colOffers     = "offers"
	colCoupons    = "coupons"
	colCategories = "categories"
	colAds        = "ads"
	colReviews    = "reviews"
	colPackages   = "rollpackages"
	colVendors    = "vendorprofiles"
	colShares     = "weeklyshopshares"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, retrying while the server comes up, and selects db.
func Open(ctx context.Context, uri, db string) (*Store, error) {
	var client *mongo.Client
	err := resilience.Retry(ctx, 5, 2*time.Second, func() error {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(5*time.Second))
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Ping(pingCtx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	return &Store{
		client: client,
		db:     client.Database(db),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	sparseUnique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetSparse(true)}
	}
	plain := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys}
	}

	indexes := map[string][]mongo.IndexModel{
		colUsers: {
			sparseUnique(bson.D{{Key: "email", Value: 1}}),
			sparseUnique(bson.D{{Key: "phone", Value: 1}}),
		},
		colShops: {
			unique(bson.D{{Key: "ownerId", Value: 1}}),
			plain(bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}),
			plain(bson.D{{Key: "categoryId", Value: 1}}),
		},
		colRolls: {
			plain(bson.D{{Key: "shopId", Value: 1}, {Key: "createdAt", Value: -1}}),
			plain(bson.D{{Key: "categoryId", Value: 1}, {Key: "createdAt", Value: -1}}),
		},
		colSaved: {
			unique(bson.D{{Key: "userId", Value: 1}, {Key: "rollId", Value: 1}}),
		},
		colComments: {
			plain(bson.D{{Key: "rollId", Value: 1}, {Key: "createdAt", Value: 1}}),
		},
		colOffers: {
			plain(bson.D{{Key: "shopId", Value: 1}}),
			plain(bson.D{{Key: "active", Value: 1}, {Key: "endsAt", Value: 1}}),
		},
		colCoupons: {
			unique(bson.D{{Key: "code", Value: 1}}),
			plain(bson.D{{Key: "shopId", Value: 1}}),
		},
		colCategories: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		colAds: {
			plain(bson.D{{Key: "placement", Value: 1}, {Key: "active", Value: 1}}),
		},
		colReviews: {
			unique(bson.D{{Key: "shopId", Value: 1}, {Key: "userId", Value: 1}}),
		},
		colPackages: {
			unique(bson.D{{Key: "name", Value: 1}}),
		},
		colVendors: {
			unique(bson.D{{Key: "userId", Value: 1}}),
		},
		colShares: {
			unique(bson.D{{Key: "shopId", Value: 1}, {Key: "country", Value: 1}, {Key: "weekStart", Value: 1}}),
			plain(bson.D{{Key: "weekStart", Value: 1}, {Key: "country", Value: 1}}),
		},
	}

	for name, idx := range indexes {
		if _, err := s.col(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		slog.Debug("Indexes ensured", "collection", name, "count", len(idx))
	}
	return nil
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicate
	default:
		return err
	}
}

func findOpts(p models.Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if p.Skip > 0 {
		opts.SetSkip(p.Skip)
	}
	if p.Limit > 0 {
		opts.SetLimit(p.Limit)
	}
	return opts
}

func findAll[T any](ctx context.Context, c *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findOne[T any](ctx context.Context, c *mongo.Collection, filter any) (*T, error) {
	var out T
	if err := c.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func deleteOne(ctx context.Context, c *mongo.Collection, filter any) error {
	res, err := c.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
