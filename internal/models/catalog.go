package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id" yaml:"-"`
	Name      string             `bson:"name" json:"name" yaml:"name"`
	Slug      string             `bson:"slug" json:"slug" yaml:"slug"`
	Icon      string             `bson:"icon,omitempty" json:"icon,omitempty" yaml:"icon"`
	SortOrder int                `bson:"sortOrder" json:"sortOrder" yaml:"sortOrder"`
	Active    bool               `bson:"active" json:"active" yaml:"active"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt" yaml:"-"`
}

const (
	PlacementHome = "home"
	PlacementFeed = "feed"
	PlacementShop = "shop"
)

type Ad struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Image     string             `bson:"image" json:"image"`
	Link      string             `bson:"link,omitempty" json:"link,omitempty"`
	ShopID    primitive.ObjectID `bson:"shopId,omitempty" json:"shopId,omitempty"`
	Placement string             `bson:"placement" json:"placement"`
	Priority  int                `bson:"priority" json:"priority"`
	StartsAt  time.Time          `bson:"startsAt" json:"startsAt"`
	EndsAt    time.Time          `bson:"endsAt" json:"endsAt"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type RollPackage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id" yaml:"-"`
	Name        string             `bson:"name" json:"name" yaml:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty" yaml:"description"`
	RollCount   int                `bson:"rollCount" json:"rollCount" yaml:"rollCount"`
	Price       float64            `bson:"price" json:"price" yaml:"price"`
	Currency    string             `bson:"currency" json:"currency" yaml:"currency"`
	Active      bool               `bson:"active" json:"active" yaml:"active"`
	SortOrder   int                `bson:"sortOrder" json:"sortOrder" yaml:"sortOrder"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt" yaml:"-"`
}
