package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash string             `bson:"passwordHash,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Avatar       string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	PushToken    string             `bson:"pushToken,omitempty" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserUpdate holds the profile fields a user may change. Nil means unchanged.
type UserUpdate struct {
	Name      *string `json:"name"`
	Avatar    *string `json:"avatar"`
	Country   *string `json:"country"`
	PushToken *string `json:"pushToken"`
}

// Page is a skip/limit window over a listing.
type Page struct {
	Skip  int64
	Limit int64
}

// ShopPage is the aggregated payload behind a shop's public page.
type ShopPage struct {
	Shop    *Shop    `json:"shop"`
	Rolls   []Roll   `json:"rolls"`
	Offers  []Offer  `json:"offers"`
	Reviews []Review `json:"reviews"`
}
