package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VendorProfile tracks a vendor's roll upload credits.
type VendorProfile struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID              primitive.ObjectID `bson:"userId" json:"userId"`
	ShopID              primitive.ObjectID `bson:"shopId,omitempty" json:"shopId,omitempty"`
	AvailableRolls      int                `bson:"availableRolls" json:"availableRolls"`
	UsedRolls           int                `bson:"usedRolls" json:"usedRolls"`
	TotalPurchasedRolls int                `bson:"totalPurchasedRolls" json:"totalPurchasedRolls"`
	Purchases           []RollPurchase     `bson:"purchases,omitempty" json:"purchases,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RollPurchase records one credit top-up. PackageID is zero for grants.
type RollPurchase struct {
	PackageID   primitive.ObjectID `bson:"packageId,omitempty" json:"packageId,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Rolls       int                `bson:"rolls" json:"rolls"`
	Price       float64            `bson:"price" json:"price"`
	Currency    string             `bson:"currency,omitempty" json:"currency,omitempty"`
	Reference   string             `bson:"reference,omitempty" json:"reference,omitempty"`
	PurchasedAt time.Time          `bson:"purchasedAt" json:"purchasedAt"`
}

// WeeklyShopShare counts share events of one shop from one country in one week.
type WeeklyShopShare struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShopID    primitive.ObjectID `bson:"shopId" json:"shopId"`
	Country   string             `bson:"country" json:"country"`
	WeekStart time.Time          `bson:"weekStart" json:"weekStart"`
	Year      int                `bson:"year" json:"year"`
	Week      int                `bson:"week" json:"week"`
	Count     int64              `bson:"count" json:"count"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ShareTally is a shop's summed share count for a week.
type ShareTally struct {
	ShopID primitive.ObjectID `bson:"_id" json:"shopId"`
	Count  int64              `bson:"count" json:"count"`
}

type LeaderboardEntry struct {
	Rank     int                `json:"rank"`
	ShopID   primitive.ObjectID `json:"shopId"`
	ShopName string             `json:"shopName"`
	Logo     string             `json:"logo,omitempty"`
	Shares   int64              `json:"shares"`
}

type Leaderboard struct {
	WeekStart time.Time          `json:"weekStart"`
	Country   string             `json:"country,omitempty"`
	Entries   []LeaderboardEntry `json:"entries"`
}

type WeeklyTotal struct {
	WeekStart time.Time `json:"weekStart"`
	Shares    int64     `json:"shares"`
}
