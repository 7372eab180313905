package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Offer struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShopID          primitive.ObjectID `bson:"shopId" json:"shopId"`
	Title           string             `bson:"title" json:"title"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Image           string             `bson:"image,omitempty" json:"image,omitempty"`
	DiscountPercent int                `bson:"discountPercent" json:"discountPercent"`
	StartsAt        time.Time          `bson:"startsAt" json:"startsAt"`
	EndsAt          time.Time          `bson:"endsAt" json:"endsAt"`
	Active          bool               `bson:"active" json:"active"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// LiveAt reports whether the offer is active and now falls within its window.
func (o *Offer) LiveAt(now time.Time) bool {
	return o.Active && !now.Before(o.StartsAt) && now.Before(o.EndsAt)
}

type OfferFilter struct {
	ShopID primitive.ObjectID
	// LiveAt, when set, keeps only offers running at that instant.
	LiveAt time.Time
}

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

type Coupon struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShopID        primitive.ObjectID `bson:"shopId" json:"shopId"`
	Code          string             `bson:"code" json:"code"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType  string             `bson:"discountType" json:"discountType"`
	DiscountValue float64            `bson:"discountValue" json:"discountValue"`
	MinOrder      float64            `bson:"minOrder" json:"minOrder"`
	MaxUses       int64              `bson:"maxUses" json:"maxUses"`
	UsedCount     int64              `bson:"usedCount" json:"usedCount"`
	ExpiresAt     *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	Active        bool               `bson:"active" json:"active"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// UsableAt reports whether the coupon can still be redeemed for an order of amount.
func (c *Coupon) UsableAt(now time.Time, amount float64) bool {
	if !c.Active || amount < c.MinOrder {
		return false
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	return c.MaxUses == 0 || c.UsedCount < c.MaxUses
}

// Discount returns the amount taken off an order, never more than the order itself.
func (c *Coupon) Discount(amount float64) float64 {
	var d float64
	switch c.DiscountType {
	case DiscountPercent:
		d = amount * c.DiscountValue / 100
	case DiscountFixed:
		d = c.DiscountValue
	}
	d = math.Min(d, amount)
	return math.Round(d*100) / 100
}
