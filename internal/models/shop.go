package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ShopPending   = "pending"
	ShopApproved  = "approved"
	ShopRejected  = "rejected"
	ShopSuspended = "suspended"
)

type Shop struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	CategoryID   primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Logo         string             `bson:"logo,omitempty" json:"logo,omitempty"`
	Cover        string             `bson:"cover,omitempty" json:"cover,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	City         string             `bson:"city,omitempty" json:"city,omitempty"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Status       string             `bson:"status" json:"status"`
	StatusReason string             `bson:"statusReason,omitempty" json:"statusReason,omitempty"`
	Rating       float64            `bson:"rating" json:"rating"`
	ReviewCount  int                `bson:"reviewCount" json:"reviewCount"`
	ShareCount   int64              `bson:"shareCount" json:"shareCount"`
	ApprovedAt   *time.Time         `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (s *Shop) Approved() bool {
	return s.Status == ShopApproved
}

type ShopUpdate struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	CategoryID  *primitive.ObjectID `json:"categoryId"`
	Logo        *string             `json:"logo"`
	Cover       *string             `json:"cover"`
	Address     *string             `json:"address"`
	City        *string             `json:"city"`
	Country     *string             `json:"country"`
	Phone       *string             `json:"phone"`
}

type ShopFilter struct {
	Status     string
	CategoryID primitive.ObjectID
	Country    string
	Search     string
}

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShopID    primitive.ObjectID `bson:"shopId" json:"shopId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	UserName  string             `bson:"userName,omitempty" json:"userName,omitempty"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
