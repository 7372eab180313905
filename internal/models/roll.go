package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roll counter fields that can be bumped with a plain $inc.
const (
	RollViews    = "viewCount"
	RollShares   = "shareCount"
	RollComments = "commentCount"
	RollSaves    = "saveCount"
)

type Roll struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ShopID       primitive.ObjectID   `bson:"shopId" json:"shopId"`
	VendorID     primitive.ObjectID   `bson:"vendorId" json:"vendorId"`
	Caption      string               `bson:"caption,omitempty" json:"caption,omitempty"`
	VideoURL     string               `bson:"videoUrl" json:"videoUrl"`
	ThumbnailURL string               `bson:"thumbnailUrl,omitempty" json:"thumbnailUrl,omitempty"`
	CategoryID   primitive.ObjectID   `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Tags         []string             `bson:"tags,omitempty" json:"tags,omitempty"`
	LikedBy      []primitive.ObjectID `bson:"likedBy,omitempty" json:"-"`
	LikeCount    int64                `bson:"likeCount" json:"likeCount"`
	CommentCount int64                `bson:"commentCount" json:"commentCount"`
	SaveCount    int64                `bson:"saveCount" json:"saveCount"`
	ShareCount   int64                `bson:"shareCount" json:"shareCount"`
	ViewCount    int64                `bson:"viewCount" json:"viewCount"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
}

// LikedByUser reports whether id is in the roll's like set.
func (r *Roll) LikedByUser(id primitive.ObjectID) bool {
	for _, u := range r.LikedBy {
		if u == id {
			return true
		}
	}
	return false
}

type RollFilter struct {
	ShopID     primitive.ObjectID
	VendorID   primitive.ObjectID
	CategoryID primitive.ObjectID
	// ShopIDs restricts results to these shops when non-nil.
	ShopIDs []primitive.ObjectID
}

type Saved struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	RollID    primitive.ObjectID `bson:"rollId" json:"rollId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RollID    primitive.ObjectID `bson:"rollId" json:"rollId"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	UserName  string             `bson:"userName,omitempty" json:"userName,omitempty"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
