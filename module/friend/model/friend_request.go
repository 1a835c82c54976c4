package model

import (
	"time"

	mgo "IMProject/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

// Status
const (
	RequestWait    = "WAIT"    // 等待审核
	RequestApprove = "APPROVE" // 已通过
	RequestReject  = "REJECT"  // 已拒绝
)

// FriendRequest 好友请求。同一对 (request_id, target_id) 只保留一条，
// 被拒后再次发起会把状态改回 WAIT。
type FriendRequest struct {
	ID        int64   `bson:"id" json:"id"` // 雪花ID（主键）
	RequestID int64   `bson:"request_id" json:"request_id"`
	TargetID  int64   `bson:"target_id" json:"target_id"`
	Reason    *string `bson:"reason,omitempty" json:"reason,omitempty"`
	Status    string  `bson:"status" json:"status"`

	CreateTime time.Time  `bson:"create_time" json:"create_time"`
	ModifyTime *time.Time `bson:"modify_time,omitempty" json:"modify_time,omitempty"`
}

func (f *FriendRequest) GetTableName() string {
	return "friend_request"
}

func (f *FriendRequest) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(f.GetTableName())
}
