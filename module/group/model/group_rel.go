package model

import (
	"time"

	mgo "IMProject/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

// UserGroupRel 群成员关系。can_replay=false 表示被禁言。
type UserGroupRel struct {
	ID      int64 `bson:"id" json:"id"` // 雪花ID（主键）
	GroupID int64 `bson:"group_id" json:"group_id"`
	UserID  int64 `bson:"user_id" json:"user_id"`

	CanReplay bool      `bson:"can_replay" json:"can_replay"` // 入群默认 true
	CTime     time.Time `bson:"c_time" json:"c_time"`
}

func (r *UserGroupRel) GetTableName() string {
	return "user_group_rel"
}

func (r *UserGroupRel) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(r.GetTableName())
}
