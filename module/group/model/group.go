package model

import (
	"time"

	mgo "IMProject/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

// Group 群组。admin 为群主 uid，群管理操作只认它。
type Group struct {
	ID    int64  `bson:"id" json:"id"` // 雪花ID（主键）
	Name  string `bson:"name" json:"name"`
	Admin int64  `bson:"admin" json:"admin"`

	CTime time.Time  `bson:"c_time" json:"c_time"`
	UTime *time.Time `bson:"u_time,omitempty" json:"u_time,omitempty"`
}

func (g *Group) GetTableName() string {
	return "group"
}

func (g *Group) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(g.GetTableName())
}
