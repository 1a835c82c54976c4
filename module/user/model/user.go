package model

import (
	"time"

	mgo "IMProject/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

// Status
const (
	StatusNormal = "NORMAL" // 正常
	StatusFreeze = "FREEZE" // 冻结：不能登录，已登录的会被踢出
)

// Role
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// User 用户主档。name 全局唯一，作为登录名。
type User struct {
	// —— 基础标识 ——
	ID    int64   `bson:"id" json:"id"` // 雪花ID（主键）
	Name  string  `bson:"name" json:"name"`
	Email *string `bson:"email,omitempty" json:"email,omitempty"`
	Phone *string `bson:"phone,omitempty" json:"phone,omitempty"`

	// —— 凭证与权限 ——
	Password string `bson:"password" json:"-"`
	Status   string `bson:"status" json:"status"` // NORMAL / FREEZE
	Role     string `bson:"role" json:"role"`     // User / Admin

	// —— 关联 ——
	DgraphUID string `bson:"dgraph_uid" json:"dgraph_uid"` // 图库节点ID，注册时写入

	// —— 时间 ——
	CreateTime time.Time  `bson:"create_time" json:"create_time"`
	UpdateTime *time.Time `bson:"update_time,omitempty" json:"update_time,omitempty"`
}

// Frozen 是否处于冻结态
func (u *User) Frozen() bool {
	return u.Status == StatusFreeze
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) GetTableName() string {
	return "user"
}

func (u *User) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(u.GetTableName())
}
