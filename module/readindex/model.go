package readindex

import "IMProject/tools/errs"

// Row read_index 表的一行：uid 在某个会话上的已读位置与最新消息。
// target_uid / target_gid 二选一；mid 为 NULL 表示从未回执过。
type Row struct {
	ID             int64  `json:"id"`
	UID            int64  `json:"uid"`
	TargetUID      *int64 `json:"target_uid,omitempty"`
	TargetGID      *int64 `json:"target_gid,omitempty"`
	Mid            *int64 `json:"mid,omitempty"`
	LatestMid      int64  `json:"latest_mid"`
	UIDOfLatestMsg int64  `json:"uid_of_latest_msg"`
}

// Update 已读回执请求体，外部标签二选一：
// {"User":{"target_uid":2,"mid":9}} 或 {"Group":{"target_gid":5,"mid":9}}
type Update struct {
	User  *UserUpdate  `json:"User,omitempty"`
	Group *GroupUpdate `json:"Group,omitempty"`
}

type UserUpdate struct {
	TargetUID int64 `json:"target_uid"`
	Mid       int64 `json:"mid"`
}

type GroupUpdate struct {
	TargetGID int64 `json:"target_gid"`
	Mid       int64 `json:"mid"`
}

func (u *Update) Validate() error {
	if (u.User == nil) == (u.Group == nil) {
		return errs.ErrArgs.WithDetail("read index update needs exactly one of User/Group").Wrap()
	}
	return nil
}
