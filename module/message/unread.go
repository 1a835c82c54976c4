package message

import (
	"encoding/json"
	"strconv"

	"IMProject/logger"
)

// UnRead 会话未读描述。从未回执过（mid 为空）时不知道真实数量，
// 序列化为 "all"；否则是具体数量的十进制字符串。nil 表示无未读，
// 调用方应整体省略该字段。
type UnRead struct {
	All   bool
	Count int
}

func (u UnRead) MarshalJSON() ([]byte, error) {
	if u.All {
		return json.Marshal("all")
	}
	return json.Marshal(strconv.Itoa(u.Count))
}

func (u UnRead) String() string {
	if u.All {
		return "all"
	}
	return strconv.Itoa(u.Count)
}

// CountDMUnread 单聊未读。last 为空 → "all"；计数为 0 或底层出错 → nil。
func (s *Service) CountDMUnread(a, b int64, last *int64) *UnRead {
	if last == nil {
		return &UnRead{All: true}
	}
	count, err := s.store.CountDMMessagesAfter(a, b, *last)
	if err != nil {
		logger.Warnf("count dm unread a=%d b=%d: %v", a, b, err)
		return nil
	}
	if count <= 0 {
		return nil
	}
	return &UnRead{Count: count}
}

// CountGroupUnread 群聊未读，语义同上
func (s *Service) CountGroupUnread(gid int64, last *int64) *UnRead {
	if last == nil {
		return &UnRead{All: true}
	}
	count, err := s.store.CountGroupMessagesAfter(gid, *last)
	if err != nil {
		logger.Warnf("count group unread gid=%d: %v", gid, err)
		return nil
	}
	if count <= 0 {
		return nil
	}
	return &UnRead{Count: count}
}
