package message

import (
	"context"

	"IMProject/logger"
	"IMProject/module/event"
	msgmodel "IMProject/module/message/model"
	"IMProject/module/readindex"
	"IMProject/msgdb"
	"IMProject/tools/errs"
)

// GroupMembers 群成员快照来源（群模块实现）
type GroupMembers interface {
	GetUIDs(ctx context.Context, gid int64) ([]int64, error)
}

// Service 消息域：持久化、读位置推进、在线广播按此顺序串起来。
// 消息上盘即成功；读索引失败只记日志，广播本身尽力而为。
type Service struct {
	store     *msgdb.Store
	hub       *event.Hub
	readIndex *readindex.Service
	members   GroupMembers
}

func NewService(store *msgdb.Store, hub *event.Hub, readIndex *readindex.Service, members GroupMembers) *Service {
	return &Service{store: store, hub: hub, readIndex: readIndex, members: members}
}

// Send 发送一条文本消息，返回分配的 mid。
// 群聊先取成员快照，取不到则整个发送失败。
func (s *Service) Send(ctx context.Context, fromUID int64, target msgmodel.MessageTarget, msg string) (int64, error) {
	if len(msg) == 0 {
		return 0, errs.ErrArgs.WithDetail("msg is blank").Wrap()
	}
	if err := target.Validate(); err != nil {
		return 0, err
	}

	payload := msgmodel.BuildPayload(fromUID, target, msg)
	raw, err := msgmodel.EncodePayload(payload)
	if err != nil {
		return 0, errs.WrapMsg(err, "fail to serialize msg")
	}

	var (
		mid     int64
		targets []int64
		update  readindex.Update
	)
	if target.User != nil {
		toUID := target.User.UID
		mid, err = s.store.SendToDM(fromUID, toUID, raw)
		if err != nil {
			return 0, err
		}
		targets = []int64{fromUID, toUID}
		update = readindex.Update{User: &readindex.UserUpdate{TargetUID: toUID, Mid: mid}}
	} else {
		gid := target.Group.GID
		uids, merr := s.members.GetUIDs(ctx, gid)
		if merr != nil {
			return 0, merr
		}
		mid, err = s.store.SendToGroup(gid, uids, raw)
		if err != nil {
			return 0, err
		}
		targets = uids
		update = readindex.Update{Group: &readindex.GroupUpdate{TargetGID: gid, Mid: mid}}
	}

	// 发送者视角：自己发的就是自己读过的
	if err := s.readIndex.SetReadIndex(ctx, fromUID, update); err != nil {
		logger.Errorf("set read index after send mid=%d: %v", mid, err)
	}

	s.hub.Publish(&event.BroadcastEvent{
		Targets: targets,
		Message: msgmodel.NewChatMessage(mid, payload),
	})
	return mid, nil
}

// HistoryDM 单聊历史，新到旧
func (s *Service) HistoryDM(a, b int64, before *int64, limit int) ([]msgmodel.ChatMessage, error) {
	entries, err := s.store.FetchDMMessagesBefore(a, b, before, limit)
	if err != nil {
		return nil, err
	}
	return buildChatMessages(entries), nil
}

// HistoryGroup 群聊历史，新到旧
func (s *Service) HistoryGroup(gid int64, before *int64, limit int) ([]msgmodel.ChatMessage, error) {
	entries, err := s.store.FetchGroupMessagesBefore(gid, before, limit)
	if err != nil {
		return nil, err
	}
	return buildChatMessages(entries), nil
}

// Sync 断线补数据：用户此前错过的消息，旧到新
func (s *Service) Sync(uid int64, after *int64, limit int) ([]msgmodel.ChatMessage, error) {
	entries, err := s.store.FetchUserMessagesAfter(uid, after, limit)
	if err != nil {
		return nil, err
	}
	return buildChatMessages(entries), nil
}

// GetByMids 批量取消息；缺失或解不开的记录直接丢弃
func (s *Service) GetByMids(mids []int64) []msgmodel.ChatMessage {
	out := make([]msgmodel.ChatMessage, 0, len(mids))
	for _, mid := range mids {
		raw, err := s.store.Get(mid)
		if err != nil || raw == nil {
			continue
		}
		payload, err := msgmodel.DecodePayload(raw)
		if err != nil {
			continue
		}
		out = append(out, msgmodel.NewChatMessage(mid, payload))
	}
	return out
}

// ChatItem 聊天列表里的一个会话
type ChatItem struct {
	TargetUID      *int64                `json:"target_uid,omitempty"`
	TargetGID      *int64                `json:"target_gid,omitempty"`
	Mid            *int64                `json:"mid,omitempty"` // 已读位置
	LatestMid      int64                 `json:"latest_mid"`
	UIDOfLatestMsg int64                 `json:"uid_of_latest_msg"`
	LatestMsg      *msgmodel.ChatMessage `json:"latest_msg,omitempty"`
	UnRead         *UnRead               `json:"unread,omitempty"`
}

// ChatList 读索引行 + 最新一条消息 + 未读描述
func (s *Service) ChatList(ctx context.Context, uid int64) ([]ChatItem, error) {
	rows, err := s.readIndex.ListByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	mids := make([]int64, 0, len(rows))
	for _, row := range rows {
		mids = append(mids, row.LatestMid)
	}
	latest := make(map[int64]msgmodel.ChatMessage, len(mids))
	for _, m := range s.GetByMids(mids) {
		latest[m.Mid] = m
	}

	items := make([]ChatItem, 0, len(rows))
	for _, row := range rows {
		item := ChatItem{
			TargetUID:      row.TargetUID,
			TargetGID:      row.TargetGID,
			Mid:            row.Mid,
			LatestMid:      row.LatestMid,
			UIDOfLatestMsg: row.UIDOfLatestMsg,
		}
		if m, ok := latest[row.LatestMid]; ok {
			item.LatestMsg = &m
		}
		switch {
		case row.TargetUID != nil:
			item.UnRead = s.CountDMUnread(uid, *row.TargetUID, row.Mid)
		case row.TargetGID != nil:
			item.UnRead = s.CountGroupUnread(*row.TargetGID, row.Mid)
		}
		items = append(items, item)
	}
	return items, nil
}

// buildChatMessages 逐条解码，坏记录跳过
func buildChatMessages(entries []msgdb.Entry) []msgmodel.ChatMessage {
	out := make([]msgmodel.ChatMessage, 0, len(entries))
	for _, e := range entries {
		payload, err := msgmodel.DecodePayload(e.Payload)
		if err != nil {
			continue
		}
		out = append(out, msgmodel.NewChatMessage(e.Mid, payload))
	}
	return out
}
