package readindex

import (
	"context"
)

// GroupMembers 群成员快照来源（群模块实现）
type GroupMembers interface {
	GetUIDs(ctx context.Context, gid int64) ([]int64, error)
}

type Service struct {
	repo    Repo
	members GroupMembers
}

func NewService(repo Repo, members GroupMembers) *Service {
	return &Service{repo: repo, members: members}
}

// SetReadIndex 推进 uid 在一个会话上的已读位置。
// 回执方行推进 mid+latest 两列，其余参与者只推进 latest 两列（行不存在
// 则以 NULL mid 建行）。群成员名单取调用时刻的快照。
func (s *Service) SetReadIndex(ctx context.Context, uid int64, up Update) error {
	if err := up.Validate(); err != nil {
		return err
	}
	if up.User != nil {
		if err := s.repo.UpsertActingDM(ctx, uid, up.User.TargetUID, up.User.Mid); err != nil {
			return err
		}
		return s.repo.UpsertPeerDM(ctx, up.User.TargetUID, uid, up.User.Mid, uid)
	}

	gid, mid := up.Group.TargetGID, up.Group.Mid
	if err := s.repo.UpsertActingGroup(ctx, uid, gid, mid); err != nil {
		return err
	}
	uids, err := s.members.GetUIDs(ctx, gid)
	if err != nil {
		return err
	}
	for _, member := range uids {
		if member == uid {
			continue // 回执方已在上面写过完整行
		}
		if err := s.repo.UpsertMemberGroup(ctx, member, gid, mid, uid); err != nil {
			return err
		}
	}
	return nil
}

// ListByUID 用户的会话清单（聊天列表的数据底座）
func (s *Service) ListByUID(ctx context.Context, uid int64) ([]Row, error) {
	return s.repo.ListByUID(ctx, uid)
}
