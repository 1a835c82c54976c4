// 群组域服务：建群、成员增删、整群删除与禁言开关。
// 群主（admin 字段）才有禁言权限；GetUIDs 给消息扇出与已读索引
// 提供成员快照。
package service

import (
	"context"
	"errors"
	"time"

	groupmodel "IMProject/module/group/model"
	"IMProject/service/mgo"
	"IMProject/tools/errs"
	"IMProject/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserChecker 校验 uid 是否有主档（用户模块实现）
type UserChecker interface {
	Exist(ctx context.Context, uid int64) (bool, error)
}

type Service struct {
	users UserChecker
}

func NewService(users UserChecker) *Service {
	return &Service{users: users}
}

// AllItem 群列表只暴露 id 与名称
type AllItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// All 全量群列表
func (s *Service) All(ctx context.Context) ([]AllItem, error) {
	var g groupmodel.Group
	cur, err := g.Collection().Find(ctx, bson.M{})
	if err != nil {
		return nil, errs.WrapMsg(err, "find all groups")
	}
	defer cur.Close(ctx)

	var groups []groupmodel.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, errs.WrapMsg(err, "decode groups")
	}
	out := make([]AllItem, 0, len(groups))
	for _, it := range groups {
		out = append(out, AllItem{ID: it.ID, Name: it.Name})
	}
	return out, nil
}

// Create 建群，发起人即群主，返回新群ID
func (s *Service) Create(ctx context.Context, adminUID int64, name string) (int64, error) {
	g := &groupmodel.Group{
		ID:    ids.Generate(),
		Name:  name,
		Admin: adminUID,
		CTime: time.Now(),
	}
	if _, err := g.Collection().InsertOne(ctx, g); err != nil {
		return 0, errs.WrapMsg(err, "insert group", "name", name)
	}
	return g.ID, nil
}

// Get 按 gid 查群，查无返回 (nil, nil)
func (s *Service) Get(ctx context.Context, gid int64) (*groupmodel.Group, error) {
	var g groupmodel.Group
	err := g.Collection().FindOne(ctx, bson.M{"id": gid}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find group", "gid", gid)
	}
	return &g, nil
}

// Add 拉人入群。群与用户都要在档，重复入群报状态未变更。
func (s *Service) Add(ctx context.Context, gid, uid int64) error {
	if err := s.mustExist(ctx, gid); err != nil {
		return err
	}
	if err := s.mustUserExist(ctx, uid); err != nil {
		return err
	}
	rel, err := s.getRel(ctx, gid, uid)
	if err != nil {
		return err
	}
	if rel != nil {
		return errs.ErrAlreadyInGroup.Wrap()
	}
	newRel := &groupmodel.UserGroupRel{
		ID:        ids.Generate(),
		GroupID:   gid,
		UserID:    uid,
		CanReplay: true,
		CTime:     time.Now(),
	}
	if _, err := newRel.Collection().InsertOne(ctx, newRel); err != nil {
		return errs.WrapMsg(err, "insert group rel", "gid", gid, "uid", uid)
	}
	return nil
}

// Remove 移出群成员
func (s *Service) Remove(ctx context.Context, gid, uid int64) error {
	if err := s.mustExist(ctx, gid); err != nil {
		return err
	}
	if err := s.mustUserExist(ctx, uid); err != nil {
		return err
	}
	rel, err := s.getRel(ctx, gid, uid)
	if err != nil {
		return err
	}
	if rel == nil {
		return errs.ErrUserNotInGroup.Wrap()
	}
	if _, err := rel.Collection().DeleteMany(ctx,
		bson.M{"group_id": gid, "user_id": uid}); err != nil {
		return errs.WrapMsg(err, "delete group rel", "gid", gid, "uid", uid)
	}
	return nil
}

// Delete 删群。群文档与成员关系要么都删掉要么都保留，走事务。
func (s *Service) Delete(ctx context.Context, gid int64) error {
	if err := s.mustExist(ctx, gid); err != nil {
		return err
	}
	sess, err := mgo.GetDB().Client().StartSession()
	if err != nil {
		return errs.WrapMsg(err, "start mongo session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var g groupmodel.Group
		if _, err := g.Collection().DeleteOne(sc, bson.M{"id": gid}); err != nil {
			return nil, err
		}
		var rel groupmodel.UserGroupRel
		if _, err := rel.Collection().DeleteMany(sc, bson.M{"group_id": gid}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return errs.WrapMsg(err, "delete group", "gid", gid)
	}
	return nil
}

// Forbid 禁言群成员，仅群主可操作
func (s *Service) Forbid(ctx context.Context, actorUID, gid, uid int64) error {
	rel, err := s.adminGetRel(ctx, actorUID, gid, uid)
	if err != nil {
		return err
	}
	if !rel.CanReplay {
		return errs.ErrUserForbidden.Wrap()
	}
	return s.setCanReplay(ctx, gid, uid, false)
}

// Unforbid 解除禁言，仅群主可操作
func (s *Service) Unforbid(ctx context.Context, actorUID, gid, uid int64) error {
	rel, err := s.adminGetRel(ctx, actorUID, gid, uid)
	if err != nil {
		return err
	}
	if rel.CanReplay {
		return errs.ErrUserNotForbidden.Wrap()
	}
	return s.setCanReplay(ctx, gid, uid, true)
}

// CheckSpeak 发群消息前校验：在群内且未被禁言
func (s *Service) CheckSpeak(ctx context.Context, gid, uid int64) error {
	if err := s.mustExist(ctx, gid); err != nil {
		return err
	}
	rel, err := s.getRel(ctx, gid, uid)
	if err != nil {
		return err
	}
	if rel == nil {
		return errs.ErrUserNotInGroup.Wrap()
	}
	if !rel.CanReplay {
		return errs.ErrSpeakForbidden.Wrap()
	}
	return nil
}

// GetUIDs 群成员快照。群不在档视为解析失败，调用方应中止发送。
func (s *Service) GetUIDs(ctx context.Context, gid int64) ([]int64, error) {
	if err := s.mustExist(ctx, gid); err != nil {
		return nil, err
	}
	var rel groupmodel.UserGroupRel
	cur, err := rel.Collection().Find(ctx, bson.M{"group_id": gid})
	if err != nil {
		return nil, errs.WrapMsg(err, "find group rels", "gid", gid)
	}
	defer cur.Close(ctx)

	var rels []groupmodel.UserGroupRel
	if err := cur.All(ctx, &rels); err != nil {
		return nil, errs.WrapMsg(err, "decode group rels")
	}
	uids := make([]int64, 0, len(rels))
	for _, r := range rels {
		uids = append(uids, r.UserID)
	}
	return uids, nil
}

func (s *Service) adminGetRel(ctx context.Context, actorUID, gid, uid int64) (*groupmodel.UserGroupRel, error) {
	g, err := s.Get(ctx, gid)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.ErrGroupNotExist.WrapMsg("", "gid", gid)
	}
	if g.Admin != actorUID {
		return nil, errs.ErrNotGroupAdmin.Wrap()
	}
	rel, err := s.getRel(ctx, gid, uid)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, errs.ErrUserNotInGroup.Wrap()
	}
	return rel, nil
}

func (s *Service) setCanReplay(ctx context.Context, gid, uid int64, canReplay bool) error {
	var rel groupmodel.UserGroupRel
	_, err := rel.Collection().UpdateOne(ctx,
		bson.M{"group_id": gid, "user_id": uid},
		bson.M{"$set": bson.M{"can_replay": canReplay}},
	)
	if err != nil {
		return errs.WrapMsg(err, "update can_replay", "gid", gid, "uid", uid)
	}
	return nil
}

func (s *Service) getRel(ctx context.Context, gid, uid int64) (*groupmodel.UserGroupRel, error) {
	var rel groupmodel.UserGroupRel
	err := rel.Collection().FindOne(ctx, bson.M{"group_id": gid, "user_id": uid}).Decode(&rel)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find group rel", "gid", gid, "uid", uid)
	}
	return &rel, nil
}

func (s *Service) mustExist(ctx context.Context, gid int64) error {
	g, err := s.Get(ctx, gid)
	if err != nil {
		return err
	}
	if g == nil {
		return errs.ErrGroupNotExist.WrapMsg("", "gid", gid)
	}
	return nil
}

func (s *Service) mustUserExist(ctx context.Context, uid int64) error {
	ok, err := s.users.Exist(ctx, uid)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrUserNotExist.WrapMsg("", "uid", uid)
	}
	return nil
}
