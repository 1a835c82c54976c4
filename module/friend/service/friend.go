// 好友域服务。请求/审核走 Mongo，真正的好友关系与位置都在图库：
// 同一对用户只保留一条请求记录，被拒后重新申请把状态改回 WAIT；
// 审核通过才建图边。
package service

import (
	"context"
	"errors"
	"time"

	friendmodel "IMProject/module/friend/model"
	msgmodel "IMProject/module/message/model"
	usermodel "IMProject/module/user/model"
	"IMProject/service/graph"
	"IMProject/tools/errs"
	"IMProject/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Users 好友流程需要的用户模块能力
type Users interface {
	CheckTargetStatus(ctx context.Context, uid int64) (*usermodel.User, error)
	GetByID(ctx context.Context, uid int64) (*usermodel.User, error)
	GetByIDs(ctx context.Context, uids []int64) ([]usermodel.User, error)
}

type Service struct {
	graph *graph.Client
	users Users
}

func NewService(g *graph.Client, users Users) *Service {
	return &Service{graph: g, users: users}
}

// Request 发起好友申请。已是好友与等待中的申请都报状态未变更。
func (s *Service) Request(ctx context.Context, actorUID int64, actorDgraphUID string, targetUID int64, reason *string) error {
	if _, err := s.users.CheckTargetStatus(ctx, targetUID); err != nil {
		return err
	}
	isFriend, err := s.graph.IsFriend(ctx, actorDgraphUID, targetUID)
	if err != nil {
		return err
	}
	if isFriend {
		return errs.ErrAlreadyFriend.Wrap()
	}

	var fr friendmodel.FriendRequest
	err = fr.Collection().FindOne(ctx,
		bson.M{"request_id": actorUID, "target_id": targetUID}).Decode(&fr)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		req := &friendmodel.FriendRequest{
			ID:         ids.Generate(),
			RequestID:  actorUID,
			TargetID:   targetUID,
			Reason:     reason,
			Status:     friendmodel.RequestWait,
			CreateTime: time.Now(),
		}
		if _, err := req.Collection().InsertOne(ctx, req); err != nil {
			return errs.WrapMsg(err, "insert friend request", "uid", actorUID, "target", targetUID)
		}
		return nil
	case err != nil:
		return errs.WrapMsg(err, "find friend request", "uid", actorUID, "target", targetUID)
	}

	switch fr.Status {
	case friendmodel.RequestApprove:
		return errs.ErrAlreadyFriend.Wrap()
	case friendmodel.RequestWait:
		return errs.ErrRequestWaiting.Wrap()
	default: // REJECT 改回 WAIT，理由换新
		now := time.Now()
		_, err := fr.Collection().UpdateOne(ctx,
			bson.M{"id": fr.ID},
			bson.M{"$set": bson.M{
				"status":      friendmodel.RequestWait,
				"reason":      reason,
				"modify_time": now,
			}},
		)
		if err != nil {
			return errs.WrapMsg(err, "reopen friend request", "id", fr.ID)
		}
		return nil
	}
}

// ReqItem 收到的好友申请，申请人名称已批量带出
type ReqItem struct {
	ID          int64              `json:"id"`
	RequestID   int64              `json:"request_id"`
	RequestName string             `json:"request_name"`
	CreateTime  msgmodel.Timestamp `json:"create_time"`
	Reason      *string            `json:"reason,omitempty"`
	Status      string             `json:"status"`
}

// IncomingList 以我为目标的全部申请
func (s *Service) IncomingList(ctx context.Context, uid int64) ([]ReqItem, error) {
	var fr friendmodel.FriendRequest
	cur, err := fr.Collection().Find(ctx, bson.M{"target_id": uid})
	if err != nil {
		return nil, errs.WrapMsg(err, "find friend requests", "target", uid)
	}
	defer cur.Close(ctx)

	var reqs []friendmodel.FriendRequest
	if err := cur.All(ctx, &reqs); err != nil {
		return nil, errs.WrapMsg(err, "decode friend requests")
	}

	reqUIDs := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		reqUIDs = append(reqUIDs, r.RequestID)
	}
	users, err := s.users.GetByIDs(ctx, reqUIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	out := make([]ReqItem, 0, len(reqs))
	for _, r := range reqs {
		name, ok := names[r.RequestID]
		if !ok {
			name = "未知用户"
		}
		out = append(out, ReqItem{
			ID:          r.ID,
			RequestID:   r.RequestID,
			RequestName: name,
			CreateTime:  msgmodel.Timestamp{Time: r.CreateTime},
			Reason:      r.Reason,
			Status:      r.Status,
		})
	}
	return out, nil
}

// Review 审核申请。仅目标用户有权操作；通过时在图库建双向好友边。
// 查无此申请按无事发生处理。
func (s *Service) Review(ctx context.Context, actorUID, reqID int64, status string) error {
	if status != friendmodel.RequestApprove && status != friendmodel.RequestReject {
		return errs.ErrArgs.WithDetail("status must be APPROVE or REJECT").Wrap()
	}

	var fr friendmodel.FriendRequest
	err := fr.Collection().FindOne(ctx, bson.M{"id": reqID}).Decode(&fr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return errs.WrapMsg(err, "find friend request", "id", reqID)
	}
	if fr.TargetID != actorUID {
		return errs.ErrCanNotReview.Wrap()
	}

	now := time.Now()
	if _, err := fr.Collection().UpdateOne(ctx,
		bson.M{"id": fr.ID},
		bson.M{"$set": bson.M{"status": status, "modify_time": now}},
	); err != nil {
		return errs.WrapMsg(err, "update friend request", "id", fr.ID)
	}
	if status != friendmodel.RequestApprove {
		return nil
	}

	requestUser, err := s.mustGet(ctx, fr.RequestID)
	if err != nil {
		return err
	}
	targetUser, err := s.mustGet(ctx, fr.TargetID)
	if err != nil {
		return err
	}
	return s.graph.SetFriendship(ctx, requestUser.DgraphUID, targetUser.DgraphUID)
}

// FriendItem 好友列表项
type FriendItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// List 图库里的好友边
func (s *Service) List(ctx context.Context, dgraphUID string) ([]FriendItem, error) {
	node, err := s.graph.GetFriends(ctx, dgraphUID)
	if err != nil {
		return nil, err
	}
	out := []FriendItem{}
	if node == nil {
		return out, nil
	}
	for _, f := range node.Friend {
		out = append(out, FriendItem{ID: f.UserID, Name: f.Name})
	}
	return out, nil
}

// SetLoc 更新我的位置
func (s *Service) SetLoc(ctx context.Context, dgraphUID string, long, lat float64) error {
	return s.graph.SetLoc(ctx, dgraphUID, long, lat)
}

// Nearby 以我的位置为圆心查附近的人。没设置过位置返回空。
func (s *Service) Nearby(ctx context.Context, dgraphUID string, radius int) ([]graph.UserNode, error) {
	node, err := s.graph.GetFriends(ctx, dgraphUID)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Loc == nil || node.Loc.Type != "Point" || len(node.Loc.Coordinates) < 2 {
		return []graph.UserNode{}, nil
	}
	return s.graph.Nearby(ctx, node.Loc.Coordinates[0], node.Loc.Coordinates[1], radius)
}

func (s *Service) mustGet(ctx context.Context, uid int64) (*usermodel.User, error) {
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrUserNotExist.WrapMsg("", "uid", uid)
	}
	return u, nil
}
