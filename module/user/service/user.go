// 用户域服务：注册、凭证登录、登录态维护、冻结/解冻。
// 主档存 Mongo；注册时先在图库建节点，dgraph_uid 回写主档，
// 之后的好友关系全部走图库。
package service

import (
	"context"
	"errors"
	"time"

	midsec "IMProject/middleware/security"
	usermodel "IMProject/module/user/model"
	"IMProject/service/graph"
	"IMProject/service/session"
	"IMProject/tools/errs"
	"IMProject/tools/ids"
	jwtsec "IMProject/tools/security"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service struct {
	graph    *graph.Client
	registry session.Registry
	jwtOpts  jwtsec.Options
}

func NewService(g *graph.Client, registry session.Registry, jwtOpts jwtsec.Options) *Service {
	return &Service{graph: g, registry: registry, jwtOpts: jwtOpts}
}

// RegisterReq 注册入参
type RegisterReq struct {
	Name     string  `json:"name" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	Phone    *string `json:"phone"`
}

// Register 建档。先占名，再建图节点，最后落主档。
func (s *Service) Register(ctx context.Context, req RegisterReq) (*usermodel.User, error) {
	exist, err := s.FindByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, errs.ErrUserNameExist.WithDetail(req.Name).Wrap()
	}

	uid := ids.Generate()
	dgraphUID, err := s.graph.Register(ctx, graph.UserNode{
		UserID: uid,
		Name:   req.Name,
		Phone:  req.Phone,
	})
	if err != nil {
		return nil, err
	}

	u := &usermodel.User{
		ID:         uid,
		Name:       req.Name,
		Email:      &req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Status:     usermodel.StatusNormal,
		Role:       usermodel.RoleUser,
		DgraphUID:  dgraphUID,
		CreateTime: time.Now(),
	}
	if _, err := u.Collection().InsertOne(ctx, u); err != nil {
		return nil, errs.WrapMsg(err, "insert user", "name", req.Name)
	}
	return u, nil
}

// LoginResult 登录成功后的令牌信息
type LoginResult struct {
	AccessToken        string    `json:"access_token"`
	AccessTokenExpires time.Time `json:"access_token_expires"`
}

// Login 明文口令比对，通过后签发令牌并写登录注册表
func (s *Service) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	u, err := s.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrUserNameNotExist.WithDetail(name).Wrap()
	}
	if u.Frozen() {
		return nil, errs.ErrLoginUserFrozen.Wrap()
	}
	if u.Password != password {
		return nil, errs.ErrWrongCredentials.Wrap()
	}
	return s.issueToken(ctx, u)
}

// Renew 为在线用户重签令牌，登录态顺延
func (s *Service) Renew(ctx context.Context, uid int64) (*LoginResult, error) {
	u, err := s.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrUserNotExist.Wrap()
	}
	return s.issueToken(ctx, u)
}

// Logout 移除登录态，旧令牌即刻失效
func (s *Service) Logout(ctx context.Context, uid int64) error {
	return s.registry.Del(ctx, uid)
}

func (s *Service) issueToken(ctx context.Context, u *usermodel.User) (*LoginResult, error) {
	claims := &jwtsec.Claims{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		DgraphUID: u.DgraphUID,
	}
	if u.Email != nil {
		claims.Email = *u.Email
	}
	token, _, expireAt, err := jwtsec.Generate(s.jwtOpts, claims)
	if err != nil {
		return nil, errs.ErrTokenCreation.WithDetail(err.Error()).Wrap()
	}
	if err := s.registry.Put(ctx, u.ID, token); err != nil {
		return nil, errs.WrapMsg(err, "register login state", "uid", u.ID)
	}
	return &LoginResult{AccessToken: token, AccessTokenExpires: expireAt}, nil
}

// FindByName 按登录名查用户，查无返回 (nil, nil)
func (s *Service) FindByName(ctx context.Context, name string) (*usermodel.User, error) {
	var u usermodel.User
	err := u.Collection().FindOne(ctx, bson.M{"name": name}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user by name", "name", name)
	}
	return &u, nil
}

// GetByID 按 uid 查用户，查无返回 (nil, nil)
func (s *Service) GetByID(ctx context.Context, uid int64) (*usermodel.User, error) {
	var u usermodel.User
	err := u.Collection().FindOne(ctx, bson.M{"id": uid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user by id", "uid", uid)
	}
	return &u, nil
}

// GetByIDs 批量查用户，缺失的 uid 不报错
func (s *Service) GetByIDs(ctx context.Context, uids []int64) ([]usermodel.User, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	var u usermodel.User
	cur, err := u.Collection().Find(ctx, bson.M{"id": bson.M{"$in": uids}})
	if err != nil {
		return nil, errs.WrapMsg(err, "find users by ids")
	}
	defer cur.Close(ctx)

	var out []usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}

// All 全量用户列表
func (s *Service) All(ctx context.Context) ([]usermodel.User, error) {
	var u usermodel.User
	cur, err := u.Collection().Find(ctx, bson.M{})
	if err != nil {
		return nil, errs.WrapMsg(err, "find all users")
	}
	defer cur.Close(ctx)

	var out []usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}

// Exist uid 是否有主档
func (s *Service) Exist(ctx context.Context, uid int64) (bool, error) {
	u, err := s.GetByID(ctx, uid)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

// CheckTargetStatus 校验对端用户可被操作：存在且未被冻结
func (s *Service) CheckTargetStatus(ctx context.Context, uid int64) (*usermodel.User, error) {
	u, err := s.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrUserNotExist.WrapMsg("", "uid", uid)
	}
	if u.Frozen() {
		return nil, errs.ErrUserFrozen.WithDetail(u.Name).Wrap()
	}
	return u, nil
}

// Freeze 冻结用户并踢掉其登录态
func (s *Service) Freeze(ctx context.Context, uid int64) error {
	if err := s.setStatus(ctx, uid, usermodel.StatusFreeze); err != nil {
		return err
	}
	return s.registry.Del(ctx, uid)
}

// Unfreeze 解冻，用户需重新登录
func (s *Service) Unfreeze(ctx context.Context, uid int64) error {
	return s.setStatus(ctx, uid, usermodel.StatusNormal)
}

func (s *Service) setStatus(ctx context.Context, uid int64, status string) error {
	var u usermodel.User
	res, err := u.Collection().UpdateOne(ctx,
		bson.M{"id": uid},
		bson.M{"$set": bson.M{"status": status, "update_time": time.Now()}},
	)
	if err != nil {
		return errs.WrapMsg(err, "update user status", "uid", uid)
	}
	if res.MatchedCount == 0 {
		return errs.ErrUserNotExist.WrapMsg("", "uid", uid)
	}
	return nil
}

// LoadAuthUser 给鉴权中间件用的用户加载器
func (s *Service) LoadAuthUser(ctx context.Context, uid int64) (*midsec.AuthUser, error) {
	u, err := s.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return &midsec.AuthUser{ID: u.ID, Status: u.Status, Role: u.Role}, nil
}
