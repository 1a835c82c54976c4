package graph

// 基于 dgraph 原生 HTTP 接口（/mutate /query /commit）的轻量客户端。
// 好友建边是双向两条边，需在同一事务内写完再提交，其余操作都走 commitNow。

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"IMProject/tools/errs"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	base string
	http *resty.Client
}

func New(addr string) *Client {
	if addr == "" {
		addr = "http://localhost:8080"
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: resty.New().SetTimeout(5 * time.Second),
	}
}

// UserNode 图里的用户节点，user_id 关联主库用户ID
type UserNode struct {
	UID    string  `json:"uid"`
	UserID int64   `json:"user_id"`
	Name   string  `json:"name"`
	Phone  *string `json:"phone,omitempty"`
}

// GeoPoint GeoJSON 点，coordinates 顺序是 [经度, 纬度]
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// FriendNode 带好友边与位置的用户节点
type FriendNode struct {
	UID    string     `json:"uid"`
	UserID int64      `json:"user_id"`
	Name   string     `json:"name"`
	Loc    *GeoPoint  `json:"loc,omitempty"`
	Friend []UserNode `json:"friend,omitempty"`
}

// ===== 响应信封 =====

type mutateData struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	UIDs    map[string]string `json:"uids"`
}

type txnInfo struct {
	StartTs  int64    `json:"start_ts"`
	CommitTs *int64   `json:"commit_ts"`
	Keys     []string `json:"keys"`
	Preds    []string `json:"preds"`
}

type extensions struct {
	Txn txnInfo `json:"txn"`
}

type apiError struct {
	Message string `json:"message"`
}

type mutateRes struct {
	Data       mutateData `json:"data"`
	Extensions extensions `json:"extensions"`
	Errors     []apiError `json:"errors"`
}

// Register 以空白节点写入用户，返回分配的图节点ID
func (c *Client) Register(ctx context.Context, node UserNode) (string, error) {
	body := map[string]any{
		"set": []map[string]any{{
			"name":        node.Name,
			"user_id":     node.UserID,
			"phone":       node.Phone,
			"dgraph.type": "User",
			"uid":         "_:uid",
		}},
	}
	var res mutateRes
	if err := c.postJSON(ctx, c.base+"/mutate?commitNow=true", body, &res); err != nil {
		return "", err
	}
	if err := firstError(res.Errors); err != nil {
		return "", err
	}
	uid, ok := res.Data.UIDs["uid"]
	if !ok || uid == "" {
		return "", errs.New("fail to set user")
	}
	return uid, nil
}

// SetFriendship 在同一事务内写入双向好友边并提交
func (c *Client) SetFriendship(ctx context.Context, uid1, uid2 string) error {
	// 开启事务
	txn, err := c.mutateEdge(ctx, c.base+"/mutate", uid1, uid2)
	if err != nil {
		return err
	}
	// 加入事务
	url := fmt.Sprintf("%s/mutate?startTs=%d", c.base, txn.StartTs)
	txn, err = c.mutateEdge(ctx, url, uid2, uid1)
	if err != nil {
		return err
	}
	return c.commit(ctx, txn)
}

func (c *Client) mutateEdge(ctx context.Context, url, from, to string) (txnInfo, error) {
	body := map[string]any{
		"set": []map[string]any{{
			"uid":    from,
			"friend": []map[string]any{{"uid": to}},
		}},
	}
	var res mutateRes
	if err := c.postJSON(ctx, url, body, &res); err != nil {
		return txnInfo{}, err
	}
	if err := firstError(res.Errors); err != nil {
		return txnInfo{}, err
	}
	return res.Extensions.Txn, nil
}

func (c *Client) commit(ctx context.Context, txn txnInfo) error {
	if len(txn.Keys) == 0 || len(txn.Preds) == 0 {
		return errs.New("未找到事务")
	}
	url := fmt.Sprintf("%s/commit?startTs=%d", c.base, txn.StartTs)
	body := map[string]any{"keys": txn.Keys, "preds": txn.Preds}
	var res mutateRes
	if err := c.postJSON(ctx, url, body, &res); err != nil {
		return err
	}
	return firstError(res.Errors)
}

// GetFriends 查询节点及其好友边，节点不存在时返回 nil
func (c *Client) GetFriends(ctx context.Context, dgraphUID string) (*FriendNode, error) {
	query := fmt.Sprintf(`
    {
        user(func: uid(%q)) {
            uid
            name
            user_id
            loc
            friend {
                uid
                name
                user_id
            }
        }
    }`, dgraphUID)
	var res struct {
		Data struct {
			User []FriendNode `json:"user"`
		} `json:"data"`
		Errors []apiError `json:"errors"`
	}
	if err := c.postDQL(ctx, query, &res); err != nil {
		return nil, err
	}
	if err := firstError(res.Errors); err != nil {
		return nil, err
	}
	if len(res.Data.User) == 0 {
		return nil, nil
	}
	return &res.Data.User[0], nil
}

// IsFriend 判断 userID 是否在 dgraphUID 的好友边上；无图节点视为非好友
func (c *Client) IsFriend(ctx context.Context, dgraphUID string, userID int64) (bool, error) {
	if dgraphUID == "" {
		return false, nil
	}
	node, err := c.GetFriends(ctx, dgraphUID)
	if err != nil {
		return false, err
	}
	if node == nil {
		return false, nil
	}
	for _, f := range node.Friend {
		if f.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// SetLoc 更新节点位置（Point，[经度, 纬度]）
func (c *Client) SetLoc(ctx context.Context, dgraphUID string, long, lat float64) error {
	body := map[string]any{
		"set": []map[string]any{{
			"uid": dgraphUID,
			"loc": GeoPoint{Type: "Point", Coordinates: []float64{long, lat}},
		}},
	}
	var res mutateRes
	if err := c.postJSON(ctx, c.base+"/mutate?commitNow=true", body, &res); err != nil {
		return err
	}
	return firstError(res.Errors)
}

// Nearby 以 near 函数查半径 radius 米内的节点
func (c *Client) Nearby(ctx context.Context, long, lat float64, radius int) ([]UserNode, error) {
	query := fmt.Sprintf(`
    {
        nearby(func: near(loc, [%v,%v], %d) ) {
            uid
            name
            user_id
        }
    }`, long, lat, radius)
	var res struct {
		Data struct {
			Nearby []UserNode `json:"nearby"`
		} `json:"data"`
		Errors []apiError `json:"errors"`
	}
	if err := c.postDQL(ctx, query, &res); err != nil {
		return nil, err
	}
	if err := firstError(res.Errors); err != nil {
		return nil, err
	}
	return res.Data.Nearby, nil
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return errs.WrapMsg(err, "dgraph request failed", "url", url)
	}
	return c.decode(resp, url, out)
}

func (c *Client) postDQL(ctx context.Context, query string, out any) error {
	url := c.base + "/query"
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/dql").
		SetBody(query).
		Post(url)
	if err != nil {
		return errs.WrapMsg(err, "dgraph query failed", "url", url)
	}
	return c.decode(resp, url, out)
}

func (c *Client) decode(resp *resty.Response, url string, out any) error {
	if resp.IsError() {
		return errs.New("dgraph http error", "url", url, "status", resp.Status())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errs.WrapMsg(err, "decode dgraph response", "url", url)
	}
	return nil
}

// firstError 取信封 errors 里的首条
func firstError(es []apiError) error {
	if len(es) == 0 {
		return nil
	}
	return errs.New("dgraph error", "message", es[0].Message)
}
