package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Register_ReturnsAssignedUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mutate", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("commitNow"))

		var body struct {
			Set []map[string]any `json:"set"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Set, 1)
		assert.Equal(t, "User", body.Set[0]["dgraph.type"])
		assert.Equal(t, "_:uid", body.Set[0]["uid"])
		assert.Equal(t, "bob", body.Set[0]["name"])
		assert.EqualValues(t, 7, body.Set[0]["user_id"])

		fmt.Fprint(w, `{"data":{"code":"Success","message":"Done","uids":{"uid":"0x4e2d"}},"extensions":{"txn":{"start_ts":1}}}`)
	}))
	defer srv.Close()

	uid, err := New(srv.URL).Register(context.Background(), UserNode{UserID: 7, Name: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "0x4e2d", uid)
}

func TestClient_SetFriendship_TwoMutatesOneCommit(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mutate":
			var body struct {
				Set []struct {
					UID    string `json:"uid"`
					Friend []struct {
						UID string `json:"uid"`
					} `json:"friend"`
				} `json:"set"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Set, 1)

			if r.URL.Query().Get("startTs") == "" {
				calls = append(calls, "mutate-open")
				assert.Equal(t, "0x1", body.Set[0].UID)
				assert.Equal(t, "0x2", body.Set[0].Friend[0].UID)
				fmt.Fprint(w, `{"data":{"code":"Success"},"extensions":{"txn":{"start_ts":100,"keys":["k1"],"preds":["p1"]}}}`)
				return
			}
			calls = append(calls, "mutate-join")
			assert.Equal(t, "100", r.URL.Query().Get("startTs"))
			assert.Equal(t, "0x2", body.Set[0].UID)
			assert.Equal(t, "0x1", body.Set[0].Friend[0].UID)
			fmt.Fprint(w, `{"data":{"code":"Success"},"extensions":{"txn":{"start_ts":100,"keys":["k1","k2"],"preds":["p1","p2"]}}}`)
		case "/commit":
			calls = append(calls, "commit")
			assert.Equal(t, "100", r.URL.Query().Get("startTs"))
			var body struct {
				Keys  []string `json:"keys"`
				Preds []string `json:"preds"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, []string{"k1", "k2"}, body.Keys)
			assert.Equal(t, []string{"p1", "p2"}, body.Preds)
			fmt.Fprint(w, `{"data":{"code":"Success"},"extensions":{"txn":{"start_ts":100,"commit_ts":101}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).SetFriendship(context.Background(), "0x1", "0x2"))
	assert.Equal(t, []string{"mutate-open", "mutate-join", "commit"}, calls)
}

func TestClient_SetFriendship_MissingTxnKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 事务信息不带 keys，提交应失败
		fmt.Fprint(w, `{"data":{"code":"Success"},"extensions":{"txn":{"start_ts":100}}}`)
	}))
	defer srv.Close()

	err := New(srv.URL).SetFriendship(context.Background(), "0x1", "0x2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未找到事务")
}

func TestClient_GetFriends_ParsesNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, "application/dql", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `uid("0x1")`)

		fmt.Fprint(w, `{"data":{"user":[{"uid":"0x1","user_id":3,"name":"andy","loc":{"type":"Point","coordinates":[121.5,31.2]},"friend":[{"uid":"0x2","user_id":4,"name":"bob"}]}]}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	node, err := c.GetFriends(context.Background(), "0x1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "andy", node.Name)
	assert.EqualValues(t, 3, node.UserID)
	require.NotNil(t, node.Loc)
	assert.Equal(t, "Point", node.Loc.Type)
	assert.Equal(t, []float64{121.5, 31.2}, node.Loc.Coordinates)
	require.Len(t, node.Friend, 1)
	assert.EqualValues(t, 4, node.Friend[0].UserID)

	ok, err := c.IsFriend(context.Background(), "0x1", 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsFriend(context.Background(), "0x1", 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_IsFriend_EmptyGraphUID(t *testing.T) {
	// 不应发起任何请求
	c := New("http://127.0.0.1:1")
	ok, err := c.IsFriend(context.Background(), "", 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Nearby_BuildsNearQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "near(loc, [121.5,31.2], 300)")
		fmt.Fprint(w, `{"data":{"nearby":[{"uid":"0x9","user_id":12,"name":"carol"}]}}`)
	}))
	defer srv.Close()

	users, err := New(srv.URL).Nearby(context.Background(), 121.5, 31.2, 300)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.EqualValues(t, 12, users[0].UserID)
	assert.Equal(t, "carol", users[0].Name)
}
