package readindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	calls []string
}

func (f *fakeRepo) UpsertActingDM(_ context.Context, uid, targetUID, mid int64) error {
	f.calls = append(f.calls, fmt.Sprintf("acting-dm uid=%d target=%d mid=%d", uid, targetUID, mid))
	return nil
}

func (f *fakeRepo) UpsertPeerDM(_ context.Context, uid, targetUID, latestMid, uidOfLatest int64) error {
	f.calls = append(f.calls, fmt.Sprintf("peer-dm uid=%d target=%d latest=%d by=%d", uid, targetUID, latestMid, uidOfLatest))
	return nil
}

func (f *fakeRepo) UpsertActingGroup(_ context.Context, uid, gid, mid int64) error {
	f.calls = append(f.calls, fmt.Sprintf("acting-group uid=%d gid=%d mid=%d", uid, gid, mid))
	return nil
}

func (f *fakeRepo) UpsertMemberGroup(_ context.Context, uid, gid, latestMid, uidOfLatest int64) error {
	f.calls = append(f.calls, fmt.Sprintf("member-group uid=%d gid=%d latest=%d by=%d", uid, gid, latestMid, uidOfLatest))
	return nil
}

func (f *fakeRepo) ListByUID(context.Context, int64) ([]Row, error) { return nil, nil }

type fakeMembers struct {
	uids []int64
	err  error
}

func (f *fakeMembers) GetUIDs(context.Context, int64) ([]int64, error) {
	return f.uids, f.err
}

func TestSetReadIndex_DMUpdatesBothRows(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeMembers{})

	err := svc.SetReadIndex(context.Background(), 1, Update{User: &UserUpdate{TargetUID: 2, Mid: 9}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"acting-dm uid=1 target=2 mid=9",
		"peer-dm uid=2 target=1 latest=9 by=1",
	}, repo.calls)
}

func TestSetReadIndex_GroupFansOutLatest(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, &fakeMembers{uids: []int64{1, 2, 3}})

	err := svc.SetReadIndex(context.Background(), 1, Update{Group: &GroupUpdate{TargetGID: 5, Mid: 12}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"acting-group uid=1 gid=5 mid=12",
		"member-group uid=2 gid=5 latest=12 by=1",
		"member-group uid=3 gid=5 latest=12 by=1",
	}, repo.calls)
}

func TestSetReadIndex_MemberLookupFailureAborts(t *testing.T) {
	repo := &fakeRepo{}
	boom := errors.New("membership unavailable")
	svc := NewService(repo, &fakeMembers{err: boom})

	err := svc.SetReadIndex(context.Background(), 1, Update{Group: &GroupUpdate{TargetGID: 5, Mid: 12}})
	require.ErrorIs(t, err, boom)

	// 回执方行已写，成员行一条都不该有
	assert.Equal(t, []string{"acting-group uid=1 gid=5 mid=12"}, repo.calls)
}

func TestSetReadIndex_RejectsAmbiguousUpdate(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeMembers{})

	err := svc.SetReadIndex(context.Background(), 1, Update{})
	require.Error(t, err)

	err = svc.SetReadIndex(context.Background(), 1, Update{
		User:  &UserUpdate{TargetUID: 2, Mid: 1},
		Group: &GroupUpdate{TargetGID: 3, Mid: 1},
	})
	require.Error(t, err)
}

func TestUpdate_WireShape(t *testing.T) {
	var up Update
	require.NoError(t, json.Unmarshal([]byte(`{"User":{"target_uid":2,"mid":9}}`), &up))
	require.NotNil(t, up.User)
	assert.Nil(t, up.Group)
	assert.EqualValues(t, 2, up.User.TargetUID)
	assert.EqualValues(t, 9, up.User.Mid)

	up = Update{}
	require.NoError(t, json.Unmarshal([]byte(`{"Group":{"target_gid":5,"mid":12}}`), &up))
	require.NotNil(t, up.Group)
	assert.Nil(t, up.User)
}
