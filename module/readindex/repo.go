package readindex

import (
	"context"

	"IMProject/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo read_index 的存取。拆成四个 upsert 是因为回执方与旁观方
// 允许更新的列不同：回执方动 mid，旁观方只动 latest 两列。
type Repo interface {
	UpsertActingDM(ctx context.Context, uid, targetUID, mid int64) error
	UpsertPeerDM(ctx context.Context, uid, targetUID, latestMid, uidOfLatest int64) error
	UpsertActingGroup(ctx context.Context, uid, gid, mid int64) error
	UpsertMemberGroup(ctx context.Context, uid, gid, latestMid, uidOfLatest int64) error
	ListByUID(ctx context.Context, uid int64) ([]Row, error)
}

type PgRepo struct {
	pool *pgxpool.Pool
}

func NewPgRepo(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

var _ Repo = (*PgRepo)(nil)

// EnsureSchema 建表与两条部分唯一索引（uid+会话 维度各一条）
func (r *PgRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS read_index (
			id bigserial PRIMARY KEY,
			uid bigint NOT NULL,
			target_uid bigint,
			target_gid bigint,
			mid bigint,
			latest_mid bigint NOT NULL,
			uid_of_latest_msg bigint NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS read_index_uid_target_uid
			ON read_index (uid, target_uid) WHERE target_uid IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS read_index_uid_target_gid
			ON read_index (uid, target_gid) WHERE target_gid IS NOT NULL`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return errs.WrapMsg(err, "ensure read_index schema")
		}
	}
	return nil
}

func (r *PgRepo) UpsertActingDM(ctx context.Context, uid, targetUID, mid int64) error {
	const q = `INSERT INTO read_index (uid, target_uid, mid, latest_mid, uid_of_latest_msg)
		VALUES ($1, $2, $3, $3, $1)
		ON CONFLICT (uid, target_uid) WHERE target_uid IS NOT NULL
		DO UPDATE SET mid = EXCLUDED.mid, latest_mid = EXCLUDED.latest_mid,
			uid_of_latest_msg = EXCLUDED.uid_of_latest_msg`
	_, err := r.pool.Exec(ctx, q, uid, targetUID, mid)
	return errs.Wrap(err)
}

func (r *PgRepo) UpsertPeerDM(ctx context.Context, uid, targetUID, latestMid, uidOfLatest int64) error {
	const q = `INSERT INTO read_index (uid, target_uid, mid, latest_mid, uid_of_latest_msg)
		VALUES ($1, $2, NULL, $3, $4)
		ON CONFLICT (uid, target_uid) WHERE target_uid IS NOT NULL
		DO UPDATE SET latest_mid = EXCLUDED.latest_mid,
			uid_of_latest_msg = EXCLUDED.uid_of_latest_msg`
	_, err := r.pool.Exec(ctx, q, uid, targetUID, latestMid, uidOfLatest)
	return errs.Wrap(err)
}

func (r *PgRepo) UpsertActingGroup(ctx context.Context, uid, gid, mid int64) error {
	const q = `INSERT INTO read_index (uid, target_gid, mid, latest_mid, uid_of_latest_msg)
		VALUES ($1, $2, $3, $3, $1)
		ON CONFLICT (uid, target_gid) WHERE target_gid IS NOT NULL
		DO UPDATE SET mid = EXCLUDED.mid, latest_mid = EXCLUDED.latest_mid,
			uid_of_latest_msg = EXCLUDED.uid_of_latest_msg`
	_, err := r.pool.Exec(ctx, q, uid, gid, mid)
	return errs.Wrap(err)
}

func (r *PgRepo) UpsertMemberGroup(ctx context.Context, uid, gid, latestMid, uidOfLatest int64) error {
	const q = `INSERT INTO read_index (uid, target_gid, mid, latest_mid, uid_of_latest_msg)
		VALUES ($1, $2, NULL, $3, $4)
		ON CONFLICT (uid, target_gid) WHERE target_gid IS NOT NULL
		DO UPDATE SET latest_mid = EXCLUDED.latest_mid,
			uid_of_latest_msg = EXCLUDED.uid_of_latest_msg`
	_, err := r.pool.Exec(ctx, q, uid, gid, latestMid, uidOfLatest)
	return errs.Wrap(err)
}

// ListByUID 取用户全部会话行，按最新消息倒序
func (r *PgRepo) ListByUID(ctx context.Context, uid int64) ([]Row, error) {
	const q = `SELECT id, uid, target_uid, target_gid, mid, latest_mid, uid_of_latest_msg
		FROM read_index WHERE uid = $1 ORDER BY latest_mid DESC`
	rows, err := r.pool.Query(ctx, q, uid)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.UID, &row.TargetUID, &row.TargetGID,
			&row.Mid, &row.LatestMid, &row.UIDOfLatestMsg); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, row)
	}
	return out, errs.Wrap(rows.Err())
}
