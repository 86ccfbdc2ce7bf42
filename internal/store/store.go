// 包 store：快照归档的数据访问层；JSON 文件是权威产物，库内只是可查询副本
package store

import (
	"context"
	"database/sql"
	"time"

	"daycare-map/internal/logger"
	"daycare-map/internal/snapshot"

	_ "github.com/lib/pq"
)

// Store：归档库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close：关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// RecordRun：写入一行运行摘要
func (s *Store) RecordRun(ctx context.Context, fetchedAt time.Time, doc *snapshot.Document, changed bool) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO _daycare_runs(fetched_at, api_reported_count, centers, unmatched, changed)
        VALUES($1,$2,$3,$4,$5)`,
		fetchedAt, doc.Meta.APIReportedCount, len(doc.Centers), doc.Meta.UnmatchedCount, changed)
	return err
}

// UpsertCenters：把本轮快照的中心与逐年评鉴同步进归档表
// 约束：按主键覆盖写入，不删除历史行；单条失败记日志后继续，归档永不影响主产物
func (s *Store) UpsertCenters(ctx context.Context, centers []snapshot.Center) error {
	for _, c := range centers {
		_, err := s.db.ExecContext(ctx, `INSERT INTO _daycare_centers(id, name, district, address, phone, lat, lng, updated_at)
            VALUES($1,$2,$3,$4,$5,$6,$7,now())
            ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, district=EXCLUDED.district, address=EXCLUDED.address,
                phone=EXCLUDED.phone, lat=EXCLUDED.lat, lng=EXCLUDED.lng, updated_at=now()`,
			c.ID, c.Name, c.District, c.Address, c.Phone, c.Lat, c.Lng)
		if err != nil {
			logger.L().Error("archive_center_error", "id", c.ID, "err", err)
			continue
		}
		for yr, grade := range c.EvaluationByYear {
			_, err := s.db.ExecContext(ctx, `INSERT INTO _daycare_grades(center_id, year, grade, updated_at)
                VALUES($1,$2,$3,now())
                ON CONFLICT (center_id, year) DO UPDATE SET grade=EXCLUDED.grade, updated_at=now()`,
				c.ID, yr, grade)
			if err != nil {
				logger.L().Error("archive_grade_error", "id", c.ID, "year", yr, "err", err)
			}
		}
	}
	return nil
}
