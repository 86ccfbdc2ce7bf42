// 包 migrate：归档库表结构初始化
package migrate

import (
	"database/sql"

	"daycare-map/internal/logger"
)

// EnsureSchema：首次运行自动创建归档所需表与索引
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _daycare_runs (
            id SERIAL PRIMARY KEY,
            fetched_at TIMESTAMPTZ NOT NULL,
            api_reported_count INT,
            centers INT NOT NULL,
            unmatched INT NOT NULL,
            changed BOOLEAN NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS _daycare_centers (
            id INT PRIMARY KEY,
            name TEXT NOT NULL,
            district TEXT NOT NULL,
            address TEXT NOT NULL,
            phone TEXT NOT NULL,
            lat DOUBLE PRECISION,
            lng DOUBLE PRECISION,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS _daycare_grades (
            center_id INT NOT NULL,
            year TEXT NOT NULL,
            grade TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (center_id, year)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_daycare_grades_year ON _daycare_grades(year)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
