package source

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LoadDatabase reads the redeemer tables from a live database instead of a
// dump. Missing tables are skipped.
func LoadDatabase(db *gorm.DB) (Tables, error) {
	out := Tables{}
	for _, name := range TableNames {
		if !db.Migrator().HasTable(name) {
			continue
		}
		var rows []map[string]any
		if err := db.Table(name).Order("id").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		tr := make([]Row, 0, len(rows))
		for _, m := range rows {
			r := make(Row, len(m))
			for k, v := range m {
				if s, ok := v.(string); ok {
					v = fixDoubleEncoding(s)
				}
				if ts, ok := v.(time.Time); ok {
					v = ts.UTC()
				}
				r[k] = v
			}
			tr = append(tr, r)
		}
		out[name] = tr
	}
	return out, nil
}
