// internal/db/migrations.go
package db

import (
	"fmt"

	"gorm.io/gorm"
)

// MigrateNetworkLookupIndex adds the (family, mask_len) index used when the
// most specific enclosing block is looked up.
func MigrateNetworkLookupIndex(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if db.Migrator().HasIndex("ip_networks", "idx_ip_networks_lookup") {
		return nil
	}
	dialect := db.Dialector.Name()

	switch dialect {
	case "mysql":
		return db.Exec("CREATE INDEX `idx_ip_networks_lookup` ON `ip_networks` (`family`, `mask_len`)").Error

	case "postgres":
		// partial index: soft-deleted blocks never take part in lookups
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_ip_networks_lookup ON "ip_networks" ("family", "mask_len") WHERE "deleted_at" IS NULL`).Error

	case "sqlite":
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_ip_networks_lookup ON ip_networks (family, mask_len)`).Error

	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}
