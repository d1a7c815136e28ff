package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertByNaturalKey inserts row unless a row with the same natural key already exists,
// soft deleted rows included. An existing row gets updates applied, is restored, and is
// loaded back into row. The insert is ON CONFLICT DO NOTHING so two jobs racing on the
// same key both succeed; the loser simply takes the update path.
func upsertByNaturalKey[T any](
	db *gorm.DB,
	row *T,
	conflictColumns []string,
	key map[string]any,
	updates map[string]any,
) (bool, error) {
	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, name := range conflictColumns {
		columns = append(columns, clause.Column{Name: name})
	}

	result := db.Clauses(clause.OnConflict{Columns: columns, DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	updates["deleted_at"] = nil
	updates["updated_at"] = time.Now()
	if err := db.Unscoped().Model(new(T)).Where(key).Updates(updates).Error; err != nil {
		return false, err
	}

	var existing T
	if err := db.Unscoped().Where(key).First(&existing).Error; err != nil {
		return false, err
	}
	*row = existing

	return false, nil
}
