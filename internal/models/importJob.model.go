package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
	ImportStatusCancelled  ImportStatus = "cancelled"
)

// MaxStoredItemErrors caps the per-item error sample kept on a job.
const MaxStoredItemErrors = 100

// IsTerminal reports whether no further transition is possible.
func (s ImportStatus) IsTerminal() bool {
	switch s {
	case ImportStatusCompleted, ImportStatusFailed, ImportStatusCancelled:
		return true
	default:
		return false
	}
}

// ImportJob is one execution of the catalog import for one uploaded feed.
type ImportJob struct {
	BaseUUIDModel
	FileName       string                               `gorm:"type:text;not null"                     json:"fileName"`
	FilePath       string                               `gorm:"type:text;not null"                     json:"-"`
	FileSize       int64                                `gorm:"type:bigint;not null;default:0"         json:"fileSize"`
	TraceID        string                               `gorm:"type:varchar(64);index"                 json:"traceId,omitempty"`
	Status         ImportStatus                         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Progress       int                                  `gorm:"type:int;not null;default:0"            json:"progress"`
	TotalItems     int                                  `gorm:"type:int;not null;default:0"            json:"totalItems"`
	ItemsProcessed int                                  `gorm:"type:int;not null;default:0"            json:"itemsProcessed"`
	Stats          datatypes.JSONType[ImportStats]      `json:"stats"`
	ItemErrors     datatypes.JSONSlice[ImportItemError] `json:"itemErrors"`
	Error          *string                              `gorm:"type:text"                              json:"error,omitempty"`
	Duration       *float64                             `json:"duration,omitempty"`
	StartedAt      *time.Time                           `json:"startedAt,omitempty"`
	CompletedAt    *time.Time                           `json:"completedAt,omitempty"`
}

// ImportStats are the per-job counters. Reference counts are distinct entities the job
// resolved; the *Created counters are the subset that did not exist before.
type ImportStats struct {
	TotalProducts     int `json:"totalProducts"`
	ImportedProducts  int `json:"importedProducts"`
	CreatedProducts   int `json:"createdProducts"`
	UpdatedProducts   int `json:"updatedProducts"`
	CategoriesCount   int `json:"categoriesCount"`
	ProducersCount    int `json:"producersCount"`
	UnitsCount        int `json:"unitsCount"`
	CategoriesCreated int `json:"categoriesCreated"`
	ProducersCreated  int `json:"producersCreated"`
	UnitsCreated      int `json:"unitsCreated"`
	VariantsCount     int `json:"variantsCount"`
	PricesCount       int `json:"pricesCount"`
	ImagesCount       int `json:"imagesCount"`
	DocumentsCount    int `json:"documentsCount"`
	PropertiesCount   int `json:"propertiesCount"`
	ErrorsCount       int `json:"errorsCount"`
}

type ImportItemError struct {
	Position int    `json:"position"`
	Line     int    `json:"line,omitempty"`
	Key      string `json:"key,omitempty"`
	Reason   string `json:"reason"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}
