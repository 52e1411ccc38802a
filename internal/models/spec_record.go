package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileType is the coarse document category derived from the file extension.
type FileType string

const (
	FileTypePDF  FileType = "PDF"
	FileTypeXLSX FileType = "XLSX"
	FileTypeZIP  FileType = "ZIP"
	FileTypeETC  FileType = "ETC"
)

// FileTypeOf buckets a file name by extension. Unknown extensions map to ETC.
func FileTypeOf(fileName string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(fileName)), "."))
	switch ext {
	case "pdf":
		return FileTypePDF
	case "xls", "xlsx":
		return FileTypeXLSX
	case "zip", "rar", "7z":
		return FileTypeZIP
	default:
		return FileTypeETC
	}
}

// SpecRecord is a committed specification entry in the catalog.
// ID is shared with the blob store entry holding the original bytes; the blob
// store is the authoritative source for those bytes, DownloadLink is a
// placeholder for front-end compatibility. A record is immutable after commit
// except for deletion.
type SpecRecord struct {
	ID           string      `json:"id"           gorm:"type:char(36);primaryKey"    bson:"id"`
	FileName     string      `json:"fileName"     gorm:"not null"                    bson:"file_name"`
	FilePath     string      `json:"filePath"     bson:"file_path"`
	FileType     FileType    `json:"fileType"     gorm:"type:varchar(16)"            bson:"file_type"`
	Summary      string      `json:"summary"      gorm:"type:longtext"               bson:"summary"`
	Keywords     StringArray `json:"keywords"     gorm:"type:longtext"               bson:"keywords"`
	DownloadLink string      `json:"downloadLink" bson:"download_link"`
	CreatedAt    time.Time   `json:"createdAt"    bson:"created_at"`
}

func (SpecRecord) TableName() string { return "spec_records" }

func (r *SpecRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}
