// Package models defines server-side data models persisted in the database.
package models

import "time"

// FileRecord is the metadata of one logical file. The content lives in the
// blob store under StoredID, which is unique and owned by this record.
// (Filename, DirectoryID) is unique.
type FileRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	SizeBytes   int64     `json:"sizeBytes"`
	Extension   string    `json:"extension"`
	ContentType string    `json:"contentType"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"createdAt"`
	CategoryID  string    `json:"categoryId"`
	DirectoryID string    `json:"directoryId"`
	StoredID    string    `json:"storedId"`
	OpenVisible bool      `json:"openVisible"`
	Owners      Grants    `json:"owners"`
}

// Category classifies files, e.g. "invoice" or "contract".
type Category struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
