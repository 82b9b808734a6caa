package database

import "time"

// userRecord is the users table.
type userRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"uniqueIndex;not null;size:255"`
	Verifier  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

// ownershipRecord is the file_owners table, keyed by sandbox-relative path.
type ownershipRecord struct {
	Path      string `gorm:"primaryKey;size:1024"`
	Username  string `gorm:"index;not null;size:255"`
	UpdatedAt time.Time
}

func (ownershipRecord) TableName() string { return "file_owners" }

func allModels() []any {
	return []any{&userRecord{}, &ownershipRecord{}}
}
