package model

import "time"

const (
	// MaxTitleLength bounds titles and captions, counted in characters.
	MaxTitleLength = 100

	// DefaultTitle is stored when the user skips the title prompt.
	DefaultTitle = "Untitled"
)

// Link is a shortened URL owned by one chat user.
//
// (OwnerID, OriginalURL) is unique; only Title changes after creation.
type Link struct {
	ID          int64     `db:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     int64     `db:"owner_id" gorm:"not null;uniqueIndex:ux_links_owner_url,priority:1;index:idx_links_owner"`
	OriginalURL string    `db:"original_url" gorm:"type:text;not null;uniqueIndex:ux_links_owner_url,priority:2"`
	ShortURL    string    `db:"short_url" gorm:"type:text;not null"`
	Title       string    `db:"title" gorm:"size:100;not null"`
	ProviderKey string    `db:"provider_key" gorm:"size:64;not null"`
	CreatedAt   time.Time `db:"created_at" gorm:"autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (Link) TableName() string { return "links" }

// DisplayTitle returns the title or the placeholder when it is empty.
func (l Link) DisplayTitle() string {
	if l.Title == "" {
		return DefaultTitle
	}
	return l.Title
}
