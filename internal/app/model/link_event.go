package model

import "time"

// LinkEventType names a change applied to a stored link.
type LinkEventType string

const (
	LinkCreated LinkEventType = "created"
	LinkRenamed LinkEventType = "renamed"
	LinkDeleted LinkEventType = "deleted"
)

// LinkEvent is the audit record published on every link mutation.
type LinkEvent struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	Type        LinkEventType `json:"type" gorm:"size:16;not null"`
	LinkID      int64         `json:"link_id" gorm:"not null;index"`
	OwnerID     int64         `json:"owner_id" gorm:"not null;index"`
	OriginalURL string        `json:"original_url" gorm:"type:text"`
	ShortURL    string        `json:"short_url" gorm:"type:text"`
	Title       string        `json:"title" gorm:"size:100"`
	Timestamp   time.Time     `json:"timestamp" gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (LinkEvent) TableName() string { return "link_events" }

const (
	LinkEventStreamName     = "LINKS"
	LinkEventStreamSubject  = "links.events"
	LinkEventConsumerName   = "link-auditor"
	LinkEventStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
