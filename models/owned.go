package models

import "time"

// Owned carries the fields shared by every user-scoped record: an opaque
// store-assigned string id, the owning user's id, and a creation
// timestamp used as the default sort key.
type Owned struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"index;size:36;not null" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SetIdentity stamps the record with its store-assigned id, owner and
// creation time. An existing CreatedAt is preserved.
func (o *Owned) SetIdentity(id, owner string, at time.Time) {
	o.ID = id
	o.OwnerID = owner
	if o.CreatedAt.IsZero() {
		o.CreatedAt = at
	}
}

// RecordID returns the store-assigned id.
func (o *Owned) RecordID() string { return o.ID }

// RecordOwner returns the owning user's id.
func (o *Owned) RecordOwner() string { return o.OwnerID }

// DayKey buckets a moment into its calendar date in that moment's
// location. A record written at 23:59 and checked at 00:01 lands in a
// different bucket on purpose.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
