package types

import "time"

// UniqueList is a published, versioned, time-bounded set of validators a
// publisher vouches for as jointly trustworthy (a UNL). Lists are
// immutable after publication except for the active flag, which is
// cleared on expiry or by governance action.
type UniqueList struct {
	ID          Hash          `json:"id"` // content hash of (publisher, name, members, version)
	Publisher   ValidatorID   `json:"publisher"`
	Name        string        `json:"name"`
	Version     uint64        `json:"version"`
	PublishedAt time.Time     `json:"publishedAt"`
	ActivatesAt time.Time     `json:"activatesAt"`
	ExpiresAt   time.Time     `json:"expiresAt"`
	Members     []ValidatorID `json:"members"`
	Active      bool          `json:"active"`
}

// Contains reports whether id is a member of the list.
func (l *UniqueList) Contains(id ValidatorID) bool {
	for _, m := range l.Members {
		if m == id {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the list has passed its expiration at now.
func (l *UniqueList) ExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
