package collab

import (
	"fmt"
	"time"
)

// Comment is a position-anchored annotation held in session memory only. The
// anchor offset is a snapshot taken at creation time and is never adjusted as
// the document changes, so comments drift as text is edited. Comments are not
// broadcast to other participants and are lost when the session ends.
type Comment struct {
	ID               string `json:"id"`
	AuthorID         string `json:"author_id"`
	AuthorName       string `json:"author_name"`
	Text             string `json:"text"`
	AnchorOffset     int    `json:"anchor_offset"`
	CreatedAtSeconds int64  `json:"created_at_s"`
}

// commentID derives the client-generated identifier from the creation time.
// Not globally unique across participants; uniqueness was never part of the
// contract.
func commentID(at time.Time) string {
	return fmt.Sprintf("comment-%d", at.UnixMilli())
}
