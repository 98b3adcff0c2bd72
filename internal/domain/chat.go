package domain

import "time"

// ChatMessage without an author is a system message.
type ChatMessage struct {
	Text           string
	AuthorPublicID PublicUserID
	SentAt         time.Time
}

func (m ChatMessage) IsSystem() bool { return m.AuthorPublicID == "" }
