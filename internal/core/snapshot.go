package core

import (
	"errors"
	"slices"
	"time"

	"github.com/dkeye/Poker/internal/domain"
)

var ErrBadSnapshot = errors.New("bad room snapshot")

// Snapshot is the persisted form of a Room. Connections are not persisted.
type Snapshot struct {
	ID             domain.RoomID        `json:"id"`
	CreatedAt      time.Time            `json:"createdAt"`
	OwnerID        domain.UserID        `json:"ownerID"`
	OwnerPublicID  domain.PublicUserID  `json:"ownerPublicID,omitempty"`
	OwnerName      string               `json:"ownerName"`
	Rounds         []RoundSnapshot      `json:"rounds"`
	DefaultOptions []domain.RoundOption `json:"defaultOptions"`
	ChatMessages   []ChatSnapshot       `json:"chatMessages"`
}

type RoundSnapshot struct {
	ID           domain.RoundID       `json:"id"`
	Options      []domain.RoundOption `json:"options"`
	Results      []domain.RoundResult `json:"results"`
	FinalResult  *domain.FinalResults `json:"finalResult,omitempty"`
	IsInProgress bool                 `json:"isInProgress"`
}

type ChatSnapshot struct {
	Text           string              `json:"text"`
	AuthorPublicID domain.PublicUserID `json:"authorPublicID,omitempty"`
	SentAt         time.Time           `json:"sentAt"`
}

// Snapshot captures the room state. It returns false once the room is disposed.
func (r *Room) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disposed {
		return Snapshot{}, false
	}
	s := Snapshot{
		ID:             r.id,
		CreatedAt:      r.createdAt,
		OwnerID:        r.ownerID,
		OwnerPublicID:  r.ownerPublicID,
		OwnerName:      r.ownerName,
		Rounds:         make([]RoundSnapshot, 0, len(r.rounds)),
		DefaultOptions: slices.Clone(r.defaultOptions),
		ChatMessages:   make([]ChatSnapshot, 0, len(r.chat)),
	}
	for _, rd := range r.rounds {
		rs := RoundSnapshot{
			ID:           rd.id,
			Options:      slices.Clone(rd.options),
			Results:      slices.Clone(rd.results),
			IsInProgress: rd.inProgress,
		}
		if rd.finalResults != nil {
			fr := *rd.finalResults
			rs.FinalResult = &fr
		}
		s.Rounds = append(s.Rounds, rs)
	}
	for _, m := range r.chat {
		s.ChatMessages = append(s.ChatMessages, ChatSnapshot{
			Text:           m.Text,
			AuthorPublicID: m.AuthorPublicID,
			SentAt:         m.SentAt,
		})
	}
	return s, true
}

// RestoreRoom rebuilds a room from its snapshot. The restored room counts as
// freshly active so that returning clients have time to reconnect. Only the last
// round may stay in progress; a snapshot ending in a finished round gets a fresh one.
func RestoreRoom(s Snapshot, opts Options) (*Room, error) {
	if s.ID == "" || s.OwnerID == "" {
		return nil, ErrBadSnapshot
	}
	r := NewRoom(s.ID, s.OwnerID, s.OwnerName, opts)
	r.createdAt = s.CreatedAt
	r.ownerPublicID = s.OwnerPublicID
	if s.DefaultOptions != nil {
		r.defaultOptions = slices.Clone(s.DefaultOptions)
	}

	r.rounds = make([]*Round, 0, len(s.Rounds)+1)
	for i, rs := range s.Rounds {
		rd := &Round{
			id:         rs.ID,
			options:    slices.Clone(rs.Options),
			results:    slices.Clone(rs.Results),
			inProgress: rs.IsInProgress,
		}
		if rd.results == nil {
			rd.results = []domain.RoundResult{}
		}
		if rs.FinalResult != nil {
			fr := *rs.FinalResult
			rd.finalResults = &fr
		}
		if rd.inProgress && i < len(s.Rounds)-1 {
			rd.finish()
		}
		r.rounds = append(r.rounds, rd)
	}
	if len(r.rounds) == 0 || !r.lastRound().inProgress {
		r.rounds = append(r.rounds, newRound(r.defaultOptions))
	}

	r.chat = make([]domain.ChatMessage, 0, len(s.ChatMessages))
	for _, m := range s.ChatMessages {
		r.chat = append(r.chat, domain.ChatMessage{Text: m.Text, AuthorPublicID: m.AuthorPublicID, SentAt: m.SentAt})
	}
	return r, nil
}
