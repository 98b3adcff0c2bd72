package domain

import "github.com/google/uuid"

// DefaultOptionNames is the option set every new room starts with.
var DefaultOptionNames = []string{"0", "1", "2", "3", "5", "8", "13"}

// RoundOption is immutable once created. Changing the set means new options with new ids.
type RoundOption struct {
	ID   OptionID `json:"id"`
	Name string   `json:"name"`
}

func NewRoundOption(name string) RoundOption {
	return RoundOption{ID: OptionID(uuid.NewString()), Name: name}
}

func NewRoundOptions(names []string) []RoundOption {
	out := make([]RoundOption, 0, len(names))
	for _, n := range names {
		out = append(out, NewRoundOption(n))
	}
	return out
}

// RoundResult is one participant's vote. Vote is free-form text.
type RoundResult struct {
	UserID       UserID       `json:"userID"`
	PublicUserID PublicUserID `json:"publicUserID"`
	Username     string       `json:"username"`
	Vote         string       `json:"vote"`
}

// FinalResults are frozen when a round finishes. Values are preformatted strings or "N/A".
type FinalResults struct {
	Votes  int    `json:"votes"`
	Mean   string `json:"mean"`
	Median string `json:"median"`
	Mode   string `json:"mode"`
}

const NotAvailable = "N/A"
