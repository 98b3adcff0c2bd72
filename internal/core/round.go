package core

import (
	"slices"

	"github.com/dkeye/Poker/internal/domain"
	"github.com/dkeye/Poker/internal/protocol"
)

// Round is one estimation pass. It is owned by a Room and guarded by the room lock.
type Round struct {
	id           domain.RoundID
	options      []domain.RoundOption
	results      []domain.RoundResult
	inProgress   bool
	finalResults *domain.FinalResults
}

func newRound(options []domain.RoundOption) *Round {
	return &Round{
		id:         domain.NewRoundID(),
		options:    slices.Clone(options),
		results:    []domain.RoundResult{},
		inProgress: true,
	}
}

func (r *Round) ID() domain.RoundID { return r.id }

func (r *Round) IsInProgress() bool { return r.inProgress }

// HasResults reports whether the result list exists. It is allocated on construction,
// so this is true for every round.
func (r *Round) HasResults() bool { return r.results != nil }

// FinalResults is nil until the round is finished.
func (r *Round) FinalResults() *domain.FinalResults { return r.finalResults }

func (r *Round) Results() []domain.RoundResult { return slices.Clone(r.results) }

func (r *Round) setOptions(options []domain.RoundOption) {
	r.options = slices.Clone(options)
}

// addResult keeps one result per user; a repeat vote replaces the earlier one in place.
func (r *Round) addResult(res domain.RoundResult) {
	for i := range r.results {
		if r.results[i].UserID == res.UserID {
			r.results[i] = res
			return
		}
	}
	r.results = append(r.results, res)
}

func (r *Round) finish() {
	r.inProgress = false
	fr := computeFinalResults(r.results)
	r.finalResults = &fr
}

func (r *Round) view() protocol.RoundView {
	results := make([]protocol.ResultView, 0, len(r.results))
	for _, res := range r.results {
		results = append(results, protocol.ResultView{
			PublicUserID: res.PublicUserID,
			Username:     res.Username,
			Vote:         res.Vote,
		})
	}
	v := protocol.RoundView{
		ID:           r.id,
		IsInProgress: r.inProgress,
		HasResults:   r.HasResults(),
		Options:      slices.Clone(r.options),
		Results:      results,
	}
	if r.finalResults != nil {
		fr := *r.finalResults
		v.FinalResult = &fr
	}
	return v
}
