package core

import (
	"fmt"
	"testing"

	"github.com/dkeye/Poker/internal/domain"
)

func votes(values ...string) []domain.RoundResult {
	out := make([]domain.RoundResult, 0, len(values))
	for i, v := range values {
		out = append(out, domain.RoundResult{UserID: domain.UserID(fmt.Sprintf("u%d", i)), Vote: v})
	}
	return out
}

func TestComputeFinalResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []domain.RoundResult
		want domain.FinalResults
	}{
		{
			name: "ten votes",
			in:   votes("5", "3", "5", "5", "3", "2", "5", "8", "3", "5"),
			want: domain.FinalResults{Votes: 10, Mean: "4.40", Median: "5.00", Mode: "5"},
		},
		{
			name: "no numeric votes",
			in:   votes("?", "coffee"),
			want: domain.FinalResults{Votes: 0, Mean: "N/A", Median: "N/A", Mode: "N/A"},
		},
		{
			name: "no votes",
			in:   nil,
			want: domain.FinalResults{Votes: 0, Mean: "N/A", Median: "N/A", Mode: "N/A"},
		},
		{
			name: "non numeric ignored",
			in:   votes("?", "8", "coffee"),
			want: domain.FinalResults{Votes: 1, Mean: "8.00", Median: "8", Mode: "8"},
		},
		{
			name: "tied modes ascending",
			in:   votes("3", "1", "2", "3", "1"),
			want: domain.FinalResults{Votes: 5, Mean: "2.00", Median: "2", Mode: "1, 3"},
		},
		{
			name: "even count median averages",
			in:   votes("1", "2"),
			want: domain.FinalResults{Votes: 2, Mean: "1.50", Median: "1.50", Mode: "1, 2"},
		},
		{
			name: "fractions round half away from zero",
			in:   votes("0.5", "0.5", "1"),
			want: domain.FinalResults{Votes: 3, Mean: "0.67", Median: "1", Mode: "0.5"},
		},
		{
			name: "whitespace and infinities",
			in:   votes(" 13 ", "Inf", "NaN", ""),
			want: domain.FinalResults{Votes: 1, Mean: "13.00", Median: "13", Mode: "13"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeFinalResults(tt.in)
			if got != tt.want {
				t.Fatalf("computeFinalResults = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRoundKeepsOneResultPerUser(t *testing.T) {
	t.Parallel()

	rd := newRound(domain.NewRoundOptions(domain.DefaultOptionNames))
	rd.addResult(domain.RoundResult{UserID: "u1", Vote: "3"})
	rd.addResult(domain.RoundResult{UserID: "u2", Vote: "5"})
	rd.addResult(domain.RoundResult{UserID: "u1", Vote: "8"})

	got := rd.Results()
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].UserID != "u1" || got[0].Vote != "8" {
		t.Fatalf("first result = %+v, want u1 voting 8 in place", got[0])
	}
	if !rd.HasResults() {
		t.Fatal("HasResults must be true for a constructed round")
	}

	rd.finish()
	if rd.IsInProgress() {
		t.Fatal("finished round still in progress")
	}
	if fr := rd.FinalResults(); fr == nil || fr.Votes != 2 || fr.Mean != "6.50" {
		t.Fatalf("final results = %+v", fr)
	}
}
