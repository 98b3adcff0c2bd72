package core

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dkeye/Poker/internal/domain"
)

func emptyFinalResults() domain.FinalResults {
	return domain.FinalResults{
		Votes:  0,
		Mean:   domain.NotAvailable,
		Median: domain.NotAvailable,
		Mode:   domain.NotAvailable,
	}
}

// computeFinalResults summarizes the numeric votes. Non-numeric votes ("?", "coffee") are ignored.
func computeFinalResults(results []domain.RoundResult) domain.FinalResults {
	votes := numericVotes(results)
	if len(votes) == 0 {
		return emptyFinalResults()
	}
	return domain.FinalResults{
		Votes:  len(votes),
		Mean:   mean(votes),
		Median: median(votes),
		Mode:   mode(votes),
	}
}

func numericVotes(results []domain.RoundResult) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		s := strings.TrimSpace(r.Vote)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mean(votes []float64) string {
	var sum float64
	for _, v := range votes {
		sum += v
	}
	return toFixed(sum/float64(len(votes)), 2)
}

func median(votes []float64) string {
	sorted := slices.Clone(votes)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return toFixed((sorted[n/2-1]+sorted[n/2])/2, 2)
	}
	return toFixed(sorted[n/2], 0)
}

// mode lists every value sharing the highest count, ascending.
func mode(votes []float64) string {
	counts := make(map[float64]int, len(votes))
	for _, v := range votes {
		counts[v]++
	}
	values := make([]float64, 0, len(counts))
	best := 0
	for v, c := range counts {
		values = append(values, v)
		best = max(best, c)
	}
	slices.Sort(values)

	tied := make([]string, 0, 1)
	for _, v := range values {
		if counts[v] == best {
			tied = append(tied, formatVote(v))
		}
	}
	return strings.Join(tied, ", ")
}

func formatVote(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toFixed rounds half away from zero before formatting.
func toFixed(v float64, digits int) string {
	p := math.Pow(10, float64(digits))
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', digits, 64)
}
