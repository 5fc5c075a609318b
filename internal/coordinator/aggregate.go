package coordinator

import (
	"fmt"
	"math"
	"strings"

	"stagehand/pkg/models"
)

// AggregationStrategy is the policy for collapsing multiple agents'
// outputs into one result.
type AggregationStrategy string

const (
	// AggregateMerge joins every completed output in input order.
	AggregateMerge AggregationStrategy = "merge"
	// AggregateVote returns the most frequent completed output.
	AggregateVote AggregationStrategy = "vote"
	// AggregateBest returns the first completed output with a success
	// rate prefix.
	AggregateBest AggregationStrategy = "best"
	// AggregateSummary returns a human-readable tally.
	AggregateSummary AggregationStrategy = "summary"
)

// Valid reports whether s is a known strategy.
func (s AggregationStrategy) Valid() bool {
	switch s {
	case AggregateMerge, AggregateVote, AggregateBest, AggregateSummary:
		return true
	}
	return false
}

// mergeSeparator divides outputs in merge mode.
const mergeSeparator = "\n\n---\n\n"

// Aggregate collapses the results into one string. Only completed
// results contribute text; failed results are counted but excluded.
// Unknown strategies fall back to merge.
func Aggregate(results []models.DelegationResult, strategy AggregationStrategy) string {
	switch strategy {
	case AggregateVote:
		return aggregateVote(results)
	case AggregateBest:
		return aggregateBest(results)
	case AggregateSummary:
		return aggregateSummary(results)
	default:
		return aggregateMerge(results)
	}
}

func aggregateMerge(results []models.DelegationResult) string {
	var outputs []string
	for _, r := range results {
		if r.Succeeded() {
			outputs = append(outputs, r.Output)
		}
	}
	return strings.Join(outputs, mergeSeparator)
}

// aggregateVote picks the most frequent completed output. A tie keeps
// the output seen first.
func aggregateVote(results []models.DelegationResult) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		if counts[r.Output] == 0 {
			order = append(order, r.Output)
		}
		counts[r.Output]++
	}
	best := ""
	bestCount := 0
	for _, out := range order {
		if counts[out] > bestCount {
			best = out
			bestCount = counts[out]
		}
	}
	return best
}

func aggregateBest(results []models.DelegationResult) string {
	completed := 0
	first := ""
	for _, r := range results {
		if r.Succeeded() {
			if completed == 0 {
				first = r.Output
			}
			completed++
		}
	}
	if completed == 0 {
		return ""
	}
	rate := int(math.Round(float64(completed) / float64(len(results)) * 100))
	return fmt.Sprintf("[Success rate: %d%%] %s", rate, first)
}

func aggregateSummary(results []models.DelegationResult) string {
	completed := 0
	for _, r := range results {
		if r.Succeeded() {
			completed++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Completed: %d\n", completed)
	fmt.Fprintf(&b, "Failed: %d\n", len(results)-completed)
	for _, r := range results {
		state := "failure"
		if r.Succeeded() {
			state = "success"
		}
		fmt.Fprintf(&b, "- agent %s (%s): %s\n", r.AgentID, r.Role, state)
	}
	return b.String()
}
