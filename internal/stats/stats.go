// Package stats derives progress figures and advice from a task list.
// Everything here is pure and cheap enough to run on every read.
package stats

import (
	"math"

	"day2do/internal/models"
)

const (
	// AdviceOnTrack is shown when more than adviceThreshold percent of tasks are done.
	AdviceOnTrack = "Great job! You're consistently completing your tasks."
	// AdviceBreakDown is shown otherwise.
	AdviceBreakDown = "Consider breaking down larger tasks into smaller, manageable chunks."

	adviceThreshold = 70.0
)

// ComputeStats aggregates counts and minute totals over tasks.
func ComputeStats(tasks []models.Task) models.Stats {
	s := models.Stats{TotalTasks: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.CompletedTasks++
		}
		s.TotalEstimatedTime = addMinutes(s.TotalEstimatedTime, t.EstimatedTime)
		s.TotalActualTime = addMinutes(s.TotalActualTime, t.ActualTime)
	}
	return s
}

// addMinutes saturates at math.MaxInt and ignores negative input.
func addMinutes(total int, m models.Minutes) int {
	if m <= 0 {
		return total
	}
	if total > math.MaxInt-int(m) {
		return math.MaxInt
	}
	return total + int(m)
}

// ComputeInsights turns stats into percentages and a piece of advice.
// Time accuracy is not clamped and goes negative once actual time is more
// than double the estimate.
func ComputeInsights(s models.Stats) models.Insights {
	var in models.Insights
	if s.TotalTasks > 0 {
		in.CompletionRate = round1(float64(s.CompletedTasks) / float64(s.TotalTasks) * 100)
	}
	if s.TotalEstimatedTime > 0 {
		diff := math.Abs(float64(s.TotalEstimatedTime - s.TotalActualTime))
		in.TimeAccuracy = round1(100 - diff/float64(s.TotalEstimatedTime)*100)
	}
	if in.CompletionRate > adviceThreshold {
		in.Advice = AdviceOnTrack
	} else {
		in.Advice = AdviceBreakDown
	}
	return in
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
