package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCategory is applied to drafts that do not name a category.
const DefaultCategory = "Personal"

// ErrEmptyTitle is returned when a draft has no title after trimming.
var ErrEmptyTitle = errors.New("task title must not be empty")

// Priority ranks a task. Only the three declared values are valid.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority maps user input onto a known priority, falling back to Medium.
func ParsePriority(raw string) Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// UnmarshalJSON normalizes stored priorities so unknown values never leak in.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var raw string
	if bytes.Equal(data, []byte("null")) {
		*p = PriorityMedium
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("priority: %w", err)
	}
	*p = ParsePriority(raw)
	return nil
}

// Minutes is a non-negative duration in whole minutes, at most MaxMinutes.
type Minutes int

// MaxMinutes bounds a single duration so totals over a plan cannot overflow.
const MaxMinutes = math.MaxInt32

// ParseMinutes reads the leading integer of raw text, the way form input is
// interpreted: "60" and "60min" give 60, empty or non-numeric text gives 0.
// Negative values and values above MaxMinutes give 0.
func ParseMinutes(raw string) Minutes {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 || n > MaxMinutes {
		return 0
	}
	return Minutes(n)
}

// UnmarshalJSON accepts numbers and numeric strings. Older snapshots stored
// the raw form text for estimatedTime.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = 0
	case len(data) > 0 && data[0] == '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("minutes: %w", err)
		}
		*m = ParseMinutes(raw)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("minutes: %w", err)
		}
		if f < 0 || f > MaxMinutes {
			f = 0
		}
		*m = Minutes(int(f))
	}
	return nil
}

// Task is one entry of the day plan.
type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	EstimatedTime Minutes   `json:"estimatedTime"`
	ActualTime    Minutes   `json:"actualTime"`
	Priority      Priority  `json:"priority"`
	Category      string    `json:"category"`
	Completed     bool      `json:"completed"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Draft carries unvalidated user input for creating or editing a task.
type Draft struct {
	Title         string `json:"title"`
	EstimatedTime string `json:"estimatedTime"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
}

// Validate reports whether the draft can become a task.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Apply copies the editable draft fields onto t. Identity, completion,
// actual time and creation time are left alone.
func (d Draft) Apply(t Task) Task {
	t.Title = strings.TrimSpace(d.Title)
	t.EstimatedTime = ParseMinutes(d.EstimatedTime)
	t.Priority = ParsePriority(d.Priority)
	t.Category = strings.TrimSpace(d.Category)
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	return t
}

// Stats aggregates the current task list.
type Stats struct {
	TotalTasks         int `json:"totalTasks"`
	CompletedTasks     int `json:"completedTasks"`
	TotalEstimatedTime int `json:"totalEstimatedTime"`
	TotalActualTime    int `json:"totalActualTime"`
}

// Insights is the advisory view derived from Stats.
type Insights struct {
	CompletionRate float64 `json:"completionRate"`
	TimeAccuracy   float64 `json:"timeAccuracy"`
	Advice         string  `json:"advice"`
}
