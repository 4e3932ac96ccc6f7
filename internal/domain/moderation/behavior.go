package moderation

import (
	"math"
	"sort"
	"time"

	"github.com/mwork/moderation-api/internal/pkg/textsig"
)

// RecentContent is one prior submission of the author
type RecentContent struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// BehaviorOutput is the Layer 3 result
type BehaviorOutput struct {
	Score           int     `json:"behavior_score"`
	FrequencyScore  int     `json:"frequency_score"`
	DuplicateScore  int     `json:"duplicate_score"`
	AccountAgeScore int     `json:"account_age_score"`
	HistoryScore    int     `json:"history_score"`
	RecentCount     int     `json:"recent_count"`
	DuplicateCount  int     `json:"duplicate_count"`
	AccountAgeDays  float64 `json:"account_age_days"`
}

// BehaviorInput is everything Layer 3 reads about the author
type BehaviorInput struct {
	Content   string
	CreatedAt time.Time
	Profile   Profile
	Recent    []RecentContent
	Now       time.Time
}

// ScoreBehavior computes the composite behavior score
func ScoreBehavior(in BehaviorInput, cfg Config) BehaviorOutput {
	recent := mostRecent(in.Recent, cfg.RecentLimit)

	var out BehaviorOutput
	age := in.Now.Sub(in.CreatedAt)
	out.AccountAgeDays = math.Round(age.Hours()/24*100) / 100
	out.AccountAgeScore = accountAgeScore(age)
	out.HistoryScore = min(50, 5*int(in.Profile.TotalViolations()))

	for _, rc := range recent {
		if in.Now.Sub(rc.Timestamp) <= cfg.FrequencyWindow {
			out.RecentCount++
		}
	}
	out.FrequencyScore = frequencyScore(out.RecentCount)

	if current := textsig.TokenSet(in.Content); len(current) > 0 {
		for _, rc := range recent {
			if textsig.Jaccard(current, textsig.TokenSet(rc.Content)) > cfg.DuplicateSimilarity {
				out.DuplicateCount++
			}
		}
	}
	out.DuplicateScore = duplicateScore(out.DuplicateCount)

	w := cfg.Weights
	composite := w.Frequency*float64(out.FrequencyScore) +
		w.Duplicate*float64(out.DuplicateScore) +
		w.Age*float64(out.AccountAgeScore) +
		w.History*float64(out.HistoryScore)
	out.Score = clamp(int(math.Round(composite)), 0, 100)
	return out
}

func mostRecent(items []RecentContent, limit int) []RecentContent {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	sorted := make([]RecentContent, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	return sorted[:limit]
}

func accountAgeScore(age time.Duration) int {
	switch {
	case age < 24*time.Hour:
		return 50
	case age < 7*24*time.Hour:
		return 30
	case age < 30*24*time.Hour:
		return 15
	default:
		return 0
	}
}

func frequencyScore(n int) int {
	switch {
	case n >= 5:
		return 40
	case n >= 3:
		return 25
	case n >= 2:
		return 10
	default:
		return 0
	}
}

func duplicateScore(n int) int {
	switch {
	case n >= 3:
		return 35
	case n >= 2:
		return 20
	case n >= 1:
		return 5
	default:
		return 0
	}
}
