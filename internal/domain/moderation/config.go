package moderation

import "time"

// Weights holds the linear weights of the combined and behavior scores
type Weights struct {
	Intent   float64
	Behavior float64

	Frequency float64
	Duplicate float64
	Age       float64
	History   float64
}

// Thresholds holds the combined / behavior score cut-offs of the decision table
type Thresholds struct {
	DangerousBlock int
	DangerousMute  int
	HostileMute    int
	HostileDampen  int

	DisruptiveDampen int
	DisruptiveNote   int
	ExpressiveNote   int
	NeutralDampen    int
}

// Durations holds action durations
type Durations struct {
	DangerousMute    time.Duration
	HostileMute      time.Duration
	HostileDampen    time.Duration
	DisruptiveDampen time.Duration
	NeutralDampen    time.Duration
}

// DecayPolicy reduces violation counters after a clean period
type DecayPolicy struct {
	Interval time.Duration
	Amount   uint
}

// Config is injected into the Service. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Weights    Weights
	Thresholds Thresholds
	Durations  Durations

	// LegacyEnforcement allows TEMP_MUTE and HARD_BLOCK to mutate account
	// state. When false they are recorded as skipped and content is allowed.
	LegacyEnforcement bool

	Decay    DecayPolicy
	EventCap int

	ProbationDailyPosts int
	DailyPostCap        int

	RecentLimit         int
	FrequencyWindow     time.Duration
	DuplicateSimilarity float64

	// ArchiveEvidence uploads the full content of enforced decisions
	ArchiveEvidence bool
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Intent:    0.6,
			Behavior:  0.4,
			Frequency: 0.30,
			Duplicate: 0.25,
			Age:       0.20,
			History:   0.25,
		},
		Thresholds: Thresholds{
			DangerousBlock:   80,
			DangerousMute:    60,
			HostileMute:      70,
			HostileDampen:    50,
			DisruptiveDampen: 60,
			DisruptiveNote:   40,
			ExpressiveNote:   70,
			NeutralDampen:    80,
		},
		Durations: Durations{
			DangerousMute:    60 * time.Minute,
			HostileMute:      30 * time.Minute,
			HostileDampen:    15 * time.Minute,
			DisruptiveDampen: 10 * time.Minute,
			NeutralDampen:    5 * time.Minute,
		},
		LegacyEnforcement: true,
		Decay: DecayPolicy{
			Interval: 7 * 24 * time.Hour,
			Amount:   1,
		},
		EventCap:            100,
		ProbationDailyPosts: 3,
		DailyPostCap:        50,
		RecentLimit:         10,
		FrequencyWindow:     5 * time.Minute,
		DuplicateSimilarity: 0.80,
		ArchiveEvidence:     true,
	}
}
