package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mwork/moderation-api/internal/domain/moderation"
)

func TestLoadModerationDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, moderation.DefaultConfig(), cfg.Moderation())
}

func TestLoadModerationOverrides(t *testing.T) {
	t.Setenv("MODERATION_LEGACY_ENFORCEMENT", "false")
	t.Setenv("MODERATION_INTENT_WEIGHT", "0.9")
	t.Setenv("MODERATION_BEHAVIOR_WEIGHT", "0.1")
	t.Setenv("MODERATION_DECAY_INTERVAL", "72h")
	t.Setenv("MODERATION_DAILY_POST_CAP", "5")

	m := Load().Moderation()
	assert.False(t, m.LegacyEnforcement)
	assert.Equal(t, 0.9, m.Weights.Intent)
	assert.Equal(t, 0.1, m.Weights.Behavior)
	assert.Equal(t, 72*time.Hour, m.Decay.Interval)
	assert.Equal(t, 5, m.DailyPostCap)
	assert.Equal(t, 3, m.ProbationDailyPosts)
}

func TestParseStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseStringSlice(" a, ,b "))
	assert.Nil(t, parseStringSlice(""))
}
