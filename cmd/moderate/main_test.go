package main

import (
	"context"
	"testing"
	"time"

	"github.com/mwork/moderation-api/internal/domain/moderation"
)

func TestEvaluateTextThreatFromNewAccount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	res := evaluateText(context.Background(), moderation.DefaultConfig(), evaluation{
		Text:       "I will find you and hurt you",
		Kind:       moderation.ContentKindPost,
		AccountAge: 48 * time.Hour,
	}, now)

	if res.Action != moderation.ActionQueueForReview {
		t.Fatalf("expected %s, got %s", moderation.ActionQueueForReview, res.Action)
	}
	if res.LayerOutputs.Layer4.CombinedScore != 56 {
		t.Fatalf("expected combined score 56, got %d", res.LayerOutputs.Layer4.CombinedScore)
	}
}

func TestEvaluateTextPassiveSkipsEnforcement(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := moderation.DefaultConfig()
	cfg.LegacyEnforcement = false
	cfg.Weights.Intent = 0.9
	cfg.Weights.Behavior = 0.1

	res := evaluateText(context.Background(), cfg, evaluation{
		Text:       "I will find you and hurt you",
		Kind:       moderation.ContentKindComment,
		AccountAge: 48 * time.Hour,
	}, now)

	if res.Action != moderation.ActionAllow {
		t.Fatalf("expected %s, got %s", moderation.ActionAllow, res.Action)
	}
	if res.ShadowAction != moderation.ActionHardBlock {
		t.Fatalf("expected shadow action %s, got %s", moderation.ActionHardBlock, res.ShadowAction)
	}
}
