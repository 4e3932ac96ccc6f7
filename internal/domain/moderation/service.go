package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/pkg/countstore"
	"github.com/mwork/moderation-api/internal/pkg/logger"
	"github.com/mwork/moderation-api/internal/pkg/textsig"
)

// EvidenceArchive stores the full text of enforced submissions
type EvidenceArchive interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// Service runs the decision pipeline and owns every enforcement transition
type Service struct {
	store   Store
	counts  countstore.CountStore
	archive EvidenceArchive
	cfg     Config
	nowFn   func() time.Time
}

// NewService creates moderation service. archive may be nil.
func NewService(store Store, counts countstore.CountStore, archive EvidenceArchive, cfg Config) *Service {
	return &Service{
		store:   store,
		counts:  counts,
		archive: archive,
		cfg:     cfg,
		nowFn:   time.Now,
	}
}

// WithClock replaces the service clock
func (s *Service) WithClock(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// Config returns the configuration the service was built with
func (s *Service) Config() Config {
	return s.cfg
}

// EvaluateRequest is one submission to classify
type EvaluateRequest struct {
	AccountID     uuid.UUID
	Content       string
	ContentType   ContentKind
	ContentID     *uuid.UUID
	RecentContent []RecentContent
	UserContext   UserContext
}

// LayerOutputs is the full per-layer breakdown kept for audit
type LayerOutputs struct {
	Layer1 ExpressionOutput `json:"layer1"`
	Layer2 IntentOutput     `json:"layer2"`
	Layer3 BehaviorOutput   `json:"layer3"`
	Layer4 DecisionOutput   `json:"layer4"`
}

// DecisionResult is what callers of Evaluate act on
type DecisionResult struct {
	Action                   Action       `json:"action"`
	Blocked                  bool         `json:"blocked"`
	Reason                   string       `json:"reason"`
	Confidence               int          `json:"confidence"`
	DampeningDurationMinutes int          `json:"dampening_duration_minutes"`
	QueuePriority            string       `json:"queue_priority,omitempty"`
	LayerOutputs             LayerOutputs `json:"layer_outputs"`

	// ShadowAction is the punitive action a passive guard suppressed
	ShadowAction Action `json:"shadow_action,omitempty"`
	// Degraded marks a fail-open result
	Degraded bool       `json:"degraded,omitempty"`
	EventID  *uuid.UUID `json:"event_id,omitempty"`
}

// Enforced reports whether a punitive action was applied to the account
func (r *DecisionResult) Enforced() bool {
	return r.Action.Punitive() && r.ShadowAction == ""
}

func newResult(layers LayerOutputs) *DecisionResult {
	d := layers.Layer4
	return &DecisionResult{
		Action:                   d.Action,
		Blocked:                  d.Action.Punitive(),
		Reason:                   d.Reason,
		Confidence:               d.Confidence,
		DampeningDurationMinutes: d.DampeningDurationMinutes,
		QueuePriority:            d.QueuePriority,
		LayerOutputs:             layers,
	}
}

// Evaluate classifies a submission and applies the resulting enforcement to
// the author's account in one atomic update. It never returns an error: any
// internal failure yields an ALLOW with zero confidence.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) *DecisionResult {
	start := time.Now()
	defer func() {
		evaluateDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	l1 := ClassifyExpression(req.Content)
	l2 := ClassifyIntent(req.Content, req.UserContext)
	now := s.nowFn()

	var (
		result      *DecisionResult
		evidenceKey string
	)
	err := s.store.Update(ctx, req.AccountID, now, func(u *AccountUpdate) error {
		evidenceKey = ""
		s.applyDecay(u)

		l3 := ScoreBehavior(BehaviorInput{
			Content:   req.Content,
			CreatedAt: u.Account.CreatedAt,
			Profile:   u.Account.Profile,
			Recent:    req.RecentContent,
			Now:       now,
		}, s.cfg)
		l4 := Decide(l2, l3, s.cfg)

		result = newResult(LayerOutputs{Layer1: l1, Layer2: l2, Layer3: l3, Layer4: l4})
		ev, err := s.enforce(ctx, u, req, result)
		if err != nil {
			return err
		}
		if ev != nil {
			id := ev.ID
			result.EventID = &id
			evidenceKey = ev.EvidenceKey
		}

		u.Apply(SetBehaviorScore{Score: uint(100 - l3.Score)})
		return nil
	})
	if err != nil {
		failOpenCount.Inc()
		logger.FromContext(ctx).Error().Err(err).
			Str("account_id", req.AccountID.String()).
			Msg("moderation evaluation failed, allowing content")
		return &DecisionResult{
			Action:       ActionAllow,
			Reason:       fmt.Sprintf("moderation unavailable: %v", err),
			Confidence:   0,
			LayerOutputs: LayerOutputs{Layer1: l1, Layer2: l2},
			Degraded:     true,
		}
	}

	decisionCount.WithLabelValues(string(result.LayerOutputs.Layer4.Action), strconv.FormatBool(result.Enforced())).Inc()
	logger.FromContext(ctx).Debug().
		Str("account_id", req.AccountID.String()).
		Str("action", string(result.Action)).
		Str("intent", string(l2.Category)).
		Int("combined_score", result.LayerOutputs.Layer4.CombinedScore).
		Msg("moderation decision")

	if evidenceKey != "" {
		s.archiveEvidence(ctx, evidenceKey, req.Content)
	}
	return result
}

// Preview runs the pipeline against the current account state without
// writing anything
func (s *Service) Preview(ctx context.Context, req EvaluateRequest) (*DecisionResult, error) {
	acc, err := s.store.Get(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	profile := acc.Profile
	ApplyDecay{Policy: s.cfg.Decay}.applyTo(&profile, now)

	l1 := ClassifyExpression(req.Content)
	l2 := ClassifyIntent(req.Content, req.UserContext)
	l3 := ScoreBehavior(BehaviorInput{
		Content:   req.Content,
		CreatedAt: acc.CreatedAt,
		Profile:   profile,
		Recent:    req.RecentContent,
		Now:       now,
	}, s.cfg)
	l4 := Decide(l2, l3, s.cfg)

	result := newResult(LayerOutputs{Layer1: l1, Layer2: l2, Layer3: l3, Layer4: l4})
	if l4.Action.Punitive() && !s.cfg.LegacyEnforcement {
		suppress(result)
	}
	return result, nil
}

func (s *Service) applyDecay(u *AccountUpdate) {
	before := u.Account.Profile
	if !u.Apply(ApplyDecay{Policy: s.cfg.Decay}) {
		return
	}
	after := u.Account.Profile
	decayCount.Inc()
	u.Append(Event{
		Action: EventDecayApplied,
		Reason: fmt.Sprintf("violations decayed after %s clean: speech %d->%d, spam %d->%d, slur %d->%d",
			s.cfg.Decay.Interval,
			before.ViolationCount, after.ViolationCount,
			before.SpamViolationCount, after.SpamViolationCount,
			before.SlurViolationCount, after.SlurViolationCount),
		Automated: true,
	})
}

// enforce turns the Layer 4 decision into commands and an audit event
func (s *Service) enforce(ctx context.Context, u *AccountUpdate, req EvaluateRequest, res *DecisionResult) (*Event, error) {
	d := res.LayerOutputs.Layer4
	if d.Action == ActionAllow {
		return nil, nil
	}

	base, err := s.decisionEvent(req, res)
	if err != nil {
		return nil, err
	}

	if !d.Action.Punitive() {
		base.Action = EventPipelineDecided
		ev := u.Append(base)
		return &ev, nil
	}

	if !s.cfg.LegacyEnforcement {
		ev := s.recordSkipped(u, base, res)
		return &ev, nil
	}

	u.Apply(IncrementViolation{Kind: ViolationSpeech})
	if s.cfg.ArchiveEvidence && s.archive != nil {
		base.EvidenceKey = evidenceKeyFor(req.AccountID, base.ID)
	}

	switch d.Action {
	case ActionTempMute:
		if u.Account.Profile.AutoMuteEnabled {
			base.Action = EventMute
			if !u.Apply(Mute{Duration: d.MuteDuration(), Reason: d.Reason, KeepLonger: true}) {
				base.Reason = d.Reason + " (longer mute already in place)"
			}
		} else {
			base.Action = EventWarning
			base.Reason = d.Reason + " (auto-mute disabled for account)"
		}
	case ActionHardBlock:
		base.Action = EventHardBlock
	}

	ev := u.Append(base)
	logger.LogInfo(ctx, "moderation enforcement applied",
		"account_id", req.AccountID.String(),
		"action", string(d.Action),
		"event", string(ev.Action),
	)
	return &ev, nil
}

func (s *Service) decisionEvent(req EvaluateRequest, res *DecisionResult) (Event, error) {
	layers, err := json.Marshal(res.LayerOutputs)
	if err != nil {
		return Event{}, fmt.Errorf("marshal layer outputs: %w", err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = ContentKindOther
	}
	ev := Event{
		ID:                 uuid.New(),
		Reason:             res.Reason,
		ContentType:        contentType,
		ContentPreview:     textsig.Truncate(req.Content, PreviewLimit),
		ContentHash:        textsig.Fingerprint(req.Content),
		DetectedViolations: res.LayerOutputs.Layer2.Labels(),
		Automated:          true,
		LayerOutputs:       layers,
	}
	if req.ContentID != nil {
		ev.ContentID = uuid.NullUUID{UUID: *req.ContentID, Valid: true}
	}
	return ev, nil
}

func evidenceKeyFor(accountID, eventID uuid.UUID) string {
	return fmt.Sprintf("evidence/%s/%s.txt", accountID, eventID)
}

func (s *Service) archiveEvidence(ctx context.Context, key, content string) {
	if err := s.archive.Put(ctx, key, bytes.NewReader([]byte(content)), "text/plain; charset=utf-8"); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to archive moderation evidence")
	}
}
