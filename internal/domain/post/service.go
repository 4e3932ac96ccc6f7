package post

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/domain/moderation"
	"github.com/mwork/moderation-api/internal/pkg/logger"
)

const (
	recentWindow = 24 * time.Hour
	recentLimit  = 10
)

// Moderator is the part of the moderation service submissions go through
type Moderator interface {
	Gate(ctx context.Context, req moderation.GateRequest) (*moderation.GateResult, error)
	Evaluate(ctx context.Context, req moderation.EvaluateRequest) *moderation.DecisionResult
	ReleasePost(ctx context.Context, accountID uuid.UUID)
}

// GateError carries a pre-submission rejection
type GateError struct {
	Result *moderation.GateResult
}

func (e *GateError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Result.Reason)
}

func (e *GateError) Unwrap() error {
	return e.Result.Err
}

// BlockedError carries the decision that blocked a submission
type BlockedError struct {
	Post     *Post
	Decision *moderation.DecisionResult
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("content blocked: %s", e.Decision.Reason)
}

func (e *BlockedError) Unwrap() error {
	return ErrContentBlocked
}

// Service creates posts and comments through the moderation pipeline
type Service struct {
	repo      Repository
	moderator Moderator
	nowFn     func() time.Time
}

// NewService creates post service
func NewService(repo Repository, moderator Moderator) *Service {
	return &Service{repo: repo, moderator: moderator, nowFn: time.Now}
}

// WithClock replaces the service clock
func (s *Service) WithClock(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

// CreatePost submits a top-level post
func (s *Service) CreatePost(ctx context.Context, authorID uuid.UUID, content string) (*Post, *moderation.DecisionResult, error) {
	return s.submit(ctx, authorID, nil, content)
}

// CreateComment submits a comment under a published post
func (s *Service) CreateComment(ctx context.Context, authorID, parentID uuid.UUID, content string) (*Post, *moderation.DecisionResult, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if !parent.IsVisible() {
		return nil, nil, ErrParentNotVisible
	}
	return s.submit(ctx, authorID, &parent.ID, content)
}

// GetByID returns a post
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) submit(ctx context.Context, authorID uuid.UUID, parentID *uuid.UUID, content string) (*Post, *moderation.DecisionResult, error) {
	kind := moderation.ContentKindPost
	if parentID != nil {
		kind = moderation.ContentKindComment
	}

	gate, err := s.moderator.Gate(ctx, moderation.GateRequest{AccountID: authorID, Kind: kind, Content: content})
	if err != nil {
		return nil, nil, err
	}
	if !gate.Allowed {
		return nil, nil, &GateError{Result: gate}
	}

	now := s.nowFn()
	recent, flagged := s.recentActivity(ctx, authorID, now)

	p := &Post{
		ID:        uuid.New(),
		AuthorID:  authorID,
		Kind:      kind,
		Content:   content,
		CreatedAt: now,
	}
	if parentID != nil {
		p.ParentID = uuid.NullUUID{UUID: *parentID, Valid: true}
	}

	decision := s.moderator.Evaluate(ctx, moderation.EvaluateRequest{
		AccountID:     authorID,
		Content:       content,
		ContentType:   kind,
		ContentID:     &p.ID,
		RecentContent: recent,
		UserContext:   moderation.UserContext{RecentHostileContentFlag: flagged},
	})

	p.ModerationAction = decision.Action
	p.IntentCategory = decision.LayerOutputs.Layer2.Category
	if p.IntentCategory == "" {
		p.IntentCategory = moderation.IntentNeutral
	}
	p.Status = statusFor(decision.Action)
	if decision.DampeningDurationMinutes > 0 {
		until := now.Add(time.Duration(decision.DampeningDurationMinutes) * time.Minute)
		p.DampenedUntil = &until
	}

	if err := s.repo.Create(ctx, p); err != nil {
		s.release(ctx, gate, authorID)
		return nil, nil, err
	}

	if decision.Blocked {
		s.release(ctx, gate, authorID)
		return nil, decision, &BlockedError{Post: p, Decision: decision}
	}

	logger.LogDebug(ctx, "submission stored",
		"post_id", p.ID.String(),
		"status", string(p.Status),
		"action", string(decision.Action),
	)
	return p, decision, nil
}

// release hands back the daily post slot of a post that was not published
func (s *Service) release(ctx context.Context, gate *moderation.GateResult, authorID uuid.UUID) {
	if gate.Reserved {
		s.moderator.ReleasePost(ctx, authorID)
	}
}

// recentActivity loads the author's latest submissions for the behavior
// layer. A submission scored hostile or dangerous within the window sets the
// hostile-history flag. Lookup failures degrade to no history.
func (s *Service) recentActivity(ctx context.Context, authorID uuid.UUID, now time.Time) ([]moderation.RecentContent, bool) {
	posts, err := s.repo.ListRecentByAuthor(ctx, authorID, now.Add(-recentWindow), recentLimit)
	if err != nil {
		logger.LogWarn(ctx, "recent submissions unavailable", "author_id", authorID.String(), "error", err.Error())
		return nil, false
	}

	recent := make([]moderation.RecentContent, 0, len(posts))
	flagged := false
	for _, p := range posts {
		recent = append(recent, moderation.RecentContent{Content: p.Content, Timestamp: p.CreatedAt})
		if p.IntentCategory == moderation.IntentHostile || p.IntentCategory == moderation.IntentDangerous {
			flagged = true
		}
	}
	return recent, flagged
}
