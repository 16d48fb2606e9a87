package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"kbhub/internal/cache"
	"kbhub/internal/model"
	"kbhub/internal/repository"
)

const (
	FeedScopeAll  = "all"
	FeedScopeMine = "mine"

	defaultFeedLimit = 50
	maxFeedLimit     = 100
)

// ActivityPublisher pushes an activity event for asynchronous persistence.
type ActivityPublisher interface {
	Publish(ctx context.Context, activity model.Activity) error
}

type ActivityService struct {
	activityRepo *repository.ActivityRepository
	userRepo     *repository.UserRepository
	kbRepo       *repository.KnowledgeBaseRepository
	memberRepo   *repository.MembershipRepository
	publisher    ActivityPublisher
	feedCache    *cache.FeedCache
}

func NewActivityService(
	activityRepo *repository.ActivityRepository,
	userRepo *repository.UserRepository,
	kbRepo *repository.KnowledgeBaseRepository,
	memberRepo *repository.MembershipRepository,
	publisher ActivityPublisher,
	feedCache *cache.FeedCache,
) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		userRepo:     userRepo,
		kbRepo:       kbRepo,
		memberRepo:   memberRepo,
		publisher:    publisher,
		feedCache:    feedCache,
	}
}

// ActivityView is the API shape of one feed event.
type ActivityView struct {
	ID                 uint                   `json:"id"`
	UserID             uint                   `json:"user_id"`
	Username           string                 `json:"username"`
	Action             string                 `json:"action"`
	ActionLabel        string                 `json:"action_label"`
	KnowledgeBaseID    uint                   `json:"knowledge_base_id,omitempty"`
	KnowledgeBaseName  string                 `json:"knowledge_base_name,omitempty"`
	KnowledgeBaseOwner string                 `json:"knowledge_base_owner,omitempty"`
	Extra              map[string]interface{} `json:"extra,omitempty"`
	CreatedAt          string                 `json:"created_at"`
}

// Record queues an activity event for the feed. Events are best-effort: a
// broker outage falls back to a synchronous write so the feed stays complete.
func (s *ActivityService) Record(ctx context.Context, userID uint, action string, kbID uint, extra map[string]interface{}) {
	activity := model.Activity{
		UserID:          userID,
		Action:          action,
		KnowledgeBaseID: kbID,
		CreatedAt:       time.Now(),
	}
	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			activity.Extra = string(raw)
		}
	}

	if err := s.publisher.Publish(ctx, activity); err != nil {
		log.Printf("publish activity failed, persisting directly: %v", err)
		if err := s.activityRepo.Create(&activity); err != nil {
			log.Printf("persist activity failed: %v", err)
			return
		}
	}

	if s.feedCache != nil {
		if err := s.feedCache.InvalidateAll(ctx); err != nil {
			log.Printf("invalidate feed cache failed: %v", err)
		}
	}
}

// List returns recent activities, newest first. scope "mine" restricts to the
// caller's own events; scope "all" additionally filters out events on
// knowledge bases the caller cannot access.
func (s *ActivityService) List(ctx context.Context, userID uint, scope string, limit int) ([]ActivityView, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if scope != FeedScopeAll && scope != FeedScopeMine {
		scope = FeedScopeAll
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	if s.feedCache != nil {
		if raw, ok, err := s.feedCache.Get(ctx, userID, scope); err == nil && ok {
			var cached []ActivityView
			if err := json.Unmarshal(raw, &cached); err == nil {
				if len(cached) > limit {
					cached = cached[:limit]
				}
				return cached, nil
			}
		}
	}

	var filterUser uint
	if scope == FeedScopeMine {
		filterUser = userID
	}
	// Over-fetch so access filtering can still fill the page.
	activities, err := s.activityRepo.ListRecent(filterUser, limit*2)
	if err != nil {
		return nil, err
	}

	views := make([]ActivityView, 0, limit)
	for i := range activities {
		a := &activities[i]
		if scope == FeedScopeAll && a.KnowledgeBaseID != 0 {
			visible, err := s.canSeeKB(a.KnowledgeBaseID, userID)
			if err != nil {
				return nil, err
			}
			if !visible {
				continue
			}
		}
		view, err := s.buildView(a)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
		if len(views) >= limit {
			break
		}
	}

	if s.feedCache != nil {
		if raw, err := json.Marshal(views); err == nil {
			if err := s.feedCache.Set(ctx, userID, scope, raw); err != nil {
				log.Printf("cache feed failed: %v", err)
			}
		}
	}
	return views, nil
}

func (s *ActivityService) canSeeKB(kbID, userID uint) (bool, error) {
	kb, err := s.kbRepo.GetByID(kbID)
	if err != nil {
		return false, err
	}
	if kb == nil {
		// The knowledge base was deleted after the event; hide the event.
		return false, nil
	}
	if kb.Visibility == model.VisibilityPublic || kb.OwnerID == userID {
		return true, nil
	}
	member, err := s.memberRepo.Get(kbID, userID)
	if err != nil {
		return false, err
	}
	return member != nil, nil
}

func (s *ActivityService) buildView(a *model.Activity) (*ActivityView, error) {
	view := &ActivityView{
		ID:              a.ID,
		UserID:          a.UserID,
		Action:          a.Action,
		ActionLabel:     a.Action,
		KnowledgeBaseID: a.KnowledgeBaseID,
		CreatedAt:       a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if label, ok := model.ActionLabels[a.Action]; ok {
		view.ActionLabel = label
	}

	if user, err := s.userRepo.GetByID(a.UserID); err == nil && user != nil {
		view.Username = user.Username
	}

	if a.KnowledgeBaseID != 0 {
		kb, err := s.kbRepo.GetByID(a.KnowledgeBaseID)
		if err != nil {
			return nil, err
		}
		if kb != nil {
			view.KnowledgeBaseName = kb.Name
			if owner, err := s.userRepo.GetByID(kb.OwnerID); err == nil && owner != nil {
				view.KnowledgeBaseOwner = owner.Username
			}
		}
	}

	if a.Extra != "" {
		var extra map[string]interface{}
		if err := json.Unmarshal([]byte(a.Extra), &extra); err == nil {
			view.Extra = extra
		}
	}
	return view, nil
}
