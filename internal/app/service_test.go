package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kbhub/internal/ai"
	"kbhub/internal/model"
	"kbhub/internal/repository"
)

// testEnv wires the services against an on-disk sqlite database so the
// permission and filtering paths run through real gorm queries.
type testEnv struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	kbRepo          *repository.KnowledgeBaseRepository
	memberRepo      *repository.MembershipRepository
	activityRepo    *repository.ActivityRepository
	memoryRepo      *repository.MemoryRepository
	publisher       *stubPublisher
	kbService       *KBService
	activityService *ActivityService
	memoryService   *MemoryService
}

// stubPublisher always fails so Record exercises the documented
// fallback of persisting the activity directly.
type stubPublisher struct {
	published []model.Activity
}

func (p *stubPublisher) Publish(_ context.Context, activity model.Activity) error {
	p.published = append(p.published, activity)
	return errors.New("broker unavailable")
}

// stubEmbedder returns canned vectors per input, defaulting to a unit
// vector, so similarity ranking is deterministic without network calls.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, _ ai.EmbeddingConfig, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kbhub.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.KnowledgeBase{},
		&model.Membership{},
		&model.Document{},
		&model.Chunk{},
		&model.Activity{},
		&model.MemoryItem{},
	))

	env := &testEnv{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		kbRepo:       repository.NewKnowledgeBaseRepository(db),
		memberRepo:   repository.NewMembershipRepository(db),
		activityRepo: repository.NewActivityRepository(db),
		memoryRepo:   repository.NewMemoryRepository(db),
		publisher:    &stubPublisher{},
	}
	env.activityService = NewActivityService(
		env.activityRepo, env.userRepo, env.kbRepo, env.memberRepo, env.publisher, nil,
	)
	env.kbService = NewKBService(
		env.kbRepo, env.memberRepo, repository.NewDocumentRepository(db), env.userRepo, env.activityService,
	)
	env.memoryService = NewMemoryService(
		env.kbService, env.memoryRepo, &stubEmbedder{}, ai.EmbeddingConfig{},
	)
	return env
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, e.userRepo.Create(user))
	return user
}

func (e *testEnv) createKB(t *testing.T, ownerID uint, name, visibility string) *KBView {
	t.Helper()
	view, err := e.kbService.Create(context.Background(), CreateKBInput{
		OwnerID:    ownerID,
		Name:       name,
		Visibility: visibility,
	})
	require.NoError(t, err)
	return view
}

func (e *testEnv) addMember(t *testing.T, kbID, ownerID, userID uint, role string) {
	t.Helper()
	_, err := e.kbService.AddMember(context.Background(), AddMemberInput{
		ActorID: ownerID,
		KBID:    kbID,
		UserID:  userID,
		Role:    role,
	})
	require.NoError(t, err)
}
