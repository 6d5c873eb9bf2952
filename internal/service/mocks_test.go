package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"rollermate/internal/model"
	"rollermate/internal/queue"
)

// =============================================================================
// MOCK REPOSITORIES
// =============================================================================
//
// Each mock implements a repository interface with optional function fields.
// A nil field falls back to a harmless default so tests only stub what they use.

type mockProfileRepository struct {
	createFn       func(ctx context.Context, profile *model.Profile) error
	getByIDFn      func(ctx context.Context, id string) (*model.Profile, error)
	getByEmailFn   func(ctx context.Context, email string) (*model.Profile, error)
	searchFn       func(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error)
	updateFn       func(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.Profile, error)
	updateAvatarFn func(ctx context.Context, id string, upload *model.UploadResult) (*string, error)
}

func (m *mockProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if m.createFn != nil {
		return m.createFn(ctx, profile)
	}
	profile.ID = "new-user"
	return nil
}

func (m *mockProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Profile{ID: id}, nil
}

func (m *mockProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrProfileNotFound
}

func (m *mockProfileRepository) Search(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockProfileRepository) Update(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, req)
	}
	return &model.Profile{ID: id}, nil
}

func (m *mockProfileRepository) UpdateAvatar(ctx context.Context, id string, upload *model.UploadResult) (*string, error) {
	if m.updateAvatarFn != nil {
		return m.updateAvatarFn(ctx, id, upload)
	}
	return nil, nil
}

// followGraph is an in-memory follow table. Its methods back mockFollowRepository.
type followGraph struct {
	mu    sync.Mutex
	edges map[[2]string]time.Time
}

func newFollowGraph() *followGraph {
	return &followGraph{edges: map[[2]string]time.Time{}}
}

func (g *followGraph) repo() *mockFollowRepository {
	return &mockFollowRepository{
		createFn: func(ctx context.Context, followerID, followingID string) (bool, error) {
			g.mu.Lock()
			defer g.mu.Unlock()
			key := [2]string{followerID, followingID}
			if _, ok := g.edges[key]; ok {
				return false, nil
			}
			g.edges[key] = time.Now()
			return true, nil
		},
		deleteFn: func(ctx context.Context, followerID, followingID string) (bool, error) {
			g.mu.Lock()
			defer g.mu.Unlock()
			key := [2]string{followerID, followingID}
			_, ok := g.edges[key]
			delete(g.edges, key)
			return ok, nil
		},
		existsFn: func(ctx context.Context, followerID, followingID string) (bool, error) {
			g.mu.Lock()
			defer g.mu.Unlock()
			_, ok := g.edges[[2]string{followerID, followingID}]
			return ok, nil
		},
		countFollowersFn: func(ctx context.Context, userID string) (int, error) {
			return g.count(func(k [2]string) bool { return k[1] == userID }), nil
		},
		countFollowingFn: func(ctx context.Context, userID string) (int, error) {
			return g.count(func(k [2]string) bool { return k[0] == userID }), nil
		},
	}
}

func (g *followGraph) count(match func([2]string) bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for k := range g.edges {
		if match(k) {
			n++
		}
	}
	return n
}

type mockFollowRepository struct {
	createFn         func(ctx context.Context, followerID, followingID string) (bool, error)
	deleteFn         func(ctx context.Context, followerID, followingID string) (bool, error)
	existsFn         func(ctx context.Context, followerID, followingID string) (bool, error)
	countFollowersFn func(ctx context.Context, userID string) (int, error)
	countFollowingFn func(ctx context.Context, userID string) (int, error)
	getFollowersFn   func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error)
	getFollowingFn   func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error)
	checkFollowsFn   func(ctx context.Context, followerID string, ids []string) (map[string]bool, error)
}

func (m *mockFollowRepository) Create(ctx context.Context, followerID, followingID string) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, followerID, followingID)
	}
	return true, nil
}

func (m *mockFollowRepository) Delete(ctx context.Context, followerID, followingID string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, followerID, followingID)
	}
	return true, nil
}

func (m *mockFollowRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, followerID, followingID)
	}
	return false, nil
}

func (m *mockFollowRepository) CountFollowers(ctx context.Context, userID string) (int, error) {
	if m.countFollowersFn != nil {
		return m.countFollowersFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockFollowRepository) CountFollowing(ctx context.Context, userID string) (int, error) {
	if m.countFollowingFn != nil {
		return m.countFollowingFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockFollowRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
	if m.getFollowersFn != nil {
		return m.getFollowersFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, userID, cursor, limit)
	}
	return nil, nil, nil
}

func (m *mockFollowRepository) CheckFollows(ctx context.Context, followerID string, ids []string) (map[string]bool, error) {
	if m.checkFollowsFn != nil {
		return m.checkFollowsFn(ctx, followerID, ids)
	}
	return map[string]bool{}, nil
}

type mockPostRepository struct {
	createFn        func(ctx context.Context, post *model.Post) error
	getByIDFn       func(ctx context.Context, postID, viewerID string) (*model.Post, error)
	listFn          func(ctx context.Context, q model.FeedQuery) ([]model.Post, error)
	deleteFn        func(ctx context.Context, postID, authorID string) (*string, error)
	countByAuthorFn func(ctx context.Context, authorID string) (int, error)
	getAuthorIDFn   func(ctx context.Context, postID string) (string, error)
	likeFn          func(ctx context.Context, postID, userID string) (bool, error)
	unlikeFn        func(ctx context.Context, postID, userID string) (bool, error)
	countLikesFn    func(ctx context.Context, postID string) (int, error)

	createCalls int
}

func (m *mockPostRepository) Create(ctx context.Context, post *model.Post) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, post)
	}
	post.ID = "post-1"
	post.CreatedAt = time.Now()
	return nil
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID, viewerID string) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID, viewerID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) List(ctx context.Context, q model.FeedQuery) ([]model.Post, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return nil, nil
}

func (m *mockPostRepository) Delete(ctx context.Context, postID, authorID string) (*string, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, postID, authorID)
	}
	return nil, nil
}

func (m *mockPostRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	if m.countByAuthorFn != nil {
		return m.countByAuthorFn(ctx, authorID)
	}
	return 0, nil
}

func (m *mockPostRepository) GetAuthorID(ctx context.Context, postID string) (string, error) {
	if m.getAuthorIDFn != nil {
		return m.getAuthorIDFn(ctx, postID)
	}
	return "author", nil
}

func (m *mockPostRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, postID, userID)
	}
	return true, nil
}

func (m *mockPostRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, postID, userID)
	}
	return true, nil
}

func (m *mockPostRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	if m.countLikesFn != nil {
		return m.countLikesFn(ctx, postID)
	}
	return 0, nil
}

type mockCommentRepository struct {
	createFn     func(ctx context.Context, comment *model.Comment) error
	getByIDFn    func(ctx context.Context, commentID string) (*model.Comment, error)
	listByPostFn func(ctx context.Context, postID, viewerID string) ([]model.Comment, error)
	likeFn       func(ctx context.Context, commentID, userID string) (bool, error)
	unlikeFn     func(ctx context.Context, commentID, userID string) (bool, error)
	countLikesFn func(ctx context.Context, commentID string) (int, error)
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if m.createFn != nil {
		return m.createFn(ctx, comment)
	}
	comment.ID = "comment-1"
	return nil
}

func (m *mockCommentRepository) GetByID(ctx context.Context, commentID string) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, commentID)
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) ListByPost(ctx context.Context, postID, viewerID string) ([]model.Comment, error) {
	if m.listByPostFn != nil {
		return m.listByPostFn(ctx, postID, viewerID)
	}
	return nil, nil
}

func (m *mockCommentRepository) Like(ctx context.Context, commentID, userID string) (bool, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, commentID, userID)
	}
	return true, nil
}

func (m *mockCommentRepository) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, commentID, userID)
	}
	return true, nil
}

func (m *mockCommentRepository) CountLikes(ctx context.Context, commentID string) (int, error) {
	if m.countLikesFn != nil {
		return m.countLikesFn(ctx, commentID)
	}
	return 0, nil
}

type mockChatRepository struct {
	findDirectFn   func(ctx context.Context, userID, targetID string) (string, error)
	createDirectFn func(ctx context.Context, userID, targetID string) (string, bool, error)
	isMemberFn     func(ctx context.Context, chatID, userID string) (bool, error)
	membersFn      func(ctx context.Context, chatID string) ([]string, error)
	listForUserFn  func(ctx context.Context, userID string) ([]model.ChatSummary, error)
}

func (m *mockChatRepository) FindDirect(ctx context.Context, userID, targetID string) (string, error) {
	if m.findDirectFn != nil {
		return m.findDirectFn(ctx, userID, targetID)
	}
	return "", nil
}

func (m *mockChatRepository) CreateDirect(ctx context.Context, userID, targetID string) (string, bool, error) {
	if m.createDirectFn != nil {
		return m.createDirectFn(ctx, userID, targetID)
	}
	return "chat-1", true, nil
}

func (m *mockChatRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	if m.isMemberFn != nil {
		return m.isMemberFn(ctx, chatID, userID)
	}
	return true, nil
}

func (m *mockChatRepository) Members(ctx context.Context, chatID string) ([]string, error) {
	if m.membersFn != nil {
		return m.membersFn(ctx, chatID)
	}
	return nil, nil
}

func (m *mockChatRepository) ListForUser(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return nil, nil
}

type mockMessageRepository struct {
	createFn      func(ctx context.Context, msg *model.Message) error
	listFn        func(ctx context.Context, chatID string, cursor *model.FeedCursor, limit int) ([]model.Message, error)
	markReadFn    func(ctx context.Context, chatID, readerID string) (int64, error)
	countUnreadFn func(ctx context.Context, userID string) (int, error)
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	if m.createFn != nil {
		return m.createFn(ctx, msg)
	}
	msg.ID = "msg-1"
	msg.CreatedAt = time.Now()
	return nil
}

func (m *mockMessageRepository) List(ctx context.Context, chatID string, cursor *model.FeedCursor, limit int) ([]model.Message, error) {
	if m.listFn != nil {
		return m.listFn(ctx, chatID, cursor, limit)
	}
	return nil, nil
}

func (m *mockMessageRepository) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, chatID, readerID)
	}
	return 0, nil
}

func (m *mockMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	if m.countUnreadFn != nil {
		return m.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

type mockNotificationRepository struct {
	createFn      func(ctx context.Context, n model.NewNotification) (*model.Notification, error)
	listRecentFn  func(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	countUnreadFn func(ctx context.Context, userID string) (int, error)
	markAllReadFn func(ctx context.Context, userID string) (int64, error)
}

func (m *mockNotificationRepository) Create(ctx context.Context, n model.NewNotification) (*model.Notification, error) {
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	return &model.Notification{ID: "notif-1", UserID: n.UserID, ActorID: n.ActorID, Type: n.Type, Payload: n.Payload}, nil
}

func (m *mockNotificationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockNotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	if m.countUnreadFn != nil {
		return m.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.markAllReadFn != nil {
		return m.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

// refreshTokenTable is an in-memory refresh_tokens table.
type refreshTokenTable struct {
	mu     sync.Mutex
	byHash map[string]*model.RefreshToken
	seq    int
}

func newRefreshTokenTable() *refreshTokenTable {
	return &refreshTokenTable{byHash: map[string]*model.RefreshToken{}}
}

func (t *refreshTokenTable) Create(ctx context.Context, token *model.RefreshToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	token.ID = "rt-" + strconv.Itoa(t.seq)
	token.CreatedAt = time.Now()
	stored := *token
	t.byHash[token.TokenHash] = &stored
	return nil
}

func (t *refreshTokenTable) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	token, ok := t.byHash[tokenHash]
	if !ok {
		return nil, model.ErrRefreshTokenNotFound
	}
	found := *token
	return &found, nil
}

func (t *refreshTokenTable) Rotate(ctx context.Context, currentID string, next *model.RefreshToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.byID(currentID)
	if current == nil || current.RevokedAt != nil {
		return model.ErrRefreshTokenReused
	}
	t.seq++
	next.ID = "rt-" + strconv.Itoa(t.seq)
	next.CreatedAt = time.Now()
	stored := *next
	t.byHash[next.TokenHash] = &stored

	now := time.Now()
	current.RevokedAt = &now
	current.ReplacedBy = &stored.ID
	return nil
}

func (t *refreshTokenTable) Revoke(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token := t.byID(id); token != nil && token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
	}
	return nil
}

func (t *refreshTokenTable) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	var n int64
	for _, token := range t.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (t *refreshTokenTable) byID(id string) *model.RefreshToken {
	for _, token := range t.byHash {
		if token.ID == id {
			return token
		}
	}
	return nil
}

func (t *refreshTokenTable) active(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, token := range t.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			n++
		}
	}
	return n
}

type mockDeviceTokenRepository struct {
	upsertFn func(ctx context.Context, userID, token, platform string) error
	tokensFn func(ctx context.Context, userID string) ([]string, error)
	deleteFn func(ctx context.Context, userID string, tokens ...string) (int64, error)
}

func (m *mockDeviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, token, platform)
	}
	return nil
}

func (m *mockDeviceTokenRepository) Tokens(ctx context.Context, userID string) ([]string, error) {
	if m.tokensFn != nil {
		return m.tokensFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDeviceTokenRepository) Delete(ctx context.Context, userID string, tokens ...string) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, tokens...)
	}
	return int64(len(tokens)), nil
}

// =============================================================================
// MOCK COLLABORATORS
// =============================================================================

type mockStore struct {
	putFn    func(ctx context.Context, key string, body []byte, contentType string) (*model.UploadResult, error)
	deleteFn func(ctx context.Context, key string) error

	mu      sync.Mutex
	puts    []string
	deletes []string
}

func (m *mockStore) Put(ctx context.Context, key string, body []byte, contentType string) (*model.UploadResult, error) {
	m.mu.Lock()
	m.puts = append(m.puts, key)
	m.mu.Unlock()
	if m.putFn != nil {
		return m.putFn(ctx, key, body, contentType)
	}
	return &model.UploadResult{URL: "https://cdn.test/" + key, Key: key}, nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, key)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []queue.ActivityEvent
}

func (m *mockPublisher) Publish(ctx context.Context, stream string, event queue.ActivityEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return "1-0", nil
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type mockPusher struct {
	sendFn func(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error)

	bodies []string
}

func (m *mockPusher) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	m.bodies = append(m.bodies, body)
	if m.sendFn != nil {
		return m.sendFn(ctx, tokens, title, body, data)
	}
	return nil, nil
}
