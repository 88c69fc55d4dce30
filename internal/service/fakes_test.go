package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/socialflowhq/socialflow/internal/instagram"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
)

// In-memory repositories backing the service tests. Claim and cancel use the
// same compare-and-set semantics as the Postgres implementations.

type fakePostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.ScheduledPost
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int64]*models.ScheduledPost)}
}

func (r *fakePostRepo) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	clone := *p
	r.posts[p.ID] = &clone
	return p.ID, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *fakePostRepo) List(ctx context.Context, f repository.PostFilter) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, p := range r.posts {
		if p.UserID != f.UserID {
			continue
		}
		if f.AccountID != 0 && p.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.From != nil && p.ScheduledFor.Before(*f.From) {
			continue
		}
		if f.To != nil && p.ScheduledFor.After(*f.To) {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, retryCap int, retryBackoff time.Duration) ([]*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ScheduledPost
	for _, p := range r.posts {
		if !p.IsDue(now) {
			continue
		}
		pending := p.Status == models.PostStatusPending
		retryable := p.Status == models.PostStatusFailed && p.RetryCount < retryCap &&
			p.LastRetryAt != nil && !p.LastRetryAt.After(now.Add(-retryBackoff))
		if pending || retryable {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Claim(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return false, nil
	}
	if p.Status != models.PostStatusPending && p.Status != models.PostStatusFailed {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakePostRepo) CancelIfNotTerminal(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.IsTerminal() {
		return false, nil
	}
	p.Status = models.PostStatusCancelled
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakePostRepo) UpdateIfPending(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[p.ID]
	if !ok {
		return false, errors.New("post not found")
	}
	if stored.Status != models.PostStatusPending {
		return false, nil
	}
	stored.MediaURLs = p.MediaURLs
	stored.Caption = p.Caption
	stored.MediaType = p.MediaType
	stored.ThumbnailURL = p.ThumbnailURL
	stored.ScheduledFor = p.ScheduledFor
	stored.Timezone = p.Timezone
	stored.UpdatedAt = p.UpdatedAt
	return true, nil
}

func (r *fakePostRepo) UpdateIfProcessing(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[p.ID]
	if !ok {
		return false, errors.New("post not found")
	}
	if stored.Status != models.PostStatusProcessing {
		return false, nil
	}
	stored.Status = p.Status
	stored.ContainerID = p.ContainerID
	stored.PublishedMediaID = p.PublishedMediaID
	stored.ErrorMessage = p.ErrorMessage
	stored.RetryCount = p.RetryCount
	stored.LastRetryAt = p.LastRetryAt
	stored.PublishedAt = p.PublishedAt
	stored.UpdatedAt = p.UpdatedAt
	return true, nil
}

func (r *fakePostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.ConnectedAccount
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[int64]*models.ConnectedAccount)}
}

func (r *fakeAccountRepo) Upsert(ctx context.Context, a *models.ConnectedAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.accounts {
		if existing.UserID == a.UserID && existing.IGUserID == a.IGUserID {
			a.ID = id
			clone := *a
			clone.IsActive = true
			r.accounts[id] = &clone
			return id, nil
		}
	}
	r.nextID++
	a.ID = r.nextID
	clone := *a
	r.accounts[a.ID] = &clone
	return a.ID, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	clone := *a
	return &clone, nil
}

func (r *fakeAccountRepo) ListByUserID(ctx context.Context, userID int64) ([]*models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ConnectedAccount
	for _, a := range r.accounts {
		if a.UserID == userID {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]*models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ConnectedAccount
	for _, a := range r.accounts {
		if a.IsActive && a.TokenExpiresAt.Before(cutoff) {
			clone := *a
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	return ok && a.UserID == userID, nil
}

func (r *fakeAccountRepo) UpdateToken(ctx context.Context, id int64, accessToken string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	a.AccessToken = accessToken
	a.TokenExpiresAt = expiresAt
	a.UpdatedAt = time.Now()
	return nil
}

func (r *fakeAccountRepo) Deactivate(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return models.ErrAccountNotFound
	}
	a.IsActive = false
	a.AccessToken = ""
	a.UpdatedAt = time.Now()
	return nil
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*models.OAuthState)}
}

func (r *fakeStateRepo) Create(ctx context.Context, s *models.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.states[s.State] = &clone
	return nil
}

func (r *fakeStateRepo) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[state]
	if !ok {
		return nil, nil
	}
	delete(r.states, state)
	return s, nil
}

func (r *fakeStateRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.states {
		if s.IsExpired(now) {
			delete(r.states, k)
		}
	}
	return nil
}

// fakeIGClient stubs the Instagram client. Unset hooks use happy-path
// defaults; call counters let tests assert no remote calls happened.
type fakeIGClient struct {
	mu sync.Mutex

	exchangeFn  func(code string) (*instagram.Token, error)
	accountsFn  func(accessToken string) ([]*instagram.Profile, error)
	refreshFn   func(accessToken string) (*instagram.Token, error)
	containerFn func(params instagram.ContainerParams) (string, error)
	statusFn    func(containerID string) (instagram.ContainerStatus, error)
	publishFn   func(containerID string) (string, error)

	containerCalls int
	publishCalls   int
}

func (f *fakeIGClient) AuthCodeURL(state string) string {
	return "https://www.instagram.com/oauth/authorize?state=" + state
}

func (f *fakeIGClient) ExchangeCode(ctx context.Context, code string) (*instagram.Token, error) {
	if f.exchangeFn != nil {
		return f.exchangeFn(code)
	}
	return &instagram.Token{AccessToken: "long-lived-token", ExpiresAt: time.Now().Add(60 * 24 * time.Hour)}, nil
}

func (f *fakeIGClient) ListAccounts(ctx context.Context, accessToken string) ([]*instagram.Profile, error) {
	if f.accountsFn != nil {
		return f.accountsFn(accessToken)
	}
	return []*instagram.Profile{{
		ID:          "page-1",
		UserID:      "ig-user-1",
		Username:    "creator",
		AccountType: "BUSINESS",
	}}, nil
}

func (f *fakeIGClient) RefreshToken(ctx context.Context, accessToken string) (*instagram.Token, error) {
	if f.refreshFn != nil {
		return f.refreshFn(accessToken)
	}
	return &instagram.Token{AccessToken: "refreshed-token", ExpiresAt: time.Now().Add(60 * 24 * time.Hour)}, nil
}

func (f *fakeIGClient) CreateContainer(ctx context.Context, accessToken, igUserID string, params instagram.ContainerParams) (string, error) {
	f.mu.Lock()
	f.containerCalls++
	f.mu.Unlock()
	if f.containerFn != nil {
		return f.containerFn(params)
	}
	return "container-1", nil
}

func (f *fakeIGClient) GetContainerStatus(ctx context.Context, accessToken, containerID string) (instagram.ContainerStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(containerID)
	}
	return instagram.ContainerStatusFinished, nil
}

func (f *fakeIGClient) PublishContainer(ctx context.Context, accessToken, igUserID, containerID string) (string, error) {
	f.mu.Lock()
	f.publishCalls++
	f.mu.Unlock()
	if f.publishFn != nil {
		return f.publishFn(containerID)
	}
	return "media-1", nil
}

func (f *fakeIGClient) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containerCalls + f.publishCalls
}
