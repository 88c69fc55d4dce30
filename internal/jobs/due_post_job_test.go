package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/instagram"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
)

func jobConfig() config.Config {
	return config.Config{
		MaxRetryCount: 3,
		RetryBackoff:  5 * time.Minute,
	}
}

// memPostRepo mirrors the conditional-write semantics of the Postgres
// repository so claim races behave the same way under test.
type memPostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.ScheduledPost
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{posts: make(map[int64]*models.ScheduledPost)}
}

func (r *memPostRepo) Create(ctx context.Context, p *models.ScheduledPost) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	clone := *p
	r.posts[p.ID] = &clone
	return p.ID, nil
}

func (r *memPostRepo) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *memPostRepo) List(ctx context.Context, f repository.PostFilter) ([]*models.ScheduledPost, error) {
	return nil, nil
}

func (r *memPostRepo) ListDue(ctx context.Context, now time.Time, retryCap int, retryBackoff time.Duration) ([]*models.ScheduledPost, error) {
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

func (r *memPostRepo) Claim(ctx context.Context, id int64) (bool, error) {
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
	return true, nil
}

func (r *memPostRepo) CancelIfNotTerminal(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.IsTerminal() {
		return false, nil
	}
	p.Status = models.PostStatusCancelled
	return true, nil
}

func (r *memPostRepo) UpdateIfPending(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[p.ID]
	if !ok || stored.Status != models.PostStatusPending {
		return false, nil
	}
	clone := *p
	r.posts[p.ID] = &clone
	return true, nil
}

func (r *memPostRepo) UpdateIfProcessing(ctx context.Context, p *models.ScheduledPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[p.ID]
	if !ok || stored.Status != models.PostStatusProcessing {
		return false, nil
	}
	clone := *p
	r.posts[p.ID] = &clone
	return true, nil
}

func (r *memPostRepo) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	return ok && p.UserID == userID, nil
}

// scriptedEngine stands in for the publishing engine. Each call applies the
// scripted outcome and persists it, the way the real engine does.
type scriptedEngine struct {
	repo *memPostRepo

	mu        sync.Mutex
	calls     []int64
	publishFn func(post *models.ScheduledPost) error
}

func (e *scriptedEngine) Publish(ctx context.Context, post *models.ScheduledPost) error {
	e.mu.Lock()
	e.calls = append(e.calls, post.ID)
	fn := e.publishFn
	e.mu.Unlock()

	if fn != nil {
		if err := fn(post); err != nil {
			_ = post.MarkAsFailed(err.Error())
			_, _ = e.repo.UpdateIfProcessing(ctx, post)
			return err
		}
	}

	if err := post.MarkAsProcessing("container-1"); err != nil {
		return err
	}
	if err := post.MarkAsPublished("media-1"); err != nil {
		return err
	}
	if _, err := e.repo.UpdateIfProcessing(ctx, post); err != nil {
		return err
	}
	return nil
}

func (e *scriptedEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func seedDuePost(t *testing.T, repo *memPostRepo, scheduledFor time.Time) *models.ScheduledPost {
	t.Helper()
	post, err := models.NewScheduledPost(1, 42,
		[]string{"https://cdn.example.com/a.jpg"}, "hello",
		models.MediaTypeImage, "", scheduledFor, "UTC")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), post)
	require.NoError(t, err)
	return post
}

func TestProcessDuePostsPublishesDuePost(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo}
	post := seedDuePost(t, repo, time.Now().Add(-time.Minute))

	NewDuePostJob(jobConfig(), repo, engine).ProcessDuePosts()

	stored, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
	assert.Equal(t, "media-1", stored.PublishedMediaID)
	assert.Equal(t, 1, engine.callCount())
}

func TestProcessDuePostsSkipsFuturePosts(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo}
	post := seedDuePost(t, repo, time.Now().Add(time.Hour))

	NewDuePostJob(jobConfig(), repo, engine).ProcessDuePosts()

	stored, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPending, stored.Status)
	assert.Zero(t, engine.callCount())
}

func TestProcessDuePostsExhaustsRetries(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo, publishFn: func(post *models.ScheduledPost) error {
		return &instagram.APIError{StatusCode: 503, Message: "server busy", Transient: true}
	}}
	post := seedDuePost(t, repo, time.Now().Add(-time.Minute))
	sweep := NewDuePostJob(jobConfig(), repo, engine)

	// First run fails the post, two more exhaust the retry budget.
	sweep.ProcessDuePosts()
	for i := 0; i < 2; i++ {
		// Age the failure past the backoff window so the next run picks it up.
		repo.mu.Lock()
		past := time.Now().Add(-10 * time.Minute)
		repo.posts[post.ID].LastRetryAt = &past
		repo.mu.Unlock()

		sweep.ProcessDuePosts()
	}

	stored, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.False(t, stored.CanRetry(jobConfig().MaxRetryCount))
	assert.Equal(t, 3, engine.callCount())

	// A fourth run must leave the exhausted post alone.
	repo.mu.Lock()
	past := time.Now().Add(-10 * time.Minute)
	repo.posts[post.ID].LastRetryAt = &past
	repo.mu.Unlock()
	sweep.ProcessDuePosts()
	assert.Equal(t, 3, engine.callCount())
}

func TestProcessDuePostsRespectsRetryBackoff(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo, publishFn: func(post *models.ScheduledPost) error {
		return &instagram.APIError{StatusCode: 503, Message: "server busy", Transient: true}
	}}
	seedDuePost(t, repo, time.Now().Add(-time.Minute))
	sweep := NewDuePostJob(jobConfig(), repo, engine)

	sweep.ProcessDuePosts()
	require.Equal(t, 1, engine.callCount())

	// The failure is seconds old; the five minute backoff holds it back.
	sweep.ProcessDuePosts()
	assert.Equal(t, 1, engine.callCount())
}

func TestRateLimitedBatchStaysRetryable(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo, publishFn: func(post *models.ScheduledPost) error {
		return models.ErrRateLimited
	}}
	for i := 0; i < 3; i++ {
		seedDuePost(t, repo, time.Now().Add(-time.Minute))
	}

	NewDuePostJob(jobConfig(), repo, engine).ProcessDuePosts()

	// Rate-limited attempts are ordinary failures with retry budget left, so
	// the next sweep after the backoff picks them up again.
	repo.mu.Lock()
	for _, p := range repo.posts {
		if p.Status == models.PostStatusFailed {
			assert.True(t, p.CanRetry(jobConfig().MaxRetryCount))
		} else {
			assert.Equal(t, models.PostStatusPending, p.Status)
		}
	}
	repo.mu.Unlock()
}

func TestConcurrentSweepsClaimOnce(t *testing.T) {
	repo := newMemPostRepo()
	engine := &scriptedEngine{repo: repo}
	post := seedDuePost(t, repo, time.Now().Add(-time.Minute))

	sweep := NewDuePostJob(jobConfig(), repo, engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep.ProcessDuePosts()
		}()
	}
	wg.Wait()

	// Only one sweep wins the conditional write; everyone else skips.
	assert.Equal(t, 1, engine.callCount())

	stored, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublished, stored.Status)
}
