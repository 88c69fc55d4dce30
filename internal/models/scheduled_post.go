package models

import (
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
)

type PostStatus string

const (
	PostStatusPending    PostStatus = "pending"
	PostStatusProcessing PostStatus = "processing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

type MediaType string

const (
	MediaTypeImage    MediaType = "IMAGE"
	MediaTypeVideo    MediaType = "VIDEO"
	MediaTypeCarousel MediaType = "CAROUSEL"
)

const (
	MaxCaptionLength = 2200
	MaxHashtagCount  = 30
)

var hashtagPattern = regexp.MustCompile(`#[\pL\pN_]+`)

type ScheduledPost struct {
	ID               int64          `db:"id" json:"id"`
	AccountID        int64          `db:"account_id" json:"account_id"`
	UserID           int64          `db:"user_id" json:"user_id"`
	MediaURLs        pq.StringArray `db:"media_urls" json:"media_urls"`
	Caption          string         `db:"caption" json:"caption"`
	MediaType        MediaType      `db:"media_type" json:"media_type"`
	ThumbnailURL     string         `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	ScheduledFor     time.Time      `db:"scheduled_for" json:"scheduled_for"`
	Timezone         string         `db:"timezone" json:"timezone"`
	Status           PostStatus     `db:"status" json:"status"`
	ContainerID      string         `db:"container_id" json:"container_id,omitempty"`
	PublishedMediaID string         `db:"published_media_id" json:"published_media_id,omitempty"`
	ErrorMessage     string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount       int            `db:"retry_count" json:"retry_count"`
	LastRetryAt      *time.Time     `db:"last_retry_at" json:"last_retry_at,omitempty"`
	PublishedAt      *time.Time     `db:"published_at" json:"published_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

func NewScheduledPost(accountID, userID int64, mediaURLs []string, caption string, mediaType MediaType, thumbnailURL string, scheduledFor time.Time, timezone string) (*ScheduledPost, error) {
	if err := validateContent(mediaURLs, caption, mediaType); err != nil {
		return nil, err
	}
	if err := validateSchedule(scheduledFor, timezone); err != nil {
		return nil, err
	}

	now := time.Now()
	return &ScheduledPost{
		AccountID:    accountID,
		UserID:       userID,
		MediaURLs:    mediaURLs,
		Caption:      caption,
		MediaType:    mediaType,
		ThumbnailURL: thumbnailURL,
		ScheduledFor: scheduledFor,
		Timezone:     timezone,
		Status:       PostStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func validateContent(mediaURLs []string, caption string, mediaType MediaType) error {
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return &ValidationError{Field: "caption", Reason: "caption exceeds 2200 characters"}
	}
	if len(hashtagPattern.FindAllString(caption, -1)) > MaxHashtagCount {
		return &ValidationError{Field: "caption", Reason: "caption exceeds 30 hashtags"}
	}

	switch mediaType {
	case MediaTypeImage, MediaTypeVideo:
		if len(mediaURLs) != 1 {
			return &ValidationError{Field: "media_urls", Reason: "single posts require exactly one media url"}
		}
	case MediaTypeCarousel:
		if len(mediaURLs) < 2 {
			return &ValidationError{Field: "media_urls", Reason: "carousel posts require at least two media urls"}
		}
	default:
		return &ValidationError{Field: "media_type", Reason: "media type must be IMAGE, VIDEO or CAROUSEL"}
	}
	return nil
}

func validateSchedule(scheduledFor time.Time, timezone string) error {
	if scheduledFor.IsZero() {
		return &ValidationError{Field: "scheduled_for", Reason: "scheduled time is required"}
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return &ValidationError{Field: "timezone", Reason: "unknown IANA timezone"}
	}
	return nil
}

func (p *ScheduledPost) IsDue(now time.Time) bool {
	return !now.Before(p.ScheduledFor)
}

func (p *ScheduledPost) IsReadyToPublish(now time.Time) bool {
	return p.Status == PostStatusPending && p.IsDue(now)
}

func (p *ScheduledPost) IsTerminal() bool {
	return p.Status == PostStatusPublished || p.Status == PostStatusCancelled
}

func (p *ScheduledPost) CanRetry(maxRetries int) bool {
	return p.Status == PostStatusFailed && p.RetryCount < maxRetries
}

// MarkAsProcessing records the remote container once publishing has started.
// The store-level claim flips the persisted row; this keeps the in-memory
// entity on the same transition table.
func (p *ScheduledPost) MarkAsProcessing(containerID string) error {
	if p.Status != PostStatusPending && p.Status != PostStatusFailed {
		return &TransitionError{From: p.Status, To: PostStatusProcessing}
	}
	p.Status = PostStatusProcessing
	p.ContainerID = containerID
	p.UpdatedAt = time.Now()
	return nil
}

func (p *ScheduledPost) MarkAsPublished(mediaID string) error {
	if p.Status != PostStatusProcessing {
		return &TransitionError{From: p.Status, To: PostStatusPublished}
	}
	now := time.Now()
	p.Status = PostStatusPublished
	p.PublishedMediaID = mediaID
	p.ErrorMessage = ""
	p.PublishedAt = &now
	p.UpdatedAt = now
	return nil
}

func (p *ScheduledPost) MarkAsFailed(message string) error {
	if p.IsTerminal() {
		return &TransitionError{From: p.Status, To: PostStatusFailed}
	}
	now := time.Now()
	p.Status = PostStatusFailed
	p.ErrorMessage = message
	p.RetryCount++
	p.LastRetryAt = &now
	p.UpdatedAt = now
	return nil
}

// ExhaustRetries takes a failed post out of the retry pool. The due-post
// sweep only picks up failed posts with retry budget left, so a failure that
// more attempts cannot fix must burn the remaining budget here.
func (p *ScheduledPost) ExhaustRetries(maxRetries int) {
	if p.RetryCount < maxRetries {
		p.RetryCount = maxRetries
	}
	p.UpdatedAt = time.Now()
}

func (p *ScheduledPost) MarkAsCancelled() error {
	if p.IsTerminal() {
		return &TransitionError{From: p.Status, To: PostStatusCancelled}
	}
	p.Status = PostStatusCancelled
	p.UpdatedAt = time.Now()
	return nil
}

func (p *ScheduledPost) ResetForRetry(maxRetries int) error {
	if !p.CanRetry(maxRetries) {
		return &TransitionError{From: p.Status, To: PostStatusPending}
	}
	p.Status = PostStatusPending
	p.UpdatedAt = time.Now()
	return nil
}

// UpdateContent replaces the payload of a post that has not started publishing.
func (p *ScheduledPost) UpdateContent(mediaURLs []string, caption string, mediaType MediaType, thumbnailURL string) error {
	if p.Status != PostStatusPending {
		return &TransitionError{From: p.Status, To: PostStatusPending}
	}
	if err := validateContent(mediaURLs, caption, mediaType); err != nil {
		return err
	}
	p.MediaURLs = mediaURLs
	p.Caption = caption
	p.MediaType = mediaType
	p.ThumbnailURL = thumbnailURL
	p.UpdatedAt = time.Now()
	return nil
}

func (p *ScheduledPost) Reschedule(scheduledFor time.Time, timezone string) error {
	if p.Status != PostStatusPending {
		return &TransitionError{From: p.Status, To: PostStatusPending}
	}
	if err := validateSchedule(scheduledFor, timezone); err != nil {
		return err
	}
	p.ScheduledFor = scheduledFor
	p.Timezone = timezone
	p.UpdatedAt = time.Now()
	return nil
}
