package instagram

import (
	"context"
	"time"

	"github.com/socialflowhq/socialflow/internal/models"
)

// Client is the surface of the Instagram Graph API the publishing pipeline
// consumes. Implementations must bound every call with a timeout.
type Client interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	ListAccounts(ctx context.Context, accessToken string) ([]*Profile, error)
	RefreshToken(ctx context.Context, accessToken string) (*Token, error)
	CreateContainer(ctx context.Context, accessToken, igUserID string, params ContainerParams) (string, error)
	GetContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerStatus, error)
	PublishContainer(ctx context.Context, accessToken, igUserID, containerID string) (string, error)
}

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type Profile struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	AccountType    string `json:"account_type"`
	ProfilePicture string `json:"profile_picture_url"`
	FollowersCount int64  `json:"followers_count"`
}

// IsBusiness reports whether the profile can receive published content.
// Personal accounts cannot use the content publishing API.
func (p *Profile) IsBusiness() bool {
	return p.AccountType == string(models.AccountTypeBusiness) ||
		p.AccountType == string(models.AccountTypeCreator)
}

type ContainerParams struct {
	MediaURLs    []string
	Caption      string
	MediaType    models.MediaType
	ThumbnailURL string
}

type ContainerStatus string

const (
	ContainerStatusInProgress ContainerStatus = "IN_PROGRESS"
	ContainerStatusFinished   ContainerStatus = "FINISHED"
	ContainerStatusError      ContainerStatus = "ERROR"
)
