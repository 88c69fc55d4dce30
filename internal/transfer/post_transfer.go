package transfer

type PostCreation struct {
	AccountID    int64    `json:"account_id"`
	MediaURLs    []string `json:"media_urls"`
	Caption      string   `json:"caption"`
	MediaType    string   `json:"media_type"`
	ThumbnailURL string   `json:"thumbnail_url"`
	ScheduledFor string   `json:"scheduled_for"`
	Timezone     string   `json:"timezone"`
}

type PostUpdate struct {
	MediaURLs    []string `json:"media_urls"`
	Caption      string   `json:"caption"`
	MediaType    string   `json:"media_type"`
	ThumbnailURL string   `json:"thumbnail_url"`
}

type PostReschedule struct {
	ScheduledFor string `json:"scheduled_for"`
	Timezone     string `json:"timezone"`
}

type PostFilter struct {
	AccountID int64
	Status    string
	From      string
	To        string
	Limit     int
	Offset    int
}
