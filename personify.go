package personify

import "time"

// Recommendation is one ranked item returned by the recommender or served
// from the cache.
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// UserProfile holds attributes of one user within a tenant.
type UserProfile struct {
	TenantID    string                 `json:"tenant_id"`
	UserID      string                 `json:"user_id"`
	ProfileData map[string]interface{} `json:"profile_data"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
}

// EventType classifies a tracked campaign event.
type EventType string

const (
	EventSent      EventType = "sent"
	EventOpened    EventType = "opened"
	EventClicked   EventType = "clicked"
	EventConverted EventType = "converted"
)

// CampaignEvent is one tracked interaction of a user with a campaign.
type CampaignEvent struct {
	EventID    string                 `json:"event_id"`
	CampaignID string                 `json:"campaign_id"`
	UserID     string                 `json:"user_id"`
	EventType  EventType              `json:"event_type"`
	EventData  map[string]interface{} `json:"event_data"`
	Timestamp  string                 `json:"timestamp"`
}

// CampaignMetrics aggregates tracked events of one campaign. Rates are
// percentages and defined as 0 when no "sent" event exists.
type CampaignMetrics struct {
	CampaignID       string            `json:"campaign_id"`
	TotalEvents      int               `json:"total_events"`
	UniqueUsers      int               `json:"unique_users"`
	EventsByType     map[EventType]int `json:"events_by_type"`
	ClickThroughRate float64           `json:"click_through_rate"`
	ConversionRate   float64           `json:"conversion_rate"`
}

// CleanupReport counts removed (or removal-pending) expired rows per table.
// The event count is best-effort: actual deletion of events is store-managed.
type CleanupReport struct {
	Recommendations int `json:"recommendations"`
	Events          int `json:"events"`
}

// Resource is the pass-through shape of a recommender-side resource
// (dataset group, dataset, import job, solution, solution version, campaign).
type Resource struct {
	Name   string `json:"name"`
	ARN    string `json:"arn"`
	Status string `json:"status"`
}

// OverallStatus is the reduced training status across recommender resources.
type OverallStatus string

const (
	StatusTraining   OverallStatus = "TRAINING"
	StatusReady      OverallStatus = "READY"
	StatusFailed     OverallStatus = "FAILED"
	StatusIncomplete OverallStatus = "INCOMPLETE"
)

// TrainingStatus reports per-component and reduced training state of a tenant.
type TrainingStatus struct {
	TenantID   string            `json:"tenant_id"`
	Overall    OverallStatus     `json:"overall_status"`
	Components map[string]string `json:"components"`
}

// InteractionEvent is a real-time event forwarded to the recommender.
type InteractionEvent struct {
	EventType string    `json:"event_type"`
	ItemID    string    `json:"item_id"`
	SentAt    time.Time `json:"sent_at"`
}

// Dataset is a tabular in-memory structure for dataset uploads. All cells are
// kept as strings, matching the CSV files the recommender ingests.
type Dataset struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ObjectInfo describes a stored object right after upload or copy.
type ObjectInfo struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ETag      string `json:"etag"`
	VersionID string `json:"version_id,omitempty"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// ObjectEntry is one listing result. Key is tenant-prefix-stripped.
type ObjectEntry struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
	StorageClass string    `json:"storage_class"`
}

// ObjectMeta is the head-object view of a stored object.
type ObjectMeta struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ETag         string            `json:"etag"`
	ContentType  string            `json:"content_type"`
	Metadata     map[string]string `json:"metadata"`
	VersionID    string            `json:"version_id,omitempty"`
}

// Segment is a messaging-side user segment.
type Segment struct {
	ID       string `json:"segment_id"`
	Name     string `json:"segment_name"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
}

// MessageCampaign is a messaging-side campaign (email or SMS).
type MessageCampaign struct {
	ID        string `json:"campaign_id"`
	Name      string `json:"campaign_name"`
	TenantID  string `json:"tenant_id"`
	SegmentID string `json:"segment_id"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
}

// SendResult reports a direct personalized send to one user.
type SendResult struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	Channel   string `json:"channel"`
	Items     int    `json:"recommendations_count"`
	Status    string `json:"status"`
}

// Endpoint is a messaging delivery address of one user on one channel.
type Endpoint struct {
	ID          string `json:"endpoint_id"`
	UserID      string `json:"user_id"`
	TenantID    string `json:"tenant_id"`
	ChannelType string `json:"channel_type"`
	Address     string `json:"address"`
	Status      string `json:"status"`
}

// Execution is a workflow execution in pass-through form.
type Execution struct {
	ARN       string `json:"execution_arn"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at,omitempty"`
	StoppedAt string `json:"stopped_at,omitempty"`
}
