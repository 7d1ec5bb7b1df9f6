package adaptor

import (
	"github.com/guregu/dynamo"

	"personify/pkg/errors"
)

// RecommendationCacheItem is one cached recommendation list.
// Recommendations holds the normalized (Number) form of the item list.
type RecommendationCacheItem struct {
	TenantID        string      `dynamo:"tenant_id"`
	UserID          string      `dynamo:"user_id"`
	Recommendations interface{} `dynamo:"recommendations"`
	CachedAt        string      `dynamo:"cached_at"`
	ExpiresAt       int64       `dynamo:"ttl"`
}

// UserProfileItem is one stored user profile.
type UserProfileItem struct {
	TenantID    string      `dynamo:"tenant_id"`
	UserID      string      `dynamo:"user_id"`
	ProfileData interface{} `dynamo:"profile_data"`
	CreatedAt   string      `dynamo:"created_at"`
	UpdatedAt   string      `dynamo:"updated_at"`
}

// CampaignEventItem is one append-only campaign tracking row. The store's
// native TTL sweeps these; ExpiresAt is only written, never enforced here.
type CampaignEventItem struct {
	TenantID   string      `dynamo:"tenant_id"`
	EventID    string      `dynamo:"event_id"`
	CampaignID string      `dynamo:"campaign_id"`
	UserID     string      `dynamo:"user_id"`
	EventType  string      `dynamo:"event_type"`
	EventData  interface{} `dynamo:"event_data"`
	Timestamp  string      `dynamo:"timestamp"`
	ExpiresAt  int64       `dynamo:"ttl"`
}

type Repository interface {
	PutRecommendationCache(item *RecommendationCacheItem) error
	GetRecommendationCache(tenantID, userID string) (*RecommendationCacheItem, error)
	DeleteRecommendationCache(tenantID, userID string) error
	QueryExpiredRecommendations(tenantID string, now int64) ([]*RecommendationCacheItem, error)

	PutUserProfile(item *UserProfileItem) error
	GetUserProfile(tenantID, userID string) (*UserProfileItem, error)
	UpdateUserProfileFields(tenantID, userID, updatedAt string, fields map[string]interface{}) error
	ListUserProfiles(tenantID string, limit int64) ([]*UserProfileItem, error)

	PutCampaignEvent(item *CampaignEventItem) error
	QueryCampaignEvents(tenantID, campaignID string) ([]*CampaignEventItem, error)
	QueryUserEvents(tenantID, userID string, limit int64) ([]*CampaignEventItem, error)
	CountExpiredEvents(tenantID string, now int64) (int64, error)
}

// TableNames holds the three backing table names.
type TableNames struct {
	Recommendations  string
	UserProfiles     string
	CampaignTracking string
}

type RepositoryFactory func(region string, tables TableNames) (Repository, error)

const (
	hashKey       = "tenant_id"
	cacheRangeKey = "user_id"
)

func NewDynamoRepository(region string, tables TableNames) (Repository, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}

	db := dynamo.New(ssn)
	return &DynamoRepository{
		cache:    db.Table(tables.Recommendations),
		profiles: db.Table(tables.UserProfiles),
		events:   db.Table(tables.CampaignTracking),
	}, nil
}

type DynamoRepository struct {
	cache    dynamo.Table
	profiles dynamo.Table
	events   dynamo.Table
}

func (x *DynamoRepository) PutRecommendationCache(item *RecommendationCacheItem) error {
	if err := x.cache.Put(item).Run(); err != nil {
		return errors.Wrap(err, "PutRecommendationCache").With("item", item)
	}
	return nil
}

func (x *DynamoRepository) GetRecommendationCache(tenantID, userID string) (*RecommendationCacheItem, error) {
	var item RecommendationCacheItem
	err := x.cache.Get(hashKey, tenantID).Range(cacheRangeKey, dynamo.Equal, userID).One(&item)
	if err == dynamo.ErrNotFound {
		return nil, errors.Wrap(errors.ErrNotFound, "recommendation cache").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "GetRecommendationCache").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	return &item, nil
}

func (x *DynamoRepository) DeleteRecommendationCache(tenantID, userID string) error {
	err := x.cache.Delete(hashKey, tenantID).Range(cacheRangeKey, userID).Run()
	if err != nil {
		return errors.Wrap(err, "DeleteRecommendationCache").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	return nil
}

func (x *DynamoRepository) QueryExpiredRecommendations(tenantID string, now int64) ([]*RecommendationCacheItem, error) {
	var items []*RecommendationCacheItem
	err := x.cache.Get(hashKey, tenantID).Filter("'ttl' < ?", now).All(&items)
	if err != nil {
		return nil, errors.Wrap(err, "QueryExpiredRecommendations").With("tenant_id", tenantID)
	}
	return items, nil
}

func (x *DynamoRepository) PutUserProfile(item *UserProfileItem) error {
	if err := x.profiles.Put(item).Run(); err != nil {
		return errors.Wrap(err, "PutUserProfile").With("item", item)
	}
	return nil
}

func (x *DynamoRepository) GetUserProfile(tenantID, userID string) (*UserProfileItem, error) {
	var item UserProfileItem
	err := x.profiles.Get(hashKey, tenantID).Range(cacheRangeKey, dynamo.Equal, userID).One(&item)
	if err == dynamo.ErrNotFound {
		return nil, errors.Wrap(errors.ErrNotFound, "user profile").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "GetUserProfile").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	return &item, nil
}

func (x *DynamoRepository) UpdateUserProfileFields(tenantID, userID, updatedAt string, fields map[string]interface{}) error {
	q := x.profiles.Update(hashKey, tenantID).
		Range(cacheRangeKey, userID).
		Set("updated_at", updatedAt)
	for name, value := range fields {
		q = q.Set("'profile_data'.'"+name+"'", value)
	}

	if err := q.Run(); err != nil {
		return errors.Wrap(err, "UpdateUserProfileFields").
			With("tenant_id", tenantID).With("user_id", userID).With("fields", fields)
	}
	return nil
}

func (x *DynamoRepository) ListUserProfiles(tenantID string, limit int64) ([]*UserProfileItem, error) {
	var items []*UserProfileItem
	err := x.profiles.Get(hashKey, tenantID).Limit(limit).All(&items)
	if err != nil {
		return nil, errors.Wrap(err, "ListUserProfiles").With("tenant_id", tenantID)
	}
	return items, nil
}

func (x *DynamoRepository) PutCampaignEvent(item *CampaignEventItem) error {
	if err := x.events.Put(item).Run(); err != nil {
		return errors.Wrap(err, "PutCampaignEvent").With("item", item)
	}
	return nil
}

func (x *DynamoRepository) QueryCampaignEvents(tenantID, campaignID string) ([]*CampaignEventItem, error) {
	var items []*CampaignEventItem
	err := x.events.Get(hashKey, tenantID).
		Filter("'campaign_id' = ?", campaignID).
		All(&items)
	if err != nil {
		return nil, errors.Wrap(err, "QueryCampaignEvents").
			With("tenant_id", tenantID).With("campaign_id", campaignID)
	}
	return items, nil
}

func (x *DynamoRepository) QueryUserEvents(tenantID, userID string, limit int64) ([]*CampaignEventItem, error) {
	var items []*CampaignEventItem
	err := x.events.Get(hashKey, tenantID).
		Filter("'user_id' = ?", userID).
		Order(dynamo.Descending).
		Limit(limit).
		All(&items)
	if err != nil {
		return nil, errors.Wrap(err, "QueryUserEvents").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	return items, nil
}

func (x *DynamoRepository) CountExpiredEvents(tenantID string, now int64) (int64, error) {
	n, err := x.events.Get(hashKey, tenantID).Filter("'ttl' < ?", now).Count()
	if err != nil {
		return 0, errors.Wrap(err, "CountExpiredEvents").With("tenant_id", tenantID)
	}
	return n, nil
}
