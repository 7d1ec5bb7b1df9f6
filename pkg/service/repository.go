package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

// Retention of campaign tracking rows. The store's native TTL sweeps them.
const eventRetention = 90 * 24 * time.Hour

type RepositoryService struct {
	repo adaptor.Repository
	now  func() time.Time
}

// NewRepositoryService is constructor of RepositoryService
func NewRepositoryService(repo adaptor.Repository) *RepositoryService {
	return &RepositoryService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CacheRecommendations stores recs for tenantID/userID with a TTL of
// ttlHours. Scores are normalized to the store's fixed-point form so the
// exact float64 values survive the round trip.
func (x *RepositoryService) CacheRecommendations(tenantID, userID string, recs []*personify.Recommendation, ttlHours int) error {
	now := x.now()
	items := make([]interface{}, len(recs))
	for i, rec := range recs {
		items[i] = map[string]interface{}{
			"item_id": rec.ItemID,
			"score":   rec.Score,
		}
	}

	item := &adaptor.RecommendationCacheItem{
		TenantID:        tenantID,
		UserID:          userID,
		Recommendations: adaptor.FloatsToNumbers(items),
		CachedAt:        now.Format(time.RFC3339),
		ExpiresAt:       now.Add(time.Duration(ttlHours) * time.Hour).Unix(),
	}
	if err := x.repo.PutRecommendationCache(item); err != nil {
		return errors.Wrap(err, "Failed to cache recommendations").
			With("tenant_id", tenantID).With("user_id", userID)
	}
	return nil
}

// GetCachedRecommendations returns the cached list for tenantID/userID, or
// nil without error when no live entry exists. An expired entry is deleted
// on read and treated as a miss.
func (x *RepositoryService) GetCachedRecommendations(tenantID, userID string) ([]*personify.Recommendation, error) {
	item, err := x.repo.GetRecommendationCache(tenantID, userID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if item.ExpiresAt < x.now().Unix() {
		if err := x.repo.DeleteRecommendationCache(tenantID, userID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return decodeRecommendations(item.Recommendations), nil
}

// InvalidateRecommendations drops the cache entry for tenantID/userID.
func (x *RepositoryService) InvalidateRecommendations(tenantID, userID string) error {
	return x.repo.DeleteRecommendationCache(tenantID, userID)
}

func decodeRecommendations(stored interface{}) []*personify.Recommendation {
	list, ok := adaptor.NumbersToFloats(stored).([]interface{})
	if !ok {
		return nil
	}

	// Non-nil even when empty so a cached empty result still reads as a hit.
	recs := make([]*personify.Recommendation, 0, len(list))
	for _, entry := range list {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		rec := &personify.Recommendation{}
		if v, ok := fields["item_id"].(string); ok {
			rec.ItemID = v
		}
		if v, ok := fields["score"].(float64); ok {
			rec.Score = v
		}
		recs = append(recs, rec)
	}
	return recs
}

// PutUserProfile creates or replaces the profile of tenantID/userID.
// CreatedAt is preserved when the profile already exists.
func (x *RepositoryService) PutUserProfile(tenantID, userID string, data map[string]interface{}) (*personify.UserProfile, error) {
	now := x.now().Format(time.RFC3339)
	createdAt := now
	if existing, err := x.repo.GetUserProfile(tenantID, userID); err == nil {
		createdAt = existing.CreatedAt
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	item := &adaptor.UserProfileItem{
		TenantID:    tenantID,
		UserID:      userID,
		ProfileData: adaptor.FloatsToNumbers(data),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	if err := x.repo.PutUserProfile(item); err != nil {
		return nil, errors.Wrap(err, "Failed to put user profile").
			With("tenant_id", tenantID).With("user_id", userID)
	}

	return &personify.UserProfile{
		TenantID:    tenantID,
		UserID:      userID,
		ProfileData: data,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}, nil
}

// GetUserProfile returns the profile of tenantID/userID.
func (x *RepositoryService) GetUserProfile(tenantID, userID string) (*personify.UserProfile, error) {
	item, err := x.repo.GetUserProfile(tenantID, userID)
	if err != nil {
		return nil, err
	}
	return profileFromItem(item), nil
}

// UpdateUserProfile merges fields into the existing profile data of
// tenantID/userID. Untouched attributes are preserved.
func (x *RepositoryService) UpdateUserProfile(tenantID, userID string, fields map[string]interface{}) (*personify.UserProfile, error) {
	if _, err := x.repo.GetUserProfile(tenantID, userID); err != nil {
		return nil, err
	}

	now := x.now().Format(time.RFC3339)
	converted := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		converted[name] = adaptor.FloatsToNumbers(value)
	}
	if err := x.repo.UpdateUserProfileFields(tenantID, userID, now, converted); err != nil {
		return nil, err
	}

	return x.GetUserProfile(tenantID, userID)
}

// ListUserProfiles returns up to limit profiles of the tenant.
func (x *RepositoryService) ListUserProfiles(tenantID string, limit int64) ([]*personify.UserProfile, error) {
	items, err := x.repo.ListUserProfiles(tenantID, limit)
	if err != nil {
		return nil, err
	}

	profiles := make([]*personify.UserProfile, len(items))
	for i, item := range items {
		profiles[i] = profileFromItem(item)
	}
	return profiles, nil
}

func profileFromItem(item *adaptor.UserProfileItem) *personify.UserProfile {
	data, _ := adaptor.NumbersToFloats(item.ProfileData).(map[string]interface{})
	return &personify.UserProfile{
		TenantID:    item.TenantID,
		UserID:      item.UserID,
		ProfileData: data,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// TrackCampaignEvent appends one campaign event. The event id embeds
// campaign, user and timestamp plus a random fragment so that rapid
// successive events of one user never collide.
func (x *RepositoryService) TrackCampaignEvent(tenantID, campaignID, userID string, eventType personify.EventType, eventData map[string]interface{}) (*personify.CampaignEvent, error) {
	now := x.now()
	eventID := fmt.Sprintf("%s#%s#%d#%s", campaignID, userID, now.Unix(), uuid.NewString()[:8])

	item := &adaptor.CampaignEventItem{
		TenantID:   tenantID,
		EventID:    eventID,
		CampaignID: campaignID,
		UserID:     userID,
		EventType:  string(eventType),
		EventData:  adaptor.FloatsToNumbers(eventData),
		Timestamp:  now.Format(time.RFC3339),
		ExpiresAt:  now.Add(eventRetention).Unix(),
	}
	if err := x.repo.PutCampaignEvent(item); err != nil {
		return nil, errors.Wrap(err, "Failed to track campaign event").
			With("tenant_id", tenantID).With("campaign_id", campaignID).With("user_id", userID)
	}

	return &personify.CampaignEvent{
		EventID:    eventID,
		CampaignID: campaignID,
		UserID:     userID,
		EventType:  eventType,
		EventData:  eventData,
		Timestamp:  item.Timestamp,
	}, nil
}

// GetUserEvents returns up to limit most recent events of tenantID/userID.
func (x *RepositoryService) GetUserEvents(tenantID, userID string, limit int64) ([]*personify.CampaignEvent, error) {
	items, err := x.repo.QueryUserEvents(tenantID, userID, limit)
	if err != nil {
		return nil, err
	}

	events := make([]*personify.CampaignEvent, len(items))
	for i, item := range items {
		data, _ := adaptor.NumbersToFloats(item.EventData).(map[string]interface{})
		events[i] = &personify.CampaignEvent{
			EventID:    item.EventID,
			CampaignID: item.CampaignID,
			UserID:     item.UserID,
			EventType:  personify.EventType(item.EventType),
			EventData:  data,
			Timestamp:  item.Timestamp,
		}
	}
	return events, nil
}

// GetCampaignMetrics aggregates tracked events of tenantID/campaignID.
// Click-through and conversion rates are percentages against "sent" events
// and 0 when nothing was sent.
func (x *RepositoryService) GetCampaignMetrics(tenantID, campaignID string) (*personify.CampaignMetrics, error) {
	items, err := x.repo.QueryCampaignEvents(tenantID, campaignID)
	if err != nil {
		return nil, err
	}

	metrics := &personify.CampaignMetrics{
		CampaignID:   campaignID,
		TotalEvents:  len(items),
		EventsByType: make(map[personify.EventType]int),
	}

	users := make(map[string]struct{})
	for _, item := range items {
		users[item.UserID] = struct{}{}
		metrics.EventsByType[personify.EventType(item.EventType)]++
	}
	metrics.UniqueUsers = len(users)

	sent := metrics.EventsByType[personify.EventSent]
	if sent > 0 {
		metrics.ClickThroughRate = float64(metrics.EventsByType[personify.EventClicked]) / float64(sent) * 100
		metrics.ConversionRate = float64(metrics.EventsByType[personify.EventConverted]) / float64(sent) * 100
	}
	return metrics, nil
}

// CleanupExpiredItems deletes expired recommendation cache rows of the
// tenant and reports how many expired event rows await the store's own TTL
// sweep.
func (x *RepositoryService) CleanupExpiredItems(tenantID string) (*personify.CleanupReport, error) {
	now := x.now().Unix()

	expired, err := x.repo.QueryExpiredRecommendations(tenantID, now)
	if err != nil {
		return nil, err
	}
	for _, item := range expired {
		if err := x.repo.DeleteRecommendationCache(item.TenantID, item.UserID); err != nil {
			return nil, err
		}
	}

	eventCount, err := x.repo.CountExpiredEvents(tenantID, now)
	if err != nil {
		return nil, err
	}

	return &personify.CleanupReport{
		Recommendations: len(expired),
		Events:          int(eventCount),
	}, nil
}
