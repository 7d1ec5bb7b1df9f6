package mock

import (
	"sort"

	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

// Repository is an in-memory mock of adaptor.Repository.
type Repository struct {
	cache    map[string]map[string]*adaptor.RecommendationCacheItem
	profiles map[string]map[string]*adaptor.UserProfileItem
	events   map[string][]*adaptor.CampaignEventItem
}

// NewRepository is constructor of mock.Repository
func NewRepository() *Repository {
	return &Repository{
		cache:    make(map[string]map[string]*adaptor.RecommendationCacheItem),
		profiles: make(map[string]map[string]*adaptor.UserProfileItem),
		events:   make(map[string][]*adaptor.CampaignEventItem),
	}
}

func (x *Repository) PutRecommendationCache(item *adaptor.RecommendationCacheItem) error {
	tmap, ok := x.cache[item.TenantID]
	if !ok {
		tmap = make(map[string]*adaptor.RecommendationCacheItem)
		x.cache[item.TenantID] = tmap
	}
	tmap[item.UserID] = item
	return nil
}

func (x *Repository) GetRecommendationCache(tenantID, userID string) (*adaptor.RecommendationCacheItem, error) {
	item, ok := x.cache[tenantID][userID]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "recommendation cache")
	}
	return item, nil
}

func (x *Repository) DeleteRecommendationCache(tenantID, userID string) error {
	delete(x.cache[tenantID], userID)
	return nil
}

func (x *Repository) QueryExpiredRecommendations(tenantID string, now int64) ([]*adaptor.RecommendationCacheItem, error) {
	var items []*adaptor.RecommendationCacheItem
	for _, item := range x.cache[tenantID] {
		if item.ExpiresAt < now {
			items = append(items, item)
		}
	}
	return items, nil
}

func (x *Repository) PutUserProfile(item *adaptor.UserProfileItem) error {
	tmap, ok := x.profiles[item.TenantID]
	if !ok {
		tmap = make(map[string]*adaptor.UserProfileItem)
		x.profiles[item.TenantID] = tmap
	}
	tmap[item.UserID] = item
	return nil
}

func (x *Repository) GetUserProfile(tenantID, userID string) (*adaptor.UserProfileItem, error) {
	item, ok := x.profiles[tenantID][userID]
	if !ok {
		return nil, errors.Wrap(errors.ErrNotFound, "user profile")
	}
	return item, nil
}

func (x *Repository) UpdateUserProfileFields(tenantID, userID, updatedAt string, fields map[string]interface{}) error {
	item, ok := x.profiles[tenantID][userID]
	if !ok {
		return errors.New("no such profile")
	}

	data, _ := item.ProfileData.(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	for name, value := range fields {
		data[name] = value
	}
	item.ProfileData = data
	item.UpdatedAt = updatedAt
	return nil
}

func (x *Repository) ListUserProfiles(tenantID string, limit int64) ([]*adaptor.UserProfileItem, error) {
	var items []*adaptor.UserProfileItem
	for _, item := range x.profiles[tenantID] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UserID < items[j].UserID })
	if int64(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (x *Repository) PutCampaignEvent(item *adaptor.CampaignEventItem) error {
	// Same event_id overwrite keeps last-writer-wins semantics of the store.
	for i, ev := range x.events[item.TenantID] {
		if ev.EventID == item.EventID {
			x.events[item.TenantID][i] = item
			return nil
		}
	}
	x.events[item.TenantID] = append(x.events[item.TenantID], item)
	return nil
}

func (x *Repository) QueryCampaignEvents(tenantID, campaignID string) ([]*adaptor.CampaignEventItem, error) {
	var items []*adaptor.CampaignEventItem
	for _, ev := range x.events[tenantID] {
		if ev.CampaignID == campaignID {
			items = append(items, ev)
		}
	}
	return items, nil
}

func (x *Repository) QueryUserEvents(tenantID, userID string, limit int64) ([]*adaptor.CampaignEventItem, error) {
	var items []*adaptor.CampaignEventItem
	for _, ev := range x.events[tenantID] {
		if ev.UserID == userID {
			items = append(items, ev)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EventID > items[j].EventID })
	if int64(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (x *Repository) CountExpiredEvents(tenantID string, now int64) (int64, error) {
	var n int64
	for _, ev := range x.events[tenantID] {
		if ev.ExpiresAt < now {
			n++
		}
	}
	return n, nil
}
