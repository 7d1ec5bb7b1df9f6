package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/arguments"
	"personify/pkg/mock"
	"personify/pkg/service"
)

func TestHandler(t *testing.T) {
	repo := mock.NewRepository()
	args := &arguments.Arguments{
		AwsRegion: "us-east-1",
		NewRepository: func(region string, tables adaptor.TableNames) (adaptor.Repository, error) {
			return repo, nil
		},
	}

	svc := service.NewRepositoryService(repo)
	recs := []*personify.Recommendation{{ItemID: "i1", Score: 1}}
	require.NoError(t, svc.CacheRecommendations("t1", "expired", recs, -1))
	require.NoError(t, svc.CacheRecommendations("t1", "live", recs, 24))
	require.NoError(t, svc.CacheRecommendations("t2", "expired", recs, -1))

	t.Run("sweeps every listed tenant", func(t *testing.T) {
		reports, err := Handler(args, Event{TenantIDs: []string{"t1", "t2"}})
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, 1, reports["t1"].Recommendations)
		assert.Equal(t, 1, reports["t2"].Recommendations)
	})

	t.Run("falls back to the environment tenant list", func(t *testing.T) {
		args.CleanupTenantIDs = "t1, t2"
		reports, err := Handler(args, Event{})
		require.NoError(t, err)
		assert.Len(t, reports, 2)
	})

	t.Run("no tenants is an error", func(t *testing.T) {
		args.CleanupTenantIDs = ""
		_, err := Handler(args, Event{})
		assert.Error(t, err)
	})
}
