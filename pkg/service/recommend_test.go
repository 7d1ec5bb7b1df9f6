package service_test

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/personalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/mock"
	"personify/pkg/service"
)

func newRecommendService(t *testing.T) (*service.RecommendService, *mock.PersonalizeClient, *mock.PersonalizeRuntimeClient, *mock.PersonalizeEventsClient) {
	newClient, client := mock.NewPersonalizeMock()
	newRuntime, runtime := mock.NewPersonalizeRuntimeMock()
	newEvents, events := mock.NewPersonalizeEventsMock()

	c, err := newClient("us-east-1")
	require.NoError(t, err)
	rt, err := newRuntime("us-east-1")
	require.NoError(t, err)
	ev, err := newEvents("us-east-1")
	require.NoError(t, err)

	svc := service.NewRecommendService(&service.RecommendServiceArguments{
		Client:           c,
		Runtime:          rt,
		Events:           ev,
		DatasetGroupName: "dsg",
		SolutionName:     "sol",
		CampaignName:     "cmp",
		RoleARN:          "arn:aws:iam::000000000000:role/personalize",
		RecipeARN:        "arn:aws:personalize:::recipe/aws-user-personalization",
		SchemaARN:        "arn:aws:personalize:us-east-1:000000000000:schema/interactions",
	})
	return svc, client, runtime, events
}

func TestEnsureDatasetGroupIdempotent(t *testing.T) {
	svc, _, _, _ := newRecommendService(t)

	first, err := svc.EnsureDatasetGroup("t1")
	require.NoError(t, err)
	assert.Equal(t, "dsg-t1", first.Name)
	assert.NotEmpty(t, first.ARN)

	second, err := svc.EnsureDatasetGroup("t1")
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.ARN, second.ARN)
}

func TestEnsureResourcesPerTenant(t *testing.T) {
	svc, _, _, _ := newRecommendService(t)

	dg1, err := svc.EnsureDatasetGroup("t1")
	require.NoError(t, err)
	dg2, err := svc.EnsureDatasetGroup("t2")
	require.NoError(t, err)
	assert.NotEqual(t, dg1.ARN, dg2.ARN)

	ds, err := svc.EnsureDataset("t1", "interactions", dg1.ARN)
	require.NoError(t, err)
	assert.Equal(t, "dsg-interactions-t1", ds.Name)

	_, err = svc.EnsureDataset("t1", "bogus", dg1.ARN)
	assert.Error(t, err)

	sol, err := svc.EnsureSolution("t1", dg1.ARN)
	require.NoError(t, err)
	assert.Equal(t, "sol-t1", sol.Name)

	sol2, err := svc.EnsureSolution("t1", dg1.ARN)
	require.NoError(t, err)
	assert.Equal(t, sol.ARN, sol2.ARN)

	version, err := svc.CreateSolutionVersion(sol.ARN)
	require.NoError(t, err)
	assert.NotEmpty(t, version.ARN)

	campaign, err := svc.EnsureCampaign("t1", version.ARN, 1)
	require.NoError(t, err)
	assert.Equal(t, "cmp-t1", campaign.Name)

	campaign2, err := svc.EnsureCampaign("t1", version.ARN, 1)
	require.NoError(t, err)
	assert.Equal(t, campaign.ARN, campaign2.ARN)
}

func TestImportData(t *testing.T) {
	svc, _, _, _ := newRecommendService(t)

	dg, err := svc.EnsureDatasetGroup("t1")
	require.NoError(t, err)
	ds, err := svc.EnsureDataset("t1", "interactions", dg.ARN)
	require.NoError(t, err)

	job1, err := svc.ImportData("t1", ds.ARN, "s3://bucket/datasets/t1/interactions/x.csv")
	require.NoError(t, err)
	job2, err := svc.ImportData("t1", ds.ARN, "s3://bucket/datasets/t1/interactions/x.csv")
	require.NoError(t, err)
	assert.NotEqual(t, job1.Name, job2.Name)
}

func TestGetRecommendations(t *testing.T) {
	svc, client, runtime, _ := newRecommendService(t)

	t.Run("missing campaign is not-found", func(t *testing.T) {
		_, err := svc.GetRecommendations("t1", "u1", 5, nil)
		assert.Error(t, err)
	})

	_, err := svc.EnsureCampaign("t1", "arn:version", 1)
	require.NoError(t, err)
	client.SetStatus("cmp-t1", "ACTIVE")

	runtime.SetItems(map[string]float64{"i1": 0.9, "i2": 0.8, "i3": 0.7}, []string{"i1", "i2", "i3"})

	t.Run("returns ranked items up to limit", func(t *testing.T) {
		recs, err := svc.GetRecommendations("t1", "u1", 2, map[string]string{"category": "books"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "i1", recs[0].ItemID)
		assert.Equal(t, 0.9, recs[0].Score)
	})
}

func TestPutEvents(t *testing.T) {
	svc, _, _, events := newRecommendService(t)

	err := svc.PutEvents("tracking-1", "u1", "session-1", []*personify.InteractionEvent{
		{EventType: "clicked", ItemID: "i1"},
	})
	require.NoError(t, err)
	require.Len(t, events.Requests, 1)
	assert.Equal(t, "tracking-1", *events.Requests[0].TrackingId)

	err = svc.PutEvents("tracking-1", "u1", "session-1", nil)
	assert.Error(t, err)
}

func TestGetTrainingStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses map[string]string
		expected personify.OverallStatus
	}{
		{
			name:     "nothing exists",
			statuses: nil,
			expected: personify.StatusIncomplete,
		},
		{
			name: "any creating means training",
			statuses: map[string]string{
				"dsg-t1": "ACTIVE", "sol-t1": "CREATE IN_PROGRESS", "cmp-t1": "ACTIVE",
			},
			expected: personify.StatusTraining,
		},
		{
			name: "creating outranks a simultaneous failure",
			statuses: map[string]string{
				"dsg-t1": "CREATE FAILED", "sol-t1": "CREATING", "cmp-t1": "ACTIVE",
			},
			expected: personify.StatusTraining,
		},
		{
			name: "all active means ready",
			statuses: map[string]string{
				"dsg-t1": "ACTIVE", "sol-t1": "ACTIVE", "cmp-t1": "ACTIVE",
			},
			expected: personify.StatusReady,
		},
		{
			name: "failure without creating means failed",
			statuses: map[string]string{
				"dsg-t1": "ACTIVE", "sol-t1": "CREATE FAILED", "cmp-t1": "ACTIVE",
			},
			expected: personify.StatusFailed,
		},
		{
			name: "partial set is incomplete",
			statuses: map[string]string{
				"dsg-t1": "ACTIVE",
			},
			expected: personify.StatusIncomplete,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, client, _, _ := newRecommendService(t)

			if _, ok := tc.statuses["dsg-t1"]; ok {
				_, err := svc.EnsureDatasetGroup("t1")
				require.NoError(t, err)
			}
			if _, ok := tc.statuses["sol-t1"]; ok {
				_, err := svc.EnsureSolution("t1", "arn:dsg")
				require.NoError(t, err)
			}
			if _, ok := tc.statuses["cmp-t1"]; ok {
				_, err := svc.EnsureCampaign("t1", "arn:version", 1)
				require.NoError(t, err)
			}
			for name, status := range tc.statuses {
				client.SetStatus(name, status)
			}

			status, err := svc.GetTrainingStatus("t1")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status.Overall)
			assert.Len(t, status.Components, 3)

			if len(tc.statuses) == 0 {
				assert.Equal(t, "NOT_FOUND", status.Components["dataset_group"])
			}
		})
	}
}

// flakyPersonalizeClient fails every list call to exercise degraded status
// reporting.
type flakyPersonalizeClient struct {
	adaptor.PersonalizeClient
}

func (x *flakyPersonalizeClient) ListDatasetGroups(input *personalize.ListDatasetGroupsInput) (*personalize.ListDatasetGroupsOutput, error) {
	return nil, awserr.New("ThrottlingException", "rate exceeded", nil)
}

func (x *flakyPersonalizeClient) ListSolutions(input *personalize.ListSolutionsInput) (*personalize.ListSolutionsOutput, error) {
	return nil, awserr.New("ThrottlingException", "rate exceeded", nil)
}

func (x *flakyPersonalizeClient) ListCampaigns(input *personalize.ListCampaignsInput) (*personalize.ListCampaignsOutput, error) {
	return nil, awserr.New("ThrottlingException", "rate exceeded", nil)
}

func TestGetTrainingStatusDegradesOnLookupFailure(t *testing.T) {
	newClient, _ := mock.NewPersonalizeMock()
	c, err := newClient("us-east-1")
	require.NoError(t, err)

	svc := service.NewRecommendService(&service.RecommendServiceArguments{
		Client:           &flakyPersonalizeClient{PersonalizeClient: c},
		DatasetGroupName: "dsg",
		SolutionName:     "sol",
		CampaignName:     "cmp",
	})

	status, err := svc.GetTrainingStatus("t1")
	require.NoError(t, err)
	assert.Equal(t, personify.StatusIncomplete, status.Overall)
	assert.Equal(t, "NOT_FOUND", status.Components["dataset_group"])
	assert.Equal(t, "NOT_FOUND", status.Components["solution"])
	assert.Equal(t, "NOT_FOUND", status.Components["campaign"])
}
