package controller_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/personalize"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify/pkg/adaptor"
	"personify/pkg/arguments"
	"personify/pkg/controller"
	"personify/pkg/mock"
)

type testBackend struct {
	s3          *mock.S3Client
	personalize *mock.PersonalizeClient
	runtime     *mock.PersonalizeRuntimeClient
	events      *mock.PersonalizeEventsClient
	pinpoint    *mock.PinpointClient
	sfn         *mock.SFNClient
	http        *mock.HTTPClient
}

func newTestServer(t *testing.T) (*httptest.Server, *testBackend) {
	return newTestServerWithKey(t, "secret")
}

func newTestServerWithKey(t *testing.T, apiKey string) (*httptest.Server, *testBackend) {
	backend := &testBackend{http: &mock.HTTPClient{}}

	newS3, s3Client := mock.NewS3Mock()
	backend.s3 = s3Client
	newPersonalize, personalizeClient := mock.NewPersonalizeMock()
	backend.personalize = personalizeClient
	newRuntime, runtimeClient := mock.NewPersonalizeRuntimeMock()
	backend.runtime = runtimeClient
	newEvents, eventsClient := mock.NewPersonalizeEventsMock()
	backend.events = eventsClient
	newPinpoint, pinpointClient := mock.NewPinpointMock()
	backend.pinpoint = pinpointClient
	newSFN, sfnClient := mock.NewSFNMock()
	backend.sfn = sfnClient

	args := &arguments.Arguments{
		AwsRegion:        "us-east-1",
		APIKey:           apiKey,
		DataBucket:       "test-bucket",
		DatasetGroupName: "dsg",
		SolutionName:     "sol",
		CampaignName:     "cmp",
		PinpointAppID:    "app-1",
		FromAddress:      "noreply@example.com",
		StateMachineARN:  "arn:aws:states:us-east-1:000000000000:stateMachine:training",
		SlackWebhookURL:  "https://hooks.slack.example.com/services/x",
		EventTrackingID:  "tracking-1",

		NewRepository: func(region string, tables adaptor.TableNames) (adaptor.Repository, error) {
			return mock.NewRepository(), nil
		},
		NewS3:                 newS3,
		NewPersonalize:        newPersonalize,
		NewPersonalizeRuntime: newRuntime,
		NewPersonalizeEvents:  newEvents,
		NewPinpoint:           newPinpoint,
		NewSFN:                newSFN,
		HTTP:                  backend.http,
	}
	if apiKey != "" {
		require.NoError(t, args.Validate())
	}

	ctrl, err := controller.New(args)
	require.NoError(t, err)

	server := httptest.NewServer(ctrl.Router())
	t.Cleanup(server.Close)
	return server, backend
}

func doRequest(t *testing.T, server *httptest.Server, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func authHeaders(tenantID string) map[string]string {
	return map[string]string{
		"X-API-Key":   "secret",
		"X-Tenant-ID": tenantID,
	}
}

func TestAuth(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("health needs no auth", func(t *testing.T) {
		resp, body := doRequest(t, server, "GET", "/health", nil, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("missing API key is 401", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/recommendations?user_id=u1", nil, map[string]string{
			"X-Tenant-ID": "t1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong API key is 401", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/recommendations?user_id=u1", nil, map[string]string{
			"X-API-Key":   "wrong",
			"X-Tenant-ID": "t1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing tenant is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/recommendations?user_id=u1", nil, map[string]string{
			"X-API-Key": "secret",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unconfigured key rejects everything", func(t *testing.T) {
		open, _ := newTestServerWithKey(t, "")

		resp, _ := doRequest(t, open, "GET", "/recommendations?user_id=u1", nil, map[string]string{
			"X-Tenant-ID": "t1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = doRequest(t, open, "GET", "/recommendations?user_id=u1", nil, map[string]string{
			"X-API-Key":   "",
			"X-Tenant-ID": "t1",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func uploadRequest(t *testing.T, server *httptest.Server, filename, datasetType string) *http.Response {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("user_id,item_id\nu1,i1\n"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("dataset_type", datasetType))
	require.NoError(t, w.Close())

	req, err := http.NewRequest("POST", server.URL+"/upload", buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range authHeaders("t1") {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestUpload(t *testing.T) {
	server, backend := newTestServer(t)

	t.Run("csv lands under the dataset layout", func(t *testing.T) {
		resp := uploadRequest(t, server, "events.csv", "interactions")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		_, ok := backend.s3.Object("test-bucket", "datasets/t1/interactions/events.csv")
		assert.True(t, ok)
	})

	t.Run("non-csv extension is 400", func(t *testing.T) {
		resp := uploadRequest(t, server, "events.xlsx", "interactions")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad dataset type is 400", func(t *testing.T) {
		resp := uploadRequest(t, server, "events.csv", "bogus")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTrain(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("missing dataset_location is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "POST", "/train", map[string]string{}, authHeaders("t1"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("starts a training execution", func(t *testing.T) {
		resp, body := doRequest(t, server, "POST", "/train", map[string]string{
			"dataset_location": "s3://test-bucket/datasets/t1/interactions/events.csv",
		}, authHeaders("t1"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body["name"], "training-t1-")
		assert.Equal(t, "RUNNING", body["status"])
	})
}

func TestRecommendations(t *testing.T) {
	server, backend := newTestServer(t)

	t.Run("missing user_id is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/recommendations", nil, authHeaders("t1"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	// The tenant's campaign must exist before runtime calls succeed.
	newPersonalizeCampaign(t, backend)
	backend.runtime.SetItems(map[string]float64{"i1": 0.9, "i2": 0.8}, []string{"i1", "i2"})

	t.Run("first read is uncached, second is cached", func(t *testing.T) {
		resp, body := doRequest(t, server, "GET", "/recommendations?user_id=u1&limit=2", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["cached"])
		assert.Len(t, body["recommendations"], 2)

		resp, body = doRequest(t, server, "GET", "/recommendations?user_id=u1", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["cached"])
		assert.Len(t, body["recommendations"], 2)
	})
}

func newPersonalizeCampaign(t *testing.T, backend *testBackend) {
	_, err := backend.personalize.CreateCampaign(&personalize.CreateCampaignInput{
		Name:               aws.String("cmp-t1"),
		SolutionVersionArn: aws.String("arn:version"),
		MinProvisionedTPS:  aws.Int64(1),
	})
	require.NoError(t, err)
	backend.personalize.SetStatus("cmp-t1", "ACTIVE")
}

func TestCampaign(t *testing.T) {
	server, backend := newTestServer(t)

	t.Run("bad channel is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "POST", "/campaign", map[string]interface{}{
			"user_ids": []string{"u1"},
			"message":  "hi",
			"channel":  "PIGEON",
		}, authHeaders("t1"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, backend.pinpoint.SendRequests)
	})

	t.Run("email campaign tracks sent events", func(t *testing.T) {
		resp, body := doRequest(t, server, "POST", "/campaign", map[string]interface{}{
			"name":     "sale",
			"user_ids": []string{"u1", "u2"},
			"message":  "<p>Sale!</p>",
			"subject":  "Big Sale",
			"channel":  "email",
		}, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), body["events_tracked"])

		campaign, ok := body["campaign"].(map[string]interface{})
		require.True(t, ok)
		campaignID, _ := campaign["campaign_id"].(string)
		require.NotEmpty(t, campaignID)

		resp, metrics := doRequest(t, server, "GET", "/metrics?campaign_id="+campaignID, nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(2), metrics["total_events"])
		assert.Equal(t, float64(2), metrics["unique_users"])
	})

	t.Run("metrics without campaign_id is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/metrics", nil, authHeaders("t1"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestStatusAlerting(t *testing.T) {
	server, backend := newTestServer(t)

	t.Run("reports training and campaigns", func(t *testing.T) {
		resp, body := doRequest(t, server, "GET", "/status", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		training, ok := body["training"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "INCOMPLETE", training["overall_status"])
	})

	t.Run("failed training emits a slack alert", func(t *testing.T) {
		_, err := backend.personalize.CreateDatasetGroup(&personalize.CreateDatasetGroupInput{
			Name: aws.String("dsg-t1"),
		})
		require.NoError(t, err)
		backend.personalize.SetStatus("dsg-t1", "CREATE FAILED")

		before := len(backend.http.Requests)
		resp, _ := doRequest(t, server, "GET", "/status", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Greater(t, len(backend.http.Requests), before)
		assert.Contains(t, backend.http.Requests[len(backend.http.Requests)-1].URL.Host, "hooks.slack.example.com")
	})
}

func TestProfiles(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("put then get round trips", func(t *testing.T) {
		resp, body := doRequest(t, server, "PUT", "/profiles/u1", map[string]interface{}{
			"name": "Alice",
			"city": "Tokyo",
		}, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["created_at"])

		resp, body = doRequest(t, server, "GET", "/profiles/u1", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, _ := body["profile_data"].(map[string]interface{})
		assert.Equal(t, "Alice", data["name"])
	})

	t.Run("patch merges fields", func(t *testing.T) {
		resp, body := doRequest(t, server, "PATCH", "/profiles/u1", map[string]interface{}{
			"city": "Osaka",
		}, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, _ := body["profile_data"].(map[string]interface{})
		assert.Equal(t, "Alice", data["name"])
		assert.Equal(t, "Osaka", data["city"])
	})

	t.Run("missing profile is 404", func(t *testing.T) {
		resp, _ := doRequest(t, server, "GET", "/profiles/nobody", nil, authHeaders("t1"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list returns the tenant's profiles", func(t *testing.T) {
		resp, body := doRequest(t, server, "GET", "/profiles", nil, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(1), body["count"])
	})
}

func TestTrackEvent(t *testing.T) {
	server, backend := newTestServer(t)

	t.Run("bad event type is 400", func(t *testing.T) {
		resp, _ := doRequest(t, server, "POST", "/events", map[string]interface{}{
			"campaign_id": "c1",
			"user_id":     "u1",
			"event_type":  "viewed",
		}, authHeaders("t1"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("click with item feeds the recommender tracker", func(t *testing.T) {
		resp, body := doRequest(t, server, "POST", "/events", map[string]interface{}{
			"campaign_id": "c1",
			"user_id":     "u1",
			"event_type":  "clicked",
			"event_data":  map[string]interface{}{"item_id": "i1"},
		}, authHeaders("t1"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body["event_id"].(string), "c1#u1#"))

		require.Len(t, backend.events.Requests, 1)
		assert.Equal(t, "tracking-1", *backend.events.Requests[0].TrackingId)
	})
}
