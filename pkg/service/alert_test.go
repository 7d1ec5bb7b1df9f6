package service_test

import (
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify"
	"personify/pkg/mock"
	"personify/pkg/service"
)

func TestEmitTrainingFailure(t *testing.T) {
	status := &personify.TrainingStatus{
		TenantID: "t1",
		Overall:  personify.StatusFailed,
		Components: map[string]string{
			"dataset_group": "ACTIVE",
			"solution":      "CREATE FAILED",
			"campaign":      "NOT_FOUND",
		},
	}

	t.Run("posts block message to webhook", func(t *testing.T) {
		httpClient := &mock.HTTPClient{}
		svc := service.NewAlertService(&service.AlertServiceArguments{
			SlackIncomingWebhookURL: "https://hooks.slack.example.com/services/x",
			HTTPClient:              httpClient,
		})
		require.True(t, svc.Enabled())

		require.NoError(t, svc.EmitTrainingFailure(status))
		require.Len(t, httpClient.Requests, 1)

		req := httpClient.Requests[0]
		assert.Equal(t, "https://hooks.slack.example.com/services/x", req.URL.String())
		body, err := ioutil.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "t1")
		assert.Contains(t, string(body), "CREATE FAILED")
	})

	t.Run("missing webhook URL is an error", func(t *testing.T) {
		svc := service.NewAlertService(&service.AlertServiceArguments{
			HTTPClient: &mock.HTTPClient{},
		})
		assert.False(t, svc.Enabled())
		assert.Error(t, svc.EmitTrainingFailure(status))
	})
}
