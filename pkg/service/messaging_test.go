package service_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify"
	"personify/pkg/mock"
	"personify/pkg/service"
)

func newMessagingService(t *testing.T) (*service.MessagingService, *mock.PinpointClient) {
	newClient, client := mock.NewPinpointMock()
	c, err := newClient("us-east-1")
	require.NoError(t, err)

	svc := service.NewMessagingService(&service.MessagingServiceArguments{
		Client:        c,
		ApplicationID: "app-1",
		FromAddress:   "noreply@example.com",
	})
	return svc, client
}

func TestSegments(t *testing.T) {
	svc, _ := newMessagingService(t)

	segment, err := svc.CreateSegment("t1", "spring-sale", map[string][]string{
		"UserId": {"u1", "u2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "spring-sale-t1", segment.Name)
	assert.NotEmpty(t, segment.ID)

	got, err := svc.GetSegment("t1", segment.ID)
	require.NoError(t, err)
	assert.Equal(t, segment.ID, got.ID)
}

func TestCampaigns(t *testing.T) {
	svc, client := newMessagingService(t)

	segment, err := svc.CreateSegment("t1", "sale", nil)
	require.NoError(t, err)

	email, err := svc.SendEmailCampaign("t1", "sale", segment.ID, "Big Sale", "<p>Hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "sale-t1", email.Name)
	assert.Equal(t, "EMAIL", email.Channel)

	sms, err := svc.SendSMSCampaign("t1", "sale-sms", segment.ID, strings.Repeat("x", 200))
	require.NoError(t, err)
	assert.Equal(t, "SMS", sms.Channel)

	t.Run("list filters by tenant tag", func(t *testing.T) {
		otherSegment, err := svc.CreateSegment("t2", "other", nil)
		require.NoError(t, err)
		_, err = svc.SendEmailCampaign("t2", "other", otherSegment.ID, "s", "b")
		require.NoError(t, err)

		campaigns, err := svc.ListCampaigns("t1")
		require.NoError(t, err)
		assert.Len(t, campaigns, 2)
		for _, c := range campaigns {
			assert.Equal(t, "t1", c.TenantID)
		}
	})

	t.Run("delivery counts come from activities", func(t *testing.T) {
		client.SetActivity(email.ID, 8, 10)

		delivery, err := svc.GetCampaignDelivery("t1", email.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(8), delivery.Successful)
		assert.Equal(t, int64(10), delivery.Total)
	})

	t.Run("delete removes the campaign", func(t *testing.T) {
		require.NoError(t, svc.DeleteCampaign("t1", sms.ID))
		campaigns, err := svc.ListCampaigns("t1")
		require.NoError(t, err)
		assert.Len(t, campaigns, 1)
	})
}

func TestSendPersonalizedRecommendations(t *testing.T) {
	recs := []*personify.Recommendation{
		{ItemID: "i1", Score: 0.9},
		{ItemID: "i2", Score: 0.8},
		{ItemID: "i3", Score: 0.7},
		{ItemID: "i4", Score: 0.6},
		{ItemID: "i5", Score: 0.5},
		{ItemID: "i6", Score: 0.4},
	}

	t.Run("unsupported channel fails before any network call", func(t *testing.T) {
		svc, client := newMessagingService(t)

		_, err := svc.SendPersonalizedRecommendations("t1", "u1", "PIGEON", recs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported channel")
		assert.Empty(t, client.SendRequests)
	})

	t.Run("email lists at most five items as HTML", func(t *testing.T) {
		svc, client := newMessagingService(t)

		result, err := svc.SendPersonalizedRecommendations("t1", "u1", "email", recs)
		require.NoError(t, err)
		assert.Equal(t, "EMAIL", result.Channel)
		assert.NotEmpty(t, result.MessageID)

		require.Len(t, client.SendRequests, 1)
		html := aws.StringValue(client.SendRequests[0].SendUsersMessageRequest.
			MessageConfiguration.EmailMessage.SimpleEmail.HtmlPart.Data)
		assert.Contains(t, html, "i5")
		assert.NotContains(t, html, "i6")
	})

	t.Run("sms body is truncated to one segment", func(t *testing.T) {
		svc, client := newMessagingService(t)

		long := make([]*personify.Recommendation, 5)
		for i := range long {
			long[i] = &personify.Recommendation{ItemID: strings.Repeat("a", 50), Score: 1}
		}

		_, err := svc.SendPersonalizedRecommendations("t1", "u1", "SMS", long)
		require.NoError(t, err)

		require.Len(t, client.SendRequests, 1)
		body := aws.StringValue(client.SendRequests[0].SendUsersMessageRequest.
			MessageConfiguration.SMSMessage.Body)
		assert.LessOrEqual(t, len(body), 140)
	})

	t.Run("sms truncation keeps multi-byte text valid", func(t *testing.T) {
		svc, client := newMessagingService(t)

		long := make([]*personify.Recommendation, 5)
		for i := range long {
			long[i] = &personify.Recommendation{ItemID: strings.Repeat("抹茶", 20), Score: 1}
		}

		_, err := svc.SendPersonalizedRecommendations("t1", "u1", "SMS", long)
		require.NoError(t, err)

		require.Len(t, client.SendRequests, 1)
		body := aws.StringValue(client.SendRequests[0].SendUsersMessageRequest.
			MessageConfiguration.SMSMessage.Body)
		assert.LessOrEqual(t, len(body), 140)
		assert.True(t, utf8.ValidString(body))
	})

	t.Run("empty recommendation list is rejected", func(t *testing.T) {
		svc, _ := newMessagingService(t)
		_, err := svc.SendPersonalizedRecommendations("t1", "u1", "EMAIL", nil)
		assert.Error(t, err)
	})
}

func TestEndpoints(t *testing.T) {
	svc, _ := newMessagingService(t)

	t.Run("upsert derives a stable endpoint id", func(t *testing.T) {
		endpoint, err := svc.UpsertEndpoint("t1", "u1", "EMAIL", "u1@example.com", map[string][]string{
			"Segment": {"vip"},
		})
		require.NoError(t, err)
		assert.Equal(t, "t1-u1-email", endpoint.ID)

		got, err := svc.GetEndpoint("t1", "u1", "EMAIL")
		require.NoError(t, err)
		assert.Equal(t, "u1@example.com", got.Address)
		assert.Equal(t, "EMAIL", got.ChannelType)
	})

	t.Run("unsupported channel is rejected", func(t *testing.T) {
		_, err := svc.UpsertEndpoint("t1", "u1", "FAX", "123", nil)
		assert.Error(t, err)
	})
}
