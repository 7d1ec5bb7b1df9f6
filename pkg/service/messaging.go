package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/pinpoint"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

const (
	// Items shown in a personalized email.
	maxEmailItems = 5
	// Hard cap of one SMS segment.
	maxSMSLength = 140
)

type MessagingServiceArguments struct {
	Client        adaptor.PinpointClient
	ApplicationID string
	FromAddress   string
}

type MessagingService struct {
	args *MessagingServiceArguments
}

// NewMessagingService is constructor of MessagingService
func NewMessagingService(args *MessagingServiceArguments) *MessagingService {
	return &MessagingService{args: args}
}

// endpointID derives the stable endpoint id of one user on one channel.
func endpointID(tenantID, userID, channel string) string {
	return fmt.Sprintf("%s-%s-%s", tenantID, userID, strings.ToLower(channel))
}

func validChannel(channel string) (string, error) {
	switch strings.ToUpper(channel) {
	case "EMAIL":
		return "EMAIL", nil
	case "SMS":
		return "SMS", nil
	default:
		return "", errors.New("unsupported channel, must be EMAIL or SMS").With("channel", channel)
	}
}

// CreateSegment builds a segment of the tenant's users matching the given
// user attributes.
func (x *MessagingService) CreateSegment(tenantID, name string, attributes map[string][]string) (*personify.Segment, error) {
	dimensions := &pinpoint.SegmentDimensions{
		UserAttributes: map[string]*pinpoint.AttributeDimension{
			"TenantId": {
				AttributeType: aws.String("INCLUSIVE"),
				Values:        []*string{aws.String(tenantID)},
			},
		},
	}
	for attr, values := range attributes {
		dimensions.UserAttributes[attr] = &pinpoint.AttributeDimension{
			AttributeType: aws.String("INCLUSIVE"),
			Values:        aws.StringSlice(values),
		}
	}

	output, err := x.args.Client.CreateSegment(&pinpoint.CreateSegmentInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		WriteSegmentRequest: &pinpoint.WriteSegmentRequest{
			Name:       aws.String(resourceName(name, tenantID)),
			Dimensions: dimensions,
			Tags:       map[string]*string{"TenantId": aws.String(tenantID)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create segment").
			With("tenant_id", tenantID).With("name", name)
	}

	return segmentFromResponse(output.SegmentResponse, tenantID), nil
}

// GetSegment returns the segment by id.
func (x *MessagingService) GetSegment(tenantID, segmentID string) (*personify.Segment, error) {
	output, err := x.args.Client.GetSegment(&pinpoint.GetSegmentInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		SegmentId:     aws.String(segmentID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get segment").
			With("tenant_id", tenantID).With("segment_id", segmentID)
	}
	return segmentFromResponse(output.SegmentResponse, tenantID), nil
}

func segmentFromResponse(resp *pinpoint.SegmentResponse, tenantID string) *personify.Segment {
	return &personify.Segment{
		ID:       aws.StringValue(resp.Id),
		Name:     aws.StringValue(resp.Name),
		TenantID: tenantID,
		Status:   "ACTIVE",
	}
}

// SendEmailCampaign creates an immediate email campaign targeting segmentID.
func (x *MessagingService) SendEmailCampaign(tenantID, name, segmentID, subject, htmlBody string) (*personify.MessageCampaign, error) {
	message := &pinpoint.MessageConfiguration{
		EmailMessage: &pinpoint.CampaignEmailMessage{
			FromAddress: aws.String(x.args.FromAddress),
			Title:       aws.String(subject),
			HtmlBody:    aws.String(htmlBody),
		},
	}
	return x.createCampaign(tenantID, name, segmentID, "EMAIL", message)
}

// SendSMSCampaign creates an immediate SMS campaign targeting segmentID.
// The body is truncated to one message segment.
func (x *MessagingService) SendSMSCampaign(tenantID, name, segmentID, body string) (*personify.MessageCampaign, error) {
	message := &pinpoint.MessageConfiguration{
		SMSMessage: &pinpoint.CampaignSmsMessage{
			Body:        aws.String(truncateSMS(body)),
			MessageType: aws.String("PROMOTIONAL"),
		},
	}
	return x.createCampaign(tenantID, name, segmentID, "SMS", message)
}

func (x *MessagingService) createCampaign(tenantID, name, segmentID, channel string, message *pinpoint.MessageConfiguration) (*personify.MessageCampaign, error) {
	output, err := x.args.Client.CreateCampaign(&pinpoint.CreateCampaignInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		WriteCampaignRequest: &pinpoint.WriteCampaignRequest{
			Name:                 aws.String(resourceName(name, tenantID)),
			SegmentId:            aws.String(segmentID),
			MessageConfiguration: message,
			Schedule: &pinpoint.Schedule{
				StartTime: aws.String("IMMEDIATE"),
				Timezone:  aws.String("UTC"),
			},
			Tags: map[string]*string{
				"TenantId": aws.String(tenantID),
				"Channel":  aws.String(channel),
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create campaign").
			With("tenant_id", tenantID).With("name", name).With("channel", channel)
	}

	return campaignFromResponse(output.CampaignResponse, tenantID, channel), nil
}

func campaignFromResponse(resp *pinpoint.CampaignResponse, tenantID, channel string) *personify.MessageCampaign {
	c := &personify.MessageCampaign{
		ID:        aws.StringValue(resp.Id),
		Name:      aws.StringValue(resp.Name),
		TenantID:  tenantID,
		SegmentID: aws.StringValue(resp.SegmentId),
		Channel:   channel,
	}
	if resp.State != nil {
		c.Status = aws.StringValue(resp.State.CampaignStatus)
	}
	return c
}

// SendPersonalizedRecommendations delivers the recommendation list to one
// user over channel as a direct message. The channel is validated before
// anything is sent.
func (x *MessagingService) SendPersonalizedRecommendations(tenantID, userID, channel string, recs []*personify.Recommendation) (*personify.SendResult, error) {
	ch, err := validChannel(channel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.New("no recommendations to send").
			With("tenant_id", tenantID).With("user_id", userID)
	}

	message := &pinpoint.DirectMessageConfiguration{}
	switch ch {
	case "EMAIL":
		message.EmailMessage = &pinpoint.EmailMessage{
			FromAddress: aws.String(x.args.FromAddress),
			SimpleEmail: &pinpoint.SimpleEmail{
				Subject:  &pinpoint.SimpleEmailPart{Data: aws.String("Recommended for you")},
				HtmlPart: &pinpoint.SimpleEmailPart{Data: aws.String(recommendationHTML(recs))},
				TextPart: &pinpoint.SimpleEmailPart{Data: aws.String(recommendationText(recs))},
			},
		}
	case "SMS":
		message.SMSMessage = &pinpoint.SMSMessage{
			Body:        aws.String(truncateSMS(recommendationText(recs))),
			MessageType: aws.String("PROMOTIONAL"),
		}
	}

	output, err := x.args.Client.SendUsersMessages(&pinpoint.SendUsersMessagesInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		SendUsersMessageRequest: &pinpoint.SendUsersMessageRequest{
			MessageConfiguration: message,
			Users: map[string]*pinpoint.EndpointSendConfiguration{
				userID: {},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to send personalized message").
			With("tenant_id", tenantID).With("user_id", userID).With("channel", ch)
	}

	result := &personify.SendResult{
		UserID:   userID,
		TenantID: tenantID,
		Channel:  ch,
		Items:    len(recs),
		Status:   "SENT",
	}
	if output.SendUsersMessageResponse != nil {
		result.MessageID = aws.StringValue(output.SendUsersMessageResponse.RequestId)
	}
	return result, nil
}

// recommendationHTML renders the top items as a simple HTML list.
func recommendationHTML(recs []*personify.Recommendation) string {
	b := &strings.Builder{}
	b.WriteString("<html><body><h2>Recommended for you</h2><ul>")
	for i, rec := range recs {
		if i >= maxEmailItems {
			break
		}
		fmt.Fprintf(b, "<li>%s (score: %.2f)</li>", rec.ItemID, rec.Score)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func recommendationText(recs []*personify.Recommendation) string {
	ids := make([]string, 0, maxEmailItems)
	for i, rec := range recs {
		if i >= maxEmailItems {
			break
		}
		ids = append(ids, rec.ItemID)
	}
	return "Recommended for you: " + strings.Join(ids, ", ")
}

// truncateSMS cuts the body to the SMS limit without splitting a rune.
func truncateSMS(body string) string {
	if len(body) <= maxSMSLength {
		return body
	}
	cut := maxSMSLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// UpsertEndpoint registers or updates the user's delivery address on one
// channel.
func (x *MessagingService) UpsertEndpoint(tenantID, userID, channel, address string, attributes map[string][]string) (*personify.Endpoint, error) {
	ch, err := validChannel(channel)
	if err != nil {
		return nil, err
	}

	id := endpointID(tenantID, userID, ch)
	request := &pinpoint.EndpointRequest{
		ChannelType: aws.String(ch),
		Address:     aws.String(address),
		User: &pinpoint.EndpointUser{
			UserId: aws.String(userID),
			UserAttributes: map[string][]*string{
				"TenantId": {aws.String(tenantID)},
			},
		},
	}
	if len(attributes) > 0 {
		request.Attributes = make(map[string][]*string, len(attributes))
		for attr, values := range attributes {
			request.Attributes[attr] = aws.StringSlice(values)
		}
	}

	_, err = x.args.Client.UpdateEndpoint(&pinpoint.UpdateEndpointInput{
		ApplicationId:   aws.String(x.args.ApplicationID),
		EndpointId:      aws.String(id),
		EndpointRequest: request,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to upsert endpoint").
			With("tenant_id", tenantID).With("user_id", userID).With("channel", ch)
	}

	return &personify.Endpoint{
		ID:          id,
		UserID:      userID,
		TenantID:    tenantID,
		ChannelType: ch,
		Address:     address,
		Status:      "ACTIVE",
	}, nil
}

// GetEndpoint returns the user's endpoint on one channel.
func (x *MessagingService) GetEndpoint(tenantID, userID, channel string) (*personify.Endpoint, error) {
	ch, err := validChannel(channel)
	if err != nil {
		return nil, err
	}

	id := endpointID(tenantID, userID, ch)
	output, err := x.args.Client.GetEndpoint(&pinpoint.GetEndpointInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		EndpointId:    aws.String(id),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get endpoint").
			With("tenant_id", tenantID).With("endpoint_id", id)
	}

	resp := output.EndpointResponse
	return &personify.Endpoint{
		ID:          aws.StringValue(resp.Id),
		UserID:      userID,
		TenantID:    tenantID,
		ChannelType: aws.StringValue(resp.ChannelType),
		Address:     aws.StringValue(resp.Address),
		Status:      "ACTIVE",
	}, nil
}

// ListCampaigns returns the tenant's campaigns, filtered by the TenantId
// tag the service stamps on creation.
func (x *MessagingService) ListCampaigns(tenantID string) ([]*personify.MessageCampaign, error) {
	output, err := x.args.Client.GetCampaigns(&pinpoint.GetCampaignsInput{
		ApplicationId: aws.String(x.args.ApplicationID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list campaigns").With("tenant_id", tenantID)
	}

	var campaigns []*personify.MessageCampaign
	for _, resp := range output.CampaignsResponse.Item {
		if aws.StringValue(resp.Tags["TenantId"]) != tenantID {
			continue
		}
		campaigns = append(campaigns, campaignFromResponse(resp, tenantID, aws.StringValue(resp.Tags["Channel"])))
	}
	return campaigns, nil
}

// DeleteCampaign removes the campaign by id.
func (x *MessagingService) DeleteCampaign(tenantID, campaignID string) error {
	_, err := x.args.Client.DeleteCampaign(&pinpoint.DeleteCampaignInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		CampaignId:    aws.String(campaignID),
	})
	if err != nil {
		return errors.Wrap(err, "Failed to delete campaign").
			With("tenant_id", tenantID).With("campaign_id", campaignID)
	}
	return nil
}

// CampaignDelivery summarizes endpoint delivery counts of one campaign run.
type CampaignDelivery struct {
	CampaignID string `json:"campaign_id"`
	State      string `json:"state"`
	Successful int64  `json:"successful_endpoints"`
	Total      int64  `json:"total_endpoints"`
}

// GetCampaignDelivery returns delivery counts from the campaign's latest
// activity.
func (x *MessagingService) GetCampaignDelivery(tenantID, campaignID string) (*CampaignDelivery, error) {
	output, err := x.args.Client.GetCampaignActivities(&pinpoint.GetCampaignActivitiesInput{
		ApplicationId: aws.String(x.args.ApplicationID),
		CampaignId:    aws.String(campaignID),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get campaign activities").
			With("tenant_id", tenantID).With("campaign_id", campaignID)
	}

	delivery := &CampaignDelivery{CampaignID: campaignID}
	for _, activity := range output.ActivitiesResponse.Item {
		delivery.State = aws.StringValue(activity.State)
		delivery.Successful += aws.Int64Value(activity.SuccessfulEndpointCount)
		delivery.Total += aws.Int64Value(activity.TotalEndpointCount)
	}
	return delivery, nil
}
