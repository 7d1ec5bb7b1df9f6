package mock

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/pinpoint"
	"github.com/google/uuid"

	"personify/pkg/adaptor"
)

// PinpointClient is an in-memory mock of adaptor.PinpointClient. Segments,
// campaigns and endpoints are stored per application; SendUsersMessages
// requests are recorded for assertions.
type PinpointClient struct {
	Region       string
	segments     map[string]*pinpoint.SegmentResponse
	campaigns    map[string]*pinpoint.CampaignResponse
	endpoints    map[string]*pinpoint.EndpointResponse
	activities   map[string][]*pinpoint.ActivityResponse
	SendRequests []*pinpoint.SendUsersMessagesInput
}

func NewPinpointMock() (adaptor.PinpointClientFactory, *PinpointClient) {
	client := &PinpointClient{
		segments:   make(map[string]*pinpoint.SegmentResponse),
		campaigns:  make(map[string]*pinpoint.CampaignResponse),
		endpoints:  make(map[string]*pinpoint.EndpointResponse),
		activities: make(map[string][]*pinpoint.ActivityResponse),
	}
	return func(region string) (adaptor.PinpointClient, error) {
		client.Region = region
		return client, nil
	}, client
}

func (x *PinpointClient) CreateSegment(input *pinpoint.CreateSegmentInput) (*pinpoint.CreateSegmentOutput, error) {
	id := uuid.NewString()
	resp := &pinpoint.SegmentResponse{
		Id:            aws.String(id),
		ApplicationId: input.ApplicationId,
		Name:          input.WriteSegmentRequest.Name,
		Dimensions:    input.WriteSegmentRequest.Dimensions,
		Tags:          input.WriteSegmentRequest.Tags,
	}
	x.segments[id] = resp
	return &pinpoint.CreateSegmentOutput{SegmentResponse: resp}, nil
}

func (x *PinpointClient) GetSegment(input *pinpoint.GetSegmentInput) (*pinpoint.GetSegmentOutput, error) {
	resp, ok := x.segments[*input.SegmentId]
	if !ok {
		return nil, awserr.New("NotFoundException", "segment not found", nil)
	}
	return &pinpoint.GetSegmentOutput{SegmentResponse: resp}, nil
}

func (x *PinpointClient) CreateCampaign(input *pinpoint.CreateCampaignInput) (*pinpoint.CreateCampaignOutput, error) {
	id := uuid.NewString()
	resp := &pinpoint.CampaignResponse{
		Id:            aws.String(id),
		ApplicationId: input.ApplicationId,
		Name:          input.WriteCampaignRequest.Name,
		SegmentId:     input.WriteCampaignRequest.SegmentId,
		Tags:          input.WriteCampaignRequest.Tags,
		State:         &pinpoint.CampaignState{CampaignStatus: aws.String("SCHEDULED")},
	}
	x.campaigns[id] = resp
	x.activities[id] = []*pinpoint.ActivityResponse{
		{
			Id:                      aws.String(uuid.NewString()),
			CampaignId:              aws.String(id),
			State:                   aws.String("COMPLETED"),
			SuccessfulEndpointCount: aws.Int64(0),
			TotalEndpointCount:      aws.Int64(0),
		},
	}
	return &pinpoint.CreateCampaignOutput{CampaignResponse: resp}, nil
}

func (x *PinpointClient) GetCampaigns(input *pinpoint.GetCampaignsInput) (*pinpoint.GetCampaignsOutput, error) {
	resp := &pinpoint.CampaignsResponse{}
	for _, c := range x.campaigns {
		if *c.ApplicationId == *input.ApplicationId {
			resp.Item = append(resp.Item, c)
		}
	}
	return &pinpoint.GetCampaignsOutput{CampaignsResponse: resp}, nil
}

// SetActivity replaces the canned activity list for a campaign.
func (x *PinpointClient) SetActivity(campaignID string, successful, total int64) {
	x.activities[campaignID] = []*pinpoint.ActivityResponse{
		{
			Id:                      aws.String(uuid.NewString()),
			CampaignId:              aws.String(campaignID),
			State:                   aws.String("COMPLETED"),
			SuccessfulEndpointCount: aws.Int64(successful),
			TotalEndpointCount:      aws.Int64(total),
		},
	}
}

func (x *PinpointClient) GetCampaignActivities(input *pinpoint.GetCampaignActivitiesInput) (*pinpoint.GetCampaignActivitiesOutput, error) {
	if _, ok := x.campaigns[*input.CampaignId]; !ok {
		return nil, awserr.New("NotFoundException", "campaign not found", nil)
	}
	return &pinpoint.GetCampaignActivitiesOutput{
		ActivitiesResponse: &pinpoint.ActivitiesResponse{Item: x.activities[*input.CampaignId]},
	}, nil
}

func (x *PinpointClient) DeleteCampaign(input *pinpoint.DeleteCampaignInput) (*pinpoint.DeleteCampaignOutput, error) {
	resp, ok := x.campaigns[*input.CampaignId]
	if !ok {
		return nil, awserr.New("NotFoundException", "campaign not found", nil)
	}
	delete(x.campaigns, *input.CampaignId)
	return &pinpoint.DeleteCampaignOutput{CampaignResponse: resp}, nil
}

func (x *PinpointClient) SendUsersMessages(input *pinpoint.SendUsersMessagesInput) (*pinpoint.SendUsersMessagesOutput, error) {
	x.SendRequests = append(x.SendRequests, input)
	return &pinpoint.SendUsersMessagesOutput{
		SendUsersMessageResponse: &pinpoint.SendUsersMessageResponse{
			ApplicationId: input.ApplicationId,
			RequestId:     aws.String(uuid.NewString()),
		},
	}, nil
}

func (x *PinpointClient) UpdateEndpoint(input *pinpoint.UpdateEndpointInput) (*pinpoint.UpdateEndpointOutput, error) {
	x.endpoints[*input.EndpointId] = &pinpoint.EndpointResponse{
		Id:            input.EndpointId,
		ApplicationId: input.ApplicationId,
		ChannelType:   input.EndpointRequest.ChannelType,
		Address:       input.EndpointRequest.Address,
		User:          input.EndpointRequest.User,
		Attributes:    input.EndpointRequest.Attributes,
	}
	return &pinpoint.UpdateEndpointOutput{
		MessageBody: &pinpoint.MessageBody{
			RequestID: aws.String(uuid.NewString()),
			Message:   aws.String(fmt.Sprintf("endpoint %s accepted", *input.EndpointId)),
		},
	}, nil
}

func (x *PinpointClient) GetEndpoint(input *pinpoint.GetEndpointInput) (*pinpoint.GetEndpointOutput, error) {
	resp, ok := x.endpoints[*input.EndpointId]
	if !ok {
		return nil, awserr.New("NotFoundException", "endpoint not found", nil)
	}
	return &pinpoint.GetEndpointOutput{EndpointResponse: resp}, nil
}
