package adaptor

import (
	"github.com/aws/aws-sdk-go/service/pinpoint"
)

type PinpointClient interface {
	CreateSegment(input *pinpoint.CreateSegmentInput) (*pinpoint.CreateSegmentOutput, error)
	GetSegment(input *pinpoint.GetSegmentInput) (*pinpoint.GetSegmentOutput, error)
	CreateCampaign(input *pinpoint.CreateCampaignInput) (*pinpoint.CreateCampaignOutput, error)
	GetCampaigns(input *pinpoint.GetCampaignsInput) (*pinpoint.GetCampaignsOutput, error)
	GetCampaignActivities(input *pinpoint.GetCampaignActivitiesInput) (*pinpoint.GetCampaignActivitiesOutput, error)
	DeleteCampaign(input *pinpoint.DeleteCampaignInput) (*pinpoint.DeleteCampaignOutput, error)
	SendUsersMessages(input *pinpoint.SendUsersMessagesInput) (*pinpoint.SendUsersMessagesOutput, error)
	UpdateEndpoint(input *pinpoint.UpdateEndpointInput) (*pinpoint.UpdateEndpointOutput, error)
	GetEndpoint(input *pinpoint.GetEndpointInput) (*pinpoint.GetEndpointOutput, error)
}

type PinpointClientFactory func(region string) (PinpointClient, error)

func NewPinpointClient(region string) (PinpointClient, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return pinpoint.New(ssn), nil
}
