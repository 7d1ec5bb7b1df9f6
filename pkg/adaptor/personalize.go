package adaptor

import (
	"github.com/aws/aws-sdk-go/service/personalize"
	"github.com/aws/aws-sdk-go/service/personalizeevents"
	"github.com/aws/aws-sdk-go/service/personalizeruntime"
)

// PersonalizeClient covers the control-plane operations of the recommender.
type PersonalizeClient interface {
	CreateDatasetGroup(input *personalize.CreateDatasetGroupInput) (*personalize.CreateDatasetGroupOutput, error)
	ListDatasetGroups(input *personalize.ListDatasetGroupsInput) (*personalize.ListDatasetGroupsOutput, error)
	CreateDataset(input *personalize.CreateDatasetInput) (*personalize.CreateDatasetOutput, error)
	ListDatasets(input *personalize.ListDatasetsInput) (*personalize.ListDatasetsOutput, error)
	CreateDatasetImportJob(input *personalize.CreateDatasetImportJobInput) (*personalize.CreateDatasetImportJobOutput, error)
	CreateSolution(input *personalize.CreateSolutionInput) (*personalize.CreateSolutionOutput, error)
	ListSolutions(input *personalize.ListSolutionsInput) (*personalize.ListSolutionsOutput, error)
	CreateSolutionVersion(input *personalize.CreateSolutionVersionInput) (*personalize.CreateSolutionVersionOutput, error)
	CreateCampaign(input *personalize.CreateCampaignInput) (*personalize.CreateCampaignOutput, error)
	ListCampaigns(input *personalize.ListCampaignsInput) (*personalize.ListCampaignsOutput, error)
}

type PersonalizeClientFactory func(region string) (PersonalizeClient, error)

func NewPersonalizeClient(region string) (PersonalizeClient, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return personalize.New(ssn), nil
}

// PersonalizeRuntimeClient serves real-time recommendations.
type PersonalizeRuntimeClient interface {
	GetRecommendations(input *personalizeruntime.GetRecommendationsInput) (*personalizeruntime.GetRecommendationsOutput, error)
}

type PersonalizeRuntimeClientFactory func(region string) (PersonalizeRuntimeClient, error)

func NewPersonalizeRuntimeClient(region string) (PersonalizeRuntimeClient, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return personalizeruntime.New(ssn), nil
}

// PersonalizeEventsClient ingests real-time interaction events.
type PersonalizeEventsClient interface {
	PutEvents(input *personalizeevents.PutEventsInput) (*personalizeevents.PutEventsOutput, error)
}

type PersonalizeEventsClientFactory func(region string) (PersonalizeEventsClient, error)

func NewPersonalizeEventsClient(region string) (PersonalizeEventsClient, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return personalizeevents.New(ssn), nil
}
