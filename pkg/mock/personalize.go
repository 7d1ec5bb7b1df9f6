package mock

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/personalize"
	"github.com/aws/aws-sdk-go/service/personalizeevents"
	"github.com/aws/aws-sdk-go/service/personalizeruntime"

	"personify/pkg/adaptor"
)

type personalizeResource struct {
	name   string
	arn    string
	status string
}

// PersonalizeClient is an in-memory mock of adaptor.PersonalizeClient.
// Statuses default to "CREATING" on create and can be overridden with
// SetStatus to drive status-aggregation tests.
type PersonalizeClient struct {
	Region        string
	datasetGroups []*personalizeResource
	datasets      []*personalizeResource
	solutions     []*personalizeResource
	campaigns     []*personalizeResource
	importJobs    []*personalizeResource
	versions      []*personalizeResource
}

func NewPersonalizeMock() (adaptor.PersonalizeClientFactory, *PersonalizeClient) {
	client := &PersonalizeClient{}
	return func(region string) (adaptor.PersonalizeClient, error) {
		client.Region = region
		return client, nil
	}, client
}

func findResource(set []*personalizeResource, name string) *personalizeResource {
	for _, r := range set {
		if r.name == name {
			return r
		}
	}
	return nil
}

func alreadyExists() error {
	return awserr.New(personalize.ErrCodeResourceAlreadyExistsException, "resource already exists", nil)
}

// SetStatus overrides the status of the named resource across all kinds.
func (x *PersonalizeClient) SetStatus(name, status string) {
	for _, set := range [][]*personalizeResource{
		x.datasetGroups, x.datasets, x.solutions, x.campaigns, x.importJobs, x.versions,
	} {
		if r := findResource(set, name); r != nil {
			r.status = status
		}
	}
}

func (x *PersonalizeClient) CreateDatasetGroup(input *personalize.CreateDatasetGroupInput) (*personalize.CreateDatasetGroupOutput, error) {
	if findResource(x.datasetGroups, *input.Name) != nil {
		return nil, alreadyExists()
	}
	r := &personalizeResource{
		name:   *input.Name,
		arn:    fmt.Sprintf("arn:aws:personalize:%s:000000000000:dataset-group/%s", x.Region, *input.Name),
		status: "CREATING",
	}
	x.datasetGroups = append(x.datasetGroups, r)
	return &personalize.CreateDatasetGroupOutput{DatasetGroupArn: aws.String(r.arn)}, nil
}

func (x *PersonalizeClient) ListDatasetGroups(input *personalize.ListDatasetGroupsInput) (*personalize.ListDatasetGroupsOutput, error) {
	output := &personalize.ListDatasetGroupsOutput{}
	for _, r := range x.datasetGroups {
		output.DatasetGroups = append(output.DatasetGroups, &personalize.DatasetGroupSummary{
			Name:            aws.String(r.name),
			DatasetGroupArn: aws.String(r.arn),
			Status:          aws.String(r.status),
		})
	}
	return output, nil
}

func (x *PersonalizeClient) CreateDataset(input *personalize.CreateDatasetInput) (*personalize.CreateDatasetOutput, error) {
	if findResource(x.datasets, *input.Name) != nil {
		return nil, alreadyExists()
	}
	r := &personalizeResource{
		name:   *input.Name,
		arn:    fmt.Sprintf("arn:aws:personalize:%s:000000000000:dataset/%s", x.Region, *input.Name),
		status: "CREATING",
	}
	x.datasets = append(x.datasets, r)
	return &personalize.CreateDatasetOutput{DatasetArn: aws.String(r.arn)}, nil
}

func (x *PersonalizeClient) ListDatasets(input *personalize.ListDatasetsInput) (*personalize.ListDatasetsOutput, error) {
	output := &personalize.ListDatasetsOutput{}
	for _, r := range x.datasets {
		output.Datasets = append(output.Datasets, &personalize.DatasetSummary{
			Name:       aws.String(r.name),
			DatasetArn: aws.String(r.arn),
			Status:     aws.String(r.status),
		})
	}
	return output, nil
}

func (x *PersonalizeClient) CreateDatasetImportJob(input *personalize.CreateDatasetImportJobInput) (*personalize.CreateDatasetImportJobOutput, error) {
	r := &personalizeResource{
		name:   *input.JobName,
		arn:    fmt.Sprintf("arn:aws:personalize:%s:000000000000:dataset-import-job/%s", x.Region, *input.JobName),
		status: "CREATING",
	}
	x.importJobs = append(x.importJobs, r)
	return &personalize.CreateDatasetImportJobOutput{DatasetImportJobArn: aws.String(r.arn)}, nil
}

func (x *PersonalizeClient) CreateSolution(input *personalize.CreateSolutionInput) (*personalize.CreateSolutionOutput, error) {
	if findResource(x.solutions, *input.Name) != nil {
		return nil, alreadyExists()
	}
	r := &personalizeResource{
		name:   *input.Name,
		arn:    fmt.Sprintf("arn:aws:personalize:%s:000000000000:solution/%s", x.Region, *input.Name),
		status: "CREATING",
	}
	x.solutions = append(x.solutions, r)
	return &personalize.CreateSolutionOutput{SolutionArn: aws.String(r.arn)}, nil
}

func (x *PersonalizeClient) ListSolutions(input *personalize.ListSolutionsInput) (*personalize.ListSolutionsOutput, error) {
	output := &personalize.ListSolutionsOutput{}
	for _, r := range x.solutions {
		output.Solutions = append(output.Solutions, &personalize.SolutionSummary{
			Name:        aws.String(r.name),
			SolutionArn: aws.String(r.arn),
			Status:      aws.String(r.status),
		})
	}
	return output, nil
}

func (x *PersonalizeClient) CreateSolutionVersion(input *personalize.CreateSolutionVersionInput) (*personalize.CreateSolutionVersionOutput, error) {
	arn := fmt.Sprintf("%s/version-%d", *input.SolutionArn, len(x.versions)+1)
	x.versions = append(x.versions, &personalizeResource{name: arn, arn: arn, status: "CREATING"})
	return &personalize.CreateSolutionVersionOutput{SolutionVersionArn: aws.String(arn)}, nil
}

func (x *PersonalizeClient) CreateCampaign(input *personalize.CreateCampaignInput) (*personalize.CreateCampaignOutput, error) {
	if findResource(x.campaigns, *input.Name) != nil {
		return nil, alreadyExists()
	}
	r := &personalizeResource{
		name:   *input.Name,
		arn:    fmt.Sprintf("arn:aws:personalize:%s:000000000000:campaign/%s", x.Region, *input.Name),
		status: "CREATING",
	}
	x.campaigns = append(x.campaigns, r)
	return &personalize.CreateCampaignOutput{CampaignArn: aws.String(r.arn)}, nil
}

func (x *PersonalizeClient) ListCampaigns(input *personalize.ListCampaignsInput) (*personalize.ListCampaignsOutput, error) {
	output := &personalize.ListCampaignsOutput{}
	for _, r := range x.campaigns {
		output.Campaigns = append(output.Campaigns, &personalize.CampaignSummary{
			Name:        aws.String(r.name),
			CampaignArn: aws.String(r.arn),
			Status:      aws.String(r.status),
		})
	}
	return output, nil
}

// PersonalizeRuntimeClient is a mock of adaptor.PersonalizeRuntimeClient
// returning the configured item list.
type PersonalizeRuntimeClient struct {
	Region   string
	Items    []*personalizeruntime.PredictedItem
	Requests []*personalizeruntime.GetRecommendationsInput
}

func NewPersonalizeRuntimeMock() (adaptor.PersonalizeRuntimeClientFactory, *PersonalizeRuntimeClient) {
	client := &PersonalizeRuntimeClient{}
	return func(region string) (adaptor.PersonalizeRuntimeClient, error) {
		client.Region = region
		return client, nil
	}, client
}

// SetItems configures the canned recommendation list.
func (x *PersonalizeRuntimeClient) SetItems(items map[string]float64, order []string) {
	x.Items = nil
	for _, id := range order {
		x.Items = append(x.Items, &personalizeruntime.PredictedItem{
			ItemId: aws.String(id),
			Score:  aws.Float64(items[id]),
		})
	}
}

func (x *PersonalizeRuntimeClient) GetRecommendations(input *personalizeruntime.GetRecommendationsInput) (*personalizeruntime.GetRecommendationsOutput, error) {
	x.Requests = append(x.Requests, input)
	items := x.Items
	if input.NumResults != nil && int64(len(items)) > *input.NumResults {
		items = items[:*input.NumResults]
	}
	return &personalizeruntime.GetRecommendationsOutput{ItemList: items}, nil
}

// PersonalizeEventsClient is a request-recording mock of
// adaptor.PersonalizeEventsClient.
type PersonalizeEventsClient struct {
	Region   string
	Requests []*personalizeevents.PutEventsInput
}

func NewPersonalizeEventsMock() (adaptor.PersonalizeEventsClientFactory, *PersonalizeEventsClient) {
	client := &PersonalizeEventsClient{}
	return func(region string) (adaptor.PersonalizeEventsClient, error) {
		client.Region = region
		return client, nil
	}, client
}

func (x *PersonalizeEventsClient) PutEvents(input *personalizeevents.PutEventsInput) (*personalizeevents.PutEventsOutput, error) {
	x.Requests = append(x.Requests, input)
	return &personalizeevents.PutEventsOutput{}, nil
}
