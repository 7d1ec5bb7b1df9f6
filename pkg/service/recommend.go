package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/personalize"
	"github.com/aws/aws-sdk-go/service/personalizeevents"
	"github.com/aws/aws-sdk-go/service/personalizeruntime"
	"github.com/google/uuid"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
	"personify/pkg/logging"
)

type RecommendServiceArguments struct {
	Client  adaptor.PersonalizeClient
	Runtime adaptor.PersonalizeRuntimeClient
	Events  adaptor.PersonalizeEventsClient

	DatasetGroupName string
	SolutionName     string
	CampaignName     string
	RoleARN          string
	RecipeARN        string
	SchemaARN        string
}

type RecommendService struct {
	args *RecommendServiceArguments
}

// NewRecommendService is constructor of RecommendService
func NewRecommendService(args *RecommendServiceArguments) *RecommendService {
	return &RecommendService{args: args}
}

// resourceName derives the per-tenant name of a shared base resource.
func resourceName(base, tenantID string) string {
	return base + "-" + tenantID
}

func isAlreadyExists(err error) bool {
	aerr, ok := err.(awserr.Error)
	return ok && aerr.Code() == personalize.ErrCodeResourceAlreadyExistsException
}

// createOrGet runs create and, when the name is already taken, falls back to
// lookup. Both calls resolving to the same name keeps resource creation
// idempotent per tenant.
func createOrGet(name string, create func() (string, error), lookup func() (*personify.Resource, error)) (*personify.Resource, error) {
	arn, err := create()
	if err == nil {
		return &personify.Resource{Name: name, ARN: arn, Status: "CREATING"}, nil
	}
	if !isAlreadyExists(err) {
		return nil, errors.Wrap(err, "Failed to create resource").With("name", name)
	}

	resource, err := lookup()
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "resource exists but was not listed").With("name", name)
	}
	return resource, nil
}

// EnsureDatasetGroup creates the tenant's dataset group or returns the
// existing one.
func (x *RecommendService) EnsureDatasetGroup(tenantID string) (*personify.Resource, error) {
	name := resourceName(x.args.DatasetGroupName, tenantID)
	return createOrGet(name,
		func() (string, error) {
			output, err := x.args.Client.CreateDatasetGroup(&personalize.CreateDatasetGroupInput{
				Name: aws.String(name),
				Tags: []*personalize.Tag{
					{TagKey: aws.String("TenantId"), TagValue: aws.String(tenantID)},
				},
			})
			if err != nil {
				return "", err
			}
			return aws.StringValue(output.DatasetGroupArn), nil
		},
		func() (*personify.Resource, error) { return x.findDatasetGroup(name) },
	)
}

func (x *RecommendService) findDatasetGroup(name string) (*personify.Resource, error) {
	output, err := x.args.Client.ListDatasetGroups(&personalize.ListDatasetGroupsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list dataset groups")
	}
	for _, dg := range output.DatasetGroups {
		if aws.StringValue(dg.Name) == name {
			return &personify.Resource{
				Name:   name,
				ARN:    aws.StringValue(dg.DatasetGroupArn),
				Status: aws.StringValue(dg.Status),
			}, nil
		}
	}
	return nil, nil
}

// EnsureDataset creates the tenant's dataset of datasetType in the dataset
// group, or returns the existing one.
func (x *RecommendService) EnsureDataset(tenantID, datasetType, datasetGroupARN string) (*personify.Resource, error) {
	if _, ok := validDatasetTypes[datasetType]; !ok {
		return nil, errors.New("invalid dataset type").With("dataset_type", datasetType)
	}

	name := resourceName(x.args.DatasetGroupName+"-"+datasetType, tenantID)
	return createOrGet(name,
		func() (string, error) {
			output, err := x.args.Client.CreateDataset(&personalize.CreateDatasetInput{
				Name:            aws.String(name),
				SchemaArn:       aws.String(x.args.SchemaARN),
				DatasetGroupArn: aws.String(datasetGroupARN),
				DatasetType:     aws.String(strings.ToUpper(datasetType)),
			})
			if err != nil {
				return "", err
			}
			return aws.StringValue(output.DatasetArn), nil
		},
		func() (*personify.Resource, error) {
			output, err := x.args.Client.ListDatasets(&personalize.ListDatasetsInput{
				DatasetGroupArn: aws.String(datasetGroupARN),
			})
			if err != nil {
				return nil, errors.Wrap(err, "Failed to list datasets")
			}
			for _, ds := range output.Datasets {
				if aws.StringValue(ds.Name) == name {
					return &personify.Resource{
						Name:   name,
						ARN:    aws.StringValue(ds.DatasetArn),
						Status: aws.StringValue(ds.Status),
					}, nil
				}
			}
			return nil, nil
		},
	)
}

// ImportData starts a dataset import job reading from s3Location. Job names
// carry a random suffix because import jobs are not idempotent.
func (x *RecommendService) ImportData(tenantID, datasetARN, s3Location string) (*personify.Resource, error) {
	name := fmt.Sprintf("import-%s-%s", tenantID, uuid.NewString()[:8])
	output, err := x.args.Client.CreateDatasetImportJob(&personalize.CreateDatasetImportJobInput{
		JobName:    aws.String(name),
		DatasetArn: aws.String(datasetARN),
		DataSource: &personalize.DataSource{
			DataLocation: aws.String(s3Location),
		},
		RoleArn: aws.String(x.args.RoleARN),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create dataset import job").
			With("tenant_id", tenantID).With("location", s3Location)
	}
	return &personify.Resource{
		Name:   name,
		ARN:    aws.StringValue(output.DatasetImportJobArn),
		Status: "CREATING",
	}, nil
}

// EnsureSolution creates the tenant's solution or returns the existing one.
func (x *RecommendService) EnsureSolution(tenantID, datasetGroupARN string) (*personify.Resource, error) {
	name := resourceName(x.args.SolutionName, tenantID)
	return createOrGet(name,
		func() (string, error) {
			output, err := x.args.Client.CreateSolution(&personalize.CreateSolutionInput{
				Name:            aws.String(name),
				DatasetGroupArn: aws.String(datasetGroupARN),
				RecipeArn:       aws.String(x.args.RecipeARN),
			})
			if err != nil {
				return "", err
			}
			return aws.StringValue(output.SolutionArn), nil
		},
		func() (*personify.Resource, error) { return x.findSolution(name) },
	)
}

func (x *RecommendService) findSolution(name string) (*personify.Resource, error) {
	output, err := x.args.Client.ListSolutions(&personalize.ListSolutionsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list solutions")
	}
	for _, sol := range output.Solutions {
		if aws.StringValue(sol.Name) == name {
			return &personify.Resource{
				Name:   name,
				ARN:    aws.StringValue(sol.SolutionArn),
				Status: aws.StringValue(sol.Status),
			}, nil
		}
	}
	return nil, nil
}

// CreateSolutionVersion starts training a new version of the solution.
func (x *RecommendService) CreateSolutionVersion(solutionARN string) (*personify.Resource, error) {
	output, err := x.args.Client.CreateSolutionVersion(&personalize.CreateSolutionVersionInput{
		SolutionArn: aws.String(solutionARN),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create solution version").
			With("solution_arn", solutionARN)
	}
	arn := aws.StringValue(output.SolutionVersionArn)
	return &personify.Resource{Name: arn, ARN: arn, Status: "CREATING"}, nil
}

// EnsureCampaign creates the tenant's campaign serving solutionVersionARN or
// returns the existing one.
func (x *RecommendService) EnsureCampaign(tenantID, solutionVersionARN string, minTPS int64) (*personify.Resource, error) {
	name := resourceName(x.args.CampaignName, tenantID)
	return createOrGet(name,
		func() (string, error) {
			output, err := x.args.Client.CreateCampaign(&personalize.CreateCampaignInput{
				Name:               aws.String(name),
				SolutionVersionArn: aws.String(solutionVersionARN),
				MinProvisionedTPS:  aws.Int64(minTPS),
			})
			if err != nil {
				return "", err
			}
			return aws.StringValue(output.CampaignArn), nil
		},
		func() (*personify.Resource, error) { return x.findCampaign(name) },
	)
}

func (x *RecommendService) findCampaign(name string) (*personify.Resource, error) {
	output, err := x.args.Client.ListCampaigns(&personalize.ListCampaignsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list campaigns")
	}
	for _, c := range output.Campaigns {
		if aws.StringValue(c.Name) == name {
			return &personify.Resource{
				Name:   name,
				ARN:    aws.StringValue(c.CampaignArn),
				Status: aws.StringValue(c.Status),
			}, nil
		}
	}
	return nil, nil
}

// GetRecommendations fetches up to numResults ranked items for the user
// from the tenant's campaign.
func (x *RecommendService) GetRecommendations(tenantID, userID string, numResults int64, context map[string]string) ([]*personify.Recommendation, error) {
	campaign, err := x.findCampaign(resourceName(x.args.CampaignName, tenantID))
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "campaign").With("tenant_id", tenantID)
	}

	input := &personalizeruntime.GetRecommendationsInput{
		CampaignArn: aws.String(campaign.ARN),
		UserId:      aws.String(userID),
		NumResults:  aws.Int64(numResults),
	}
	if len(context) > 0 {
		input.Context = make(map[string]*string, len(context))
		for k, v := range context {
			input.Context[k] = aws.String(v)
		}
	}

	output, err := x.args.Runtime.GetRecommendations(input)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to get recommendations").
			With("tenant_id", tenantID).With("user_id", userID)
	}

	recs := make([]*personify.Recommendation, 0, len(output.ItemList))
	for _, item := range output.ItemList {
		recs = append(recs, &personify.Recommendation{
			ItemID: aws.StringValue(item.ItemId),
			Score:  aws.Float64Value(item.Score),
		})
	}
	return recs, nil
}

// PutEvents forwards real-time interaction events of one user session to
// the recommender.
func (x *RecommendService) PutEvents(trackingID, userID, sessionID string, events []*personify.InteractionEvent) error {
	if len(events) == 0 {
		return errors.New("no events to put")
	}

	list := make([]*personalizeevents.Event, len(events))
	for i, ev := range events {
		sentAt := ev.SentAt
		if sentAt.IsZero() {
			sentAt = time.Now().UTC()
		}
		list[i] = &personalizeevents.Event{
			EventType: aws.String(ev.EventType),
			ItemId:    aws.String(ev.ItemID),
			SentAt:    aws.Time(sentAt),
		}
	}

	_, err := x.args.Events.PutEvents(&personalizeevents.PutEventsInput{
		TrackingId: aws.String(trackingID),
		UserId:     aws.String(userID),
		SessionId:  aws.String(sessionID),
		EventList:  list,
	})
	if err != nil {
		return errors.Wrap(err, "Failed to put events").
			With("tracking_id", trackingID).With("user_id", userID)
	}
	return nil
}

// isCreatingStatus covers the service's creating-state spellings, e.g.
// "CREATING", "CREATE PENDING", "CREATE IN_PROGRESS".
func isCreatingStatus(status string) bool {
	return strings.Contains(status, "CREAT") && !strings.Contains(status, "FAILED")
}

// GetTrainingStatus reports per-component statuses of the tenant's
// recommender resources and reduces them to one overall state. A creating
// state anywhere means TRAINING even when another component failed; READY
// requires every component ACTIVE. Missing components show as NOT_FOUND,
// and a failed lookup degrades to NOT_FOUND instead of failing the report.
func (x *RecommendService) GetTrainingStatus(tenantID string) (*personify.TrainingStatus, error) {
	components := map[string]string{
		"dataset_group": "NOT_FOUND",
		"solution":      "NOT_FOUND",
		"campaign":      "NOT_FOUND",
	}

	if dg, err := x.findDatasetGroup(resourceName(x.args.DatasetGroupName, tenantID)); err != nil {
		logging.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("dataset group lookup failed")
	} else if dg != nil {
		components["dataset_group"] = dg.Status
	}
	if sol, err := x.findSolution(resourceName(x.args.SolutionName, tenantID)); err != nil {
		logging.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("solution lookup failed")
	} else if sol != nil {
		components["solution"] = sol.Status
	}
	if c, err := x.findCampaign(resourceName(x.args.CampaignName, tenantID)); err != nil {
		logging.Logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("campaign lookup failed")
	} else if c != nil {
		components["campaign"] = c.Status
	}

	anyCreating := false
	anyFailed := false
	allActive := true
	for _, status := range components {
		if isCreatingStatus(status) {
			anyCreating = true
		}
		if strings.Contains(status, "FAILED") {
			anyFailed = true
		}
		if status != "ACTIVE" {
			allActive = false
		}
	}

	overall := personify.StatusIncomplete
	switch {
	case anyCreating:
		overall = personify.StatusTraining
	case anyFailed:
		overall = personify.StatusFailed
	case allActive:
		overall = personify.StatusReady
	}

	return &personify.TrainingStatus{
		TenantID:   tenantID,
		Overall:    overall,
		Components: components,
	}, nil
}
