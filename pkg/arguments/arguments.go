package arguments

import (
	"net/http"

	"github.com/Netflix/go-env"

	"personify/pkg/adaptor"
	"personify/pkg/errors"
	"personify/pkg/logging"
	"personify/pkg/service"
)

// Regions the backing managed services are available in.
var supportedRegions = map[string]struct{}{
	"us-east-1":      {},
	"us-east-2":      {},
	"us-west-1":      {},
	"us-west-2":      {},
	"eu-west-1":      {},
	"eu-west-2":      {},
	"eu-central-1":   {},
	"ap-southeast-1": {},
	"ap-southeast-2": {},
	"ap-northeast-1": {},
}

// Arguments are passed to handlers. It includes environment variables and
// factories for adaptor clients.
type Arguments struct {
	AwsRegion string `env:"AWS_REGION,default=us-east-1"`

	BindAddr string `env:"BIND_ADDR,default=127.0.0.1:8080"`
	APIKey   string `env:"API_KEY"`

	DataBucket string `env:"DATA_BUCKET"`

	RecommendationsTable  string `env:"RECOMMENDATIONS_TABLE,default=recommendations"`
	UserProfilesTable     string `env:"USER_PROFILES_TABLE,default=user-profiles"`
	CampaignTrackingTable string `env:"CAMPAIGN_TRACKING_TABLE,default=campaign-tracking"`

	DatasetGroupName string `env:"DATASET_GROUP_NAME,default=personify-dsg"`
	SolutionName     string `env:"SOLUTION_NAME,default=personify-solution"`
	CampaignName     string `env:"CAMPAIGN_NAME,default=personify-campaign"`
	PersonalizeRole  string `env:"PERSONALIZE_ROLE_ARN"`
	RecipeARN        string `env:"RECIPE_ARN,default=arn:aws:personalize:::recipe/aws-user-personalization"`
	SchemaARN        string `env:"SCHEMA_ARN"`
	EventTrackingID  string `env:"EVENT_TRACKING_ID"`

	PinpointAppID string `env:"PINPOINT_APP_ID"`
	FromAddress   string `env:"FROM_ADDRESS,default=noreply@example.com"`

	StateMachineARN string `env:"STATE_MACHINE_ARN"`

	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SentryDSN       string `env:"SENTRY_DSN"`

	CleanupTenantIDs string `env:"CLEANUP_TENANT_IDS"`

	// Factories are only replaced by tests. A nil factory falls back to the
	// real client.
	NewRepository         adaptor.RepositoryFactory               `env:"-"`
	NewS3                 adaptor.S3ClientFactory                 `env:"-"`
	NewPersonalize        adaptor.PersonalizeClientFactory        `env:"-"`
	NewPersonalizeRuntime adaptor.PersonalizeRuntimeClientFactory `env:"-"`
	NewPersonalizeEvents  adaptor.PersonalizeEventsClientFactory  `env:"-"`
	NewPinpoint           adaptor.PinpointClientFactory           `env:"-"`
	NewSFN                adaptor.SFNClientFactory                `env:"-"`
	HTTP                  adaptor.HTTPClient                      `env:"-"`
}

// New is constructor of Arguments
func New() *Arguments {
	args := &Arguments{}
	if _, err := env.UnmarshalFromEnviron(args); err != nil {
		logging.Logger.Error().Err(err).Msg("Failed env.UnmarshalFromEnviron")
		panic(err)
	}
	return args
}

// Validate checks settings that every deployment needs.
func (x *Arguments) Validate() error {
	if _, ok := supportedRegions[x.AwsRegion]; !ok {
		return errors.New("unsupported region").With("region", x.AwsRegion)
	}
	if x.APIKey == "" {
		return errors.New("API_KEY is required")
	}
	if x.DataBucket == "" {
		return errors.New("DATA_BUCKET is required")
	}
	return nil
}

// -----------------------
// Services

func (x *Arguments) RepositoryService() (*service.RepositoryService, error) {
	factory := x.NewRepository
	if factory == nil {
		factory = adaptor.NewDynamoRepository
	}
	repo, err := factory(x.AwsRegion, adaptor.TableNames{
		Recommendations:  x.RecommendationsTable,
		UserProfiles:     x.UserProfilesTable,
		CampaignTracking: x.CampaignTrackingTable,
	})
	if err != nil {
		return nil, err
	}
	return service.NewRepositoryService(repo), nil
}

func (x *Arguments) StorageService() (*service.StorageService, error) {
	factory := x.NewS3
	if factory == nil {
		factory = adaptor.NewS3Client
	}
	client, err := factory(x.AwsRegion)
	if err != nil {
		return nil, err
	}
	return service.NewStorageService(client, x.DataBucket), nil
}

func (x *Arguments) RecommendService() (*service.RecommendService, error) {
	newClient := x.NewPersonalize
	if newClient == nil {
		newClient = adaptor.NewPersonalizeClient
	}
	newRuntime := x.NewPersonalizeRuntime
	if newRuntime == nil {
		newRuntime = adaptor.NewPersonalizeRuntimeClient
	}
	newEvents := x.NewPersonalizeEvents
	if newEvents == nil {
		newEvents = adaptor.NewPersonalizeEventsClient
	}

	client, err := newClient(x.AwsRegion)
	if err != nil {
		return nil, err
	}
	runtime, err := newRuntime(x.AwsRegion)
	if err != nil {
		return nil, err
	}
	events, err := newEvents(x.AwsRegion)
	if err != nil {
		return nil, err
	}

	return service.NewRecommendService(&service.RecommendServiceArguments{
		Client:           client,
		Runtime:          runtime,
		Events:           events,
		DatasetGroupName: x.DatasetGroupName,
		SolutionName:     x.SolutionName,
		CampaignName:     x.CampaignName,
		RoleARN:          x.PersonalizeRole,
		RecipeARN:        x.RecipeARN,
		SchemaARN:        x.SchemaARN,
	}), nil
}

func (x *Arguments) MessagingService() (*service.MessagingService, error) {
	factory := x.NewPinpoint
	if factory == nil {
		factory = adaptor.NewPinpointClient
	}
	client, err := factory(x.AwsRegion)
	if err != nil {
		return nil, err
	}
	return service.NewMessagingService(&service.MessagingServiceArguments{
		Client:        client,
		ApplicationID: x.PinpointAppID,
		FromAddress:   x.FromAddress,
	}), nil
}

func (x *Arguments) WorkflowService() (*service.WorkflowService, error) {
	factory := x.NewSFN
	if factory == nil {
		factory = adaptor.NewSFNClient
	}
	client, err := factory(x.AwsRegion)
	if err != nil {
		return nil, err
	}
	return service.NewWorkflowService(&service.WorkflowServiceArguments{
		Client:          client,
		StateMachineARN: x.StateMachineARN,
	}), nil
}

func (x *Arguments) HTTPClient() adaptor.HTTPClient {
	client := x.HTTP
	if client == nil {
		client = &http.Client{}
	}
	return client
}

func (x *Arguments) AlertService() *service.AlertService {
	return service.NewAlertService(&service.AlertServiceArguments{
		HTTPClient:              x.HTTPClient(),
		SlackIncomingWebhookURL: x.SlackWebhookURL,
	})
}
