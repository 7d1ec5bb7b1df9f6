package service

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/slack-go/slack"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

type AlertServiceArguments struct {
	SlackIncomingWebhookURL string
	HTTPClient              adaptor.HTTPClient
}

type AlertService struct {
	args *AlertServiceArguments
}

// NewAlertService is constructor of AlertService
func NewAlertService(args *AlertServiceArguments) *AlertService {
	return &AlertService{args: args}
}

// Enabled tells if the service is configured to emit alerts.
func (x *AlertService) Enabled() bool {
	return x.args.SlackIncomingWebhookURL != "" && x.args.HTTPClient != nil
}

// EmitTrainingFailure posts the failed training status of a tenant to Slack.
func (x *AlertService) EmitTrainingFailure(status *personify.TrainingStatus) error {
	if x.args.HTTPClient == nil {
		return errors.New("HTTPClient is required in AlertServiceArguments to emit Slack, but not set")
	}
	if x.args.SlackIncomingWebhookURL == "" {
		return errors.New("SlackIncomingWebhookURL is required in AlertServiceArguments to emit Slack, but not set")
	}

	newField := func(title, value string) *slack.TextBlockObject {
		return slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*%s*\n%s", title, value), false, false)
	}

	title := fmt.Sprintf(":rotating_light: Training failed for tenant %s", status.TenantID)
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject("plain_text", title, true, false)),
		slack.NewDividerBlock(),
	}

	var fields []*slack.TextBlockObject
	for component, componentStatus := range status.Components {
		fields = append(fields, newField(component, componentStatus))
	}
	blocks = append(blocks, slack.NewSectionBlock(
		slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Overall*: %s", status.Overall), false, false),
		fields, nil,
	))

	msg := slack.NewBlockMessage(blocks...)
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal slack message").With("msg", msg)
	}

	req, err := http.NewRequest("POST", x.args.SlackIncomingWebhookURL, bytes.NewBuffer(raw))
	if err != nil {
		return errors.Wrap(err, "Failed to create a new HTTP request to Slack")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.args.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "Failed to post message to Slack")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(resp.Body)
		return errors.New("Slack webhook replied with error").
			With("status", resp.StatusCode).With("body", string(body))
	}
	return nil
}
