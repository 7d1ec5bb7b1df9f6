package service

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sfn"
	"github.com/goccy/go-json"

	"personify"
	"personify/pkg/adaptor"
	"personify/pkg/errors"
)

type WorkflowServiceArguments struct {
	Client          adaptor.SFNClient
	StateMachineARN string
}

type WorkflowService struct {
	args *WorkflowServiceArguments
	now  func() time.Time
}

// NewWorkflowService is constructor of WorkflowService
func NewWorkflowService(args *WorkflowServiceArguments) *WorkflowService {
	return &WorkflowService{
		args: args,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// StartTraining kicks off the training workflow for the tenant. The
// execution name embeds tenant and start time so reruns never collide.
func (x *WorkflowService) StartTraining(tenantID string, parameters map[string]interface{}) (*personify.Execution, error) {
	input := map[string]interface{}{
		"tenant_id": tenantID,
	}
	for k, v := range parameters {
		input[k] = v
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to marshal execution input").With("tenant_id", tenantID)
	}

	name := fmt.Sprintf("training-%s-%d", tenantID, x.now().Unix())
	output, err := x.args.Client.StartExecution(&sfn.StartExecutionInput{
		StateMachineArn: aws.String(x.args.StateMachineARN),
		Name:            aws.String(name),
		Input:           aws.String(string(raw)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to start execution").
			With("tenant_id", tenantID).With("name", name)
	}

	return &personify.Execution{
		ARN:       aws.StringValue(output.ExecutionArn),
		Name:      name,
		Status:    sfn.ExecutionStatusRunning,
		StartedAt: aws.TimeValue(output.StartDate).Format(time.RFC3339),
	}, nil
}

// GetExecutionStatus returns the current state of one execution.
func (x *WorkflowService) GetExecutionStatus(executionARN string) (*personify.Execution, error) {
	output, err := x.args.Client.DescribeExecution(&sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(executionARN),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to describe execution").
			With("execution_arn", executionARN)
	}

	execution := &personify.Execution{
		ARN:       aws.StringValue(output.ExecutionArn),
		Name:      aws.StringValue(output.Name),
		Status:    aws.StringValue(output.Status),
		StartedAt: aws.TimeValue(output.StartDate).Format(time.RFC3339),
	}
	if output.StopDate != nil {
		execution.StoppedAt = output.StopDate.Format(time.RFC3339)
	}
	return execution, nil
}

// RecentExecutions lists the most recent workflow executions, newest first.
func (x *WorkflowService) RecentExecutions(maxResults int64) ([]*personify.Execution, error) {
	output, err := x.args.Client.ListExecutions(&sfn.ListExecutionsInput{
		StateMachineArn: aws.String(x.args.StateMachineARN),
		MaxResults:      aws.Int64(maxResults),
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to list executions")
	}

	executions := make([]*personify.Execution, len(output.Executions))
	for i, item := range output.Executions {
		executions[i] = &personify.Execution{
			ARN:       aws.StringValue(item.ExecutionArn),
			Name:      aws.StringValue(item.Name),
			Status:    aws.StringValue(item.Status),
			StartedAt: aws.TimeValue(item.StartDate).Format(time.RFC3339),
		}
		if item.StopDate != nil {
			executions[i].StoppedAt = item.StopDate.Format(time.RFC3339)
		}
	}
	return executions, nil
}
