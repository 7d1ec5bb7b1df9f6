package mock

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/sfn"

	"personify/pkg/adaptor"
)

type sfnExecution struct {
	arn       string
	name      string
	input     string
	status    string
	startDate time.Time
	stopDate  *time.Time
}

// SFNClient is an in-memory mock of adaptor.SFNClient. Executions start as
// RUNNING; SetStatus moves them along.
type SFNClient struct {
	Region     string
	executions []*sfnExecution
}

func NewSFNMock() (adaptor.SFNClientFactory, *SFNClient) {
	client := &SFNClient{}
	return func(region string) (adaptor.SFNClient, error) {
		client.Region = region
		return client, nil
	}, client
}

// SetStatus updates the status of the named execution. Terminal statuses
// also set the stop date.
func (x *SFNClient) SetStatus(name, status string) {
	for _, ex := range x.executions {
		if ex.name == name {
			ex.status = status
			if status != sfn.ExecutionStatusRunning {
				now := time.Now().UTC()
				ex.stopDate = &now
			}
		}
	}
}

func (x *SFNClient) StartExecution(input *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error) {
	ex := &sfnExecution{
		arn:       fmt.Sprintf("%s:%s", *input.StateMachineArn, *input.Name),
		name:      *input.Name,
		status:    sfn.ExecutionStatusRunning,
		startDate: time.Now().UTC(),
	}
	if input.Input != nil {
		ex.input = *input.Input
	}
	x.executions = append(x.executions, ex)
	return &sfn.StartExecutionOutput{
		ExecutionArn: aws.String(ex.arn),
		StartDate:    aws.Time(ex.startDate),
	}, nil
}

func (x *SFNClient) DescribeExecution(input *sfn.DescribeExecutionInput) (*sfn.DescribeExecutionOutput, error) {
	for _, ex := range x.executions {
		if ex.arn == *input.ExecutionArn {
			output := &sfn.DescribeExecutionOutput{
				ExecutionArn: aws.String(ex.arn),
				Name:         aws.String(ex.name),
				Status:       aws.String(ex.status),
				StartDate:    aws.Time(ex.startDate),
				Input:        aws.String(ex.input),
			}
			if ex.stopDate != nil {
				output.StopDate = aws.Time(*ex.stopDate)
			}
			return output, nil
		}
	}
	return nil, awserr.New(sfn.ErrCodeExecutionDoesNotExist, "execution does not exist", nil)
}

func (x *SFNClient) ListExecutions(input *sfn.ListExecutionsInput) (*sfn.ListExecutionsOutput, error) {
	output := &sfn.ListExecutionsOutput{}
	for i := len(x.executions) - 1; i >= 0; i-- {
		ex := x.executions[i]
		item := &sfn.ExecutionListItem{
			ExecutionArn:    aws.String(ex.arn),
			Name:            aws.String(ex.name),
			Status:          aws.String(ex.status),
			StartDate:       aws.Time(ex.startDate),
			StateMachineArn: input.StateMachineArn,
		}
		if ex.stopDate != nil {
			item.StopDate = aws.Time(*ex.stopDate)
		}
		output.Executions = append(output.Executions, item)
		if input.MaxResults != nil && int64(len(output.Executions)) >= *input.MaxResults {
			break
		}
	}
	return output, nil
}
