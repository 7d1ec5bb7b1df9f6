package adaptor

import (
	"github.com/aws/aws-sdk-go/service/sfn"
)

type SFNClient interface {
	StartExecution(input *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error)
	DescribeExecution(input *sfn.DescribeExecutionInput) (*sfn.DescribeExecutionOutput, error)
	ListExecutions(input *sfn.ListExecutionsInput) (*sfn.ListExecutionsOutput, error)
}

type SFNClientFactory func(region string) (SFNClient, error)

func NewSFNClient(region string) (SFNClient, error) {
	ssn, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return sfn.New(ssn), nil
}
