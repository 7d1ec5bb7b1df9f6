package service_test

import (
	"testing"

	"github.com/aws/aws-sdk-go/service/sfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personify/pkg/mock"
	"personify/pkg/service"
)

func newWorkflowService(t *testing.T) (*service.WorkflowService, *mock.SFNClient) {
	newClient, client := mock.NewSFNMock()
	c, err := newClient("us-east-1")
	require.NoError(t, err)

	svc := service.NewWorkflowService(&service.WorkflowServiceArguments{
		Client:          c,
		StateMachineARN: "arn:aws:states:us-east-1:000000000000:stateMachine:training",
	})
	return svc, client
}

func TestStartTraining(t *testing.T) {
	svc, client := newWorkflowService(t)

	execution, err := svc.StartTraining("t1", map[string]interface{}{
		"dataset_location": "s3://bucket/datasets/t1/interactions/x.csv",
	})
	require.NoError(t, err)
	assert.Contains(t, execution.Name, "training-t1-")
	assert.Equal(t, sfn.ExecutionStatusRunning, execution.Status)

	t.Run("status follows the execution", func(t *testing.T) {
		got, err := svc.GetExecutionStatus(execution.ARN)
		require.NoError(t, err)
		assert.Equal(t, sfn.ExecutionStatusRunning, got.Status)

		client.SetStatus(execution.Name, sfn.ExecutionStatusSucceeded)
		got, err = svc.GetExecutionStatus(execution.ARN)
		require.NoError(t, err)
		assert.Equal(t, sfn.ExecutionStatusSucceeded, got.Status)
		assert.NotEmpty(t, got.StoppedAt)
	})

	t.Run("unknown execution fails", func(t *testing.T) {
		_, err := svc.GetExecutionStatus("arn:does-not-exist")
		assert.Error(t, err)
	})
}

func TestRecentExecutions(t *testing.T) {
	svc, _ := newWorkflowService(t)

	for _, tenantID := range []string{"t1", "t2", "t3"} {
		_, err := svc.StartTraining(tenantID, nil)
		require.NoError(t, err)
	}

	executions, err := svc.RecentExecutions(2)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	// Newest first.
	assert.Contains(t, executions[0].Name, "t3")
}
