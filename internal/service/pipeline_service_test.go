package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
	"github.com/bverad/workshop-cicd-app-cdk/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUUIDGenerator struct {
	mock.Mock
}

func (m *MockUUIDGenerator) GenerateUUID() string {
	args := m.Called()
	return args.String(0)
}

func newTestService() (*PipelineService, *testutil.MockStackDescriber, *testutil.MockPipelineClient, *MockUUIDGenerator) {
	stacks := new(testutil.MockStackDescriber)
	pipelines := new(testutil.MockPipelineClient)
	uuids := new(MockUUIDGenerator)
	return NewPipelineService(stacks, pipelines, uuids), stacks, pipelines, uuids
}

func stageState(name string, status types.StageExecutionStatus) types.StageState {
	return types.StageState{
		StageName: aws.String(name),
		LatestExecution: &types.StageExecution{
			PipelineExecutionId: aws.String("exec-1"),
			Status:              status,
		},
		ActionStates: []types.ActionState{{
			ActionName: aws.String(name + "-action"),
			LatestExecution: &types.ActionExecution{
				Status:  types.ActionExecutionStatus(status),
				Summary: aws.String("summary"),
			},
		}},
	}
}

func pipelineState(statuses ...types.StageExecutionStatus) *codepipeline.GetPipelineStateOutput {
	names := []string{"source", "code-quality-testing", "docker-push-ecr"}
	out := &codepipeline.GetPipelineStateOutput{PipelineName: aws.String("cicd_pipeline")}
	for i, st := range statuses {
		out.StageStates = append(out.StageStates, stageState(names[i], st))
	}
	return out
}

func withExecution(out *codepipeline.GetPipelineStateOutput, id string) *codepipeline.GetPipelineStateOutput {
	for _, st := range out.StageStates {
		st.LatestExecution.PipelineExecutionId = aws.String(id)
	}
	return out
}

func TestPipelineService_Outputs(t *testing.T) {
	t.Run("success - outputs are read from the stack", func(t *testing.T) {
		// arrange
		svc, stacks, _, _ := newTestService()
		stacks.On("DescribeStacks", mock.Anything, &cloudformation.DescribeStacksInput{
			StackName: aws.String("PipelineCdkStack"),
		}).Return(&cloudformation.DescribeStacksOutput{
			Stacks: []cftypes.Stack{{
				StackName:   aws.String("PipelineCdkStack"),
				StackStatus: cftypes.StackStatusCreateComplete,
				Outputs: []cftypes.Output{
					{OutputKey: aws.String("PipelineName"), OutputValue: aws.String("cicd_pipeline")},
					{OutputKey: aws.String("RepositoryName"), OutputValue: aws.String("workshop-cicd")},
				},
			}},
		}, nil)

		// act
		outputs, err := svc.Outputs(context.Background(), "PipelineCdkStack")

		// assert
		require.NoError(t, err)
		assert.Equal(t, &StackOutputs{
			StackName:      "PipelineCdkStack",
			StackStatus:    "CREATE_COMPLETE",
			PipelineName:   "cicd_pipeline",
			RepositoryName: "workshop-cicd",
		}, outputs)
		stacks.AssertExpectations(t)
	})

	t.Run("failure - empty repository output", func(t *testing.T) {
		// arrange
		svc, stacks, _, _ := newTestService()
		stacks.On("DescribeStacks", mock.Anything, mock.Anything).Return(&cloudformation.DescribeStacksOutput{
			Stacks: []cftypes.Stack{{
				StackName: aws.String("PipelineCdkStack"),
				Outputs: []cftypes.Output{
					{OutputKey: aws.String("PipelineName"), OutputValue: aws.String("cicd_pipeline")},
					{OutputKey: aws.String("RepositoryName"), OutputValue: aws.String("")},
				},
			}},
		}, nil)

		// act
		outputs, err := svc.Outputs(context.Background(), "PipelineCdkStack")

		// assert
		assert.Nil(t, outputs)
		assert.ErrorIs(t, err, ErrOutputMissing)
		assert.ErrorContains(t, err, "RepositoryName")
	})

	t.Run("failure - no stack returned", func(t *testing.T) {
		svc, stacks, _, _ := newTestService()
		stacks.On("DescribeStacks", mock.Anything, mock.Anything).Return(&cloudformation.DescribeStacksOutput{}, nil)

		_, err := svc.Outputs(context.Background(), "PipelineCdkStack")

		assert.ErrorIs(t, err, ErrStackNotFound)
	})

	t.Run("failure - api error is wrapped", func(t *testing.T) {
		svc, stacks, _, _ := newTestService()
		apiErr := errors.New("access denied")
		stacks.On("DescribeStacks", mock.Anything, mock.Anything).Return(nil, apiErr)

		_, err := svc.Outputs(context.Background(), "PipelineCdkStack")

		assert.ErrorIs(t, err, apiErr)
	})
}

func TestPipelineService_Status(t *testing.T) {
	t.Run("success - stage states are kept in order", func(t *testing.T) {
		// arrange
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, &codepipeline.GetPipelineStateInput{
			Name: aws.String("cicd_pipeline"),
		}).Return(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusInProgress,
		), nil)

		// act
		status, err := svc.Status(context.Background(), "cicd_pipeline")

		// assert
		require.NoError(t, err)
		assert.Equal(t, "cicd_pipeline", status.Name)
		assert.Equal(t, []string{"source", "code-quality-testing"}, status.StageNames())
		assert.Equal(t, "Succeeded", status.Stages[0].Status)
		assert.Equal(t, "exec-1", status.Stages[0].ExecutionID)
		assert.Equal(t, []ActionStatus{{Name: "source-action", Status: "Succeeded", Summary: "summary"}}, status.Stages[0].Actions)
		assert.False(t, status.Done(""))
		assert.False(t, status.Failed(""))
	})

	t.Run("success - never executed stages have no status", func(t *testing.T) {
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(&codepipeline.GetPipelineStateOutput{
			PipelineName: aws.String("cicd_pipeline"),
			StageStates:  []types.StageState{{StageName: aws.String("source")}},
		}, nil)

		status, err := svc.Status(context.Background(), "cicd_pipeline")

		require.NoError(t, err)
		assert.Equal(t, "", status.Stages[0].Status)
		assert.True(t, status.Done(""))
	})
}

func TestPipelineStatus_Done(t *testing.T) {
	status := func(stages ...StageStatus) *PipelineStatus {
		return &PipelineStatus{Name: "cicd_pipeline", Stages: stages}
	}

	tests := []struct {
		name        string
		status      *PipelineStatus
		executionID string
		done        bool
		failed      bool
	}{
		{
			name:   "any execution settled",
			status: status(StageStatus{Name: "source", Status: "Succeeded", ExecutionID: "old-exec"}),
			done:   true,
		},
		{
			name:        "previous execution is not the released one",
			status:      status(StageStatus{Name: "source", Status: "Succeeded", ExecutionID: "old-exec"}),
			executionID: "new-exec",
		},
		{
			name: "later stage still shows the previous execution",
			status: status(
				StageStatus{Name: "source", Status: "Succeeded", ExecutionID: "new-exec"},
				StageStatus{Name: "code-quality-testing", Status: "Failed", ExecutionID: "old-exec"},
			),
			executionID: "new-exec",
		},
		{
			name: "failed stage ends the execution",
			status: status(
				StageStatus{Name: "source", Status: "Succeeded", ExecutionID: "new-exec"},
				StageStatus{Name: "code-quality-testing", Status: "Failed", ExecutionID: "new-exec"},
				StageStatus{Name: "docker-push-ecr", Status: "Succeeded", ExecutionID: "old-exec"},
			),
			executionID: "new-exec",
			done:        true,
			failed:      true,
		},
		{
			name: "failure of the previous execution is not reported",
			status: status(
				StageStatus{Name: "source", Status: "Succeeded", ExecutionID: "new-exec"},
				StageStatus{Name: "code-quality-testing", Status: "Failed", ExecutionID: "old-exec"},
			),
			executionID: "new-exec",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.done, tt.status.Done(tt.executionID))
			assert.Equal(t, tt.failed, tt.status.Failed(tt.executionID))
		})
	}
}

func TestPipelineService_VerifyStages(t *testing.T) {
	def, err := pipeline.Build(internal.DefaultConfiguration(), "")
	require.NoError(t, err)

	t.Run("success - deployed stages match", func(t *testing.T) {
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusSucceeded,
		), nil)

		assert.NoError(t, svc.VerifyStages(context.Background(), "cicd_pipeline", def))
	})

	t.Run("failure - deployed pipeline is the test variant", func(t *testing.T) {
		// arrange
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusSucceeded,
		), nil)

		// act
		err := svc.VerifyStages(context.Background(), "cicd_pipeline", def)

		// assert
		var mismatch *StageMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, []string{"source", "code-quality-testing", "docker-push-ecr"}, mismatch.Expected)
		assert.Equal(t, []string{"source", "code-quality-testing"}, mismatch.Actual)
	})
}

func TestPipelineService_Release(t *testing.T) {
	t.Run("success - execution is started with a request token", func(t *testing.T) {
		// arrange
		svc, _, pipelines, uuids := newTestService()
		token := uuid.NewString()
		uuids.On("GenerateUUID").Return(token)
		pipelines.On("StartPipelineExecution", mock.Anything, &codepipeline.StartPipelineExecutionInput{
			Name:               aws.String("cicd_pipeline"),
			ClientRequestToken: aws.String(token),
		}).Return(&codepipeline.StartPipelineExecutionOutput{
			PipelineExecutionId: aws.String("exec-2"),
		}, nil)

		// act
		id, err := svc.Release(context.Background(), "cicd_pipeline")

		// assert
		require.NoError(t, err)
		assert.Equal(t, "exec-2", id)
		pipelines.AssertExpectations(t)
	})

	t.Run("failure - api error", func(t *testing.T) {
		svc, _, pipelines, uuids := newTestService()
		uuids.On("GenerateUUID").Return("token")
		pipelines.On("StartPipelineExecution", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		_, err := svc.Release(context.Background(), "cicd_pipeline")

		assert.ErrorContains(t, err, "throttled")
	})
}

func TestPipelineService_Watch(t *testing.T) {
	t.Run("success - polls until no stage is running", func(t *testing.T) {
		// arrange
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusInProgress,
		), nil).Twice()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusFailed,
		), nil).Once()
		snapshots := 0

		// act
		status, err := svc.Watch(context.Background(), "cicd_pipeline", "", time.Millisecond, func(*PipelineStatus) {
			snapshots++
		})

		// assert
		require.NoError(t, err)
		assert.Equal(t, 3, snapshots)
		assert.True(t, status.Done(""))
		assert.True(t, status.Failed(""))
		pipelines.AssertExpectations(t)
	})

	t.Run("success - released execution replaces the previous one", func(t *testing.T) {
		// arrange
		svc, _, pipelines, _ := newTestService()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(withExecution(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusSucceeded,
		), "old-exec"), nil).Once()
		pipelines.On("GetPipelineState", mock.Anything, mock.Anything).Return(withExecution(pipelineState(
			types.StageExecutionStatusSucceeded,
			types.StageExecutionStatusSucceeded,
		), "new-exec"), nil).Once()

		// act
		status, err := svc.Watch(context.Background(), "cicd_pipeline", "new-exec", time.Millisecond, nil)

		// assert
		require.NoError(t, err)
		assert.Equal(t, "new-exec", status.Stages[0].ExecutionID)
		assert.False(t, status.Failed("new-exec"))
		pipelines.AssertNumberOfCalls(t, "GetPipelineState", 2)
	})

	t.Run("failure - non-positive interval is rejected", func(t *testing.T) {
		svc, _, pipelines, _ := newTestService()

		for _, interval := range []time.Duration{0, -time.Second} {
			_, err := svc.Watch(context.Background(), "cicd_pipeline", "", interval, nil)

			assert.ErrorIs(t, err, ErrWatchInterval)
		}
		pipelines.AssertNotCalled(t, "GetPipelineState", mock.Anything, mock.Anything)
	})

	t.Run("failure - cancelled context stops polling", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Watch(ctx, "cicd_pipeline", "", time.Millisecond, nil)

		assert.ErrorIs(t, err, context.Canceled)
	})
}
