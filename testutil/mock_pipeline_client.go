package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/stretchr/testify/mock"
)

type MockPipelineClient struct {
	mock.Mock
}

func (m *MockPipelineClient) GetPipelineState(
	ctx context.Context,
	input *codepipeline.GetPipelineStateInput,
	_ ...func(*codepipeline.Options),
) (*codepipeline.GetPipelineStateOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codepipeline.GetPipelineStateOutput), args.Error(1)
}

func (m *MockPipelineClient) StartPipelineExecution(
	ctx context.Context,
	input *codepipeline.StartPipelineExecutionInput,
	_ ...func(*codepipeline.Options),
) (*codepipeline.StartPipelineExecutionOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codepipeline.StartPipelineExecutionOutput), args.Error(1)
}
