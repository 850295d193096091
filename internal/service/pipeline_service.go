package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
	"github.com/bverad/workshop-cicd-app-cdk/internal/pipeline"
)

type StackDescriber interface {
	DescribeStacks(
		context.Context,
		*cloudformation.DescribeStacksInput,
		...func(*cloudformation.Options),
	) (*cloudformation.DescribeStacksOutput, error)
}

type PipelineReader interface {
	GetPipelineState(
		context.Context,
		*codepipeline.GetPipelineStateInput,
		...func(*codepipeline.Options),
	) (*codepipeline.GetPipelineStateOutput, error)
}

type PipelineStarter interface {
	StartPipelineExecution(
		context.Context,
		*codepipeline.StartPipelineExecutionInput,
		...func(*codepipeline.Options),
	) (*codepipeline.StartPipelineExecutionOutput, error)
}

type PipelineClient interface {
	PipelineReader
	PipelineStarter
}

type UUIDGenerator interface {
	GenerateUUID() string
}

func NewUUIDGen() *UUIDGen {
	return &UUIDGen{}
}

type UUIDGen struct{}

func (ug *UUIDGen) GenerateUUID() string {
	return uuid.NewString()
}

type StackOutputs struct {
	StackName      string
	StackStatus    string
	PipelineName   string
	RepositoryName string
}

type ActionStatus struct {
	Name    string
	Status  string
	Summary string
}

type StageStatus struct {
	Name        string
	Status      string
	ExecutionID string
	Actions     []ActionStatus
}

type PipelineStatus struct {
	Name   string
	Stages []StageStatus
}

func (ps *PipelineStatus) StageNames() []string {
	names := make([]string, len(ps.Stages))
	for i, s := range ps.Stages {
		names[i] = s.Name
	}
	return names
}

// Done reports whether the execution has settled. With an empty id any
// execution counts and no stage may still be running. Otherwise every stage up
// to the first failure must already show executionID, so a snapshot that still
// carries the previous run is not done.
func (ps *PipelineStatus) Done(executionID string) bool {
	for _, s := range ps.Stages {
		if executionID != "" && s.ExecutionID != executionID {
			return false
		}
		switch types.StageExecutionStatus(s.Status) {
		case types.StageExecutionStatusInProgress, types.StageExecutionStatusStopping:
			return false
		case types.StageExecutionStatusFailed, types.StageExecutionStatusStopped, types.StageExecutionStatusCancelled:
			if executionID != "" {
				return true
			}
		}
	}
	return true
}

// Failed reports whether a stage of executionID failed. An empty id matches
// any execution.
func (ps *PipelineStatus) Failed(executionID string) bool {
	return slices.ContainsFunc(ps.Stages, func(s StageStatus) bool {
		if executionID != "" && s.ExecutionID != executionID {
			return false
		}
		return types.StageExecutionStatus(s.Status) == types.StageExecutionStatusFailed
	})
}

type PipelineService struct {
	stacks        StackDescriber
	pipelines     PipelineClient
	uuidGenerator UUIDGenerator
}

func NewPipelineService(
	stacks StackDescriber,
	pipelines PipelineClient,
	uuidGenerator UUIDGenerator,
) *PipelineService {
	return &PipelineService{
		stacks:        stacks,
		pipelines:     pipelines,
		uuidGenerator: uuidGenerator,
	}
}

func (s *PipelineService) Outputs(ctx context.Context, stackName string) (*StackOutputs, error) {
	out, err := s.stacks.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("describing stack %s: %w", stackName, err)
	}
	if len(out.Stacks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStackNotFound, stackName)
	}

	stack := out.Stacks[0]
	values := make(map[string]string, len(stack.Outputs))
	for _, o := range stack.Outputs {
		values[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}

	outputs := &StackOutputs{
		StackName:      aws.ToString(stack.StackName),
		StackStatus:    string(stack.StackStatus),
		PipelineName:   values[internal.OutputPipelineName],
		RepositoryName: values[internal.OutputRepositoryName],
	}
	for key, value := range map[string]string{
		internal.OutputPipelineName:   outputs.PipelineName,
		internal.OutputRepositoryName: outputs.RepositoryName,
	} {
		if value == "" {
			return nil, fmt.Errorf("%w: %s on %s", ErrOutputMissing, key, stackName)
		}
	}
	return outputs, nil
}

func (s *PipelineService) Status(ctx context.Context, pipelineName string) (*PipelineStatus, error) {
	out, err := s.pipelines.GetPipelineState(ctx, &codepipeline.GetPipelineStateInput{
		Name: aws.String(pipelineName),
	})
	if err != nil {
		return nil, fmt.Errorf("reading state of pipeline %s: %w", pipelineName, err)
	}

	status := &PipelineStatus{
		Name:   aws.ToString(out.PipelineName),
		Stages: make([]StageStatus, 0, len(out.StageStates)),
	}
	for _, st := range out.StageStates {
		stage := StageStatus{
			Name:    aws.ToString(st.StageName),
			Actions: make([]ActionStatus, 0, len(st.ActionStates)),
		}
		if st.LatestExecution != nil {
			stage.Status = string(st.LatestExecution.Status)
			stage.ExecutionID = aws.ToString(st.LatestExecution.PipelineExecutionId)
		}
		for _, as := range st.ActionStates {
			action := ActionStatus{Name: aws.ToString(as.ActionName)}
			if as.LatestExecution != nil {
				action.Status = string(as.LatestExecution.Status)
				action.Summary = aws.ToString(as.LatestExecution.Summary)
			}
			stage.Actions = append(stage.Actions, action)
		}
		status.Stages = append(status.Stages, stage)
	}
	return status, nil
}

// VerifyStages compares the deployed stage order with def.
func (s *PipelineService) VerifyStages(
	ctx context.Context,
	pipelineName string,
	def *pipeline.Definition,
) error {
	status, err := s.Status(ctx, pipelineName)
	if err != nil {
		return err
	}
	expected := def.StageNames()
	actual := status.StageNames()
	if !slices.Equal(expected, actual) {
		return &StageMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// Release starts a new execution and returns its id. The request token makes
// a retried call start at most one execution.
func (s *PipelineService) Release(ctx context.Context, pipelineName string) (string, error) {
	out, err := s.pipelines.StartPipelineExecution(ctx, &codepipeline.StartPipelineExecutionInput{
		Name:               aws.String(pipelineName),
		ClientRequestToken: aws.String(s.uuidGenerator.GenerateUUID()),
	})
	if err != nil {
		return "", fmt.Errorf("starting pipeline %s: %w", pipelineName, err)
	}
	return aws.ToString(out.PipelineExecutionId), nil
}

// Watch polls Status at most once per interval, calling fn with every
// snapshot, until executionID is done (see Done) or ctx is done. An empty
// executionID follows whatever execution is current.
func (s *PipelineService) Watch(
	ctx context.Context,
	pipelineName string,
	executionID string,
	interval time.Duration,
	fn func(*PipelineStatus),
) (*PipelineStatus, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrWatchInterval, interval)
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		status, err := s.Status(ctx, pipelineName)
		if err != nil {
			return nil, err
		}
		if fn != nil {
			fn(status)
		}
		if status.Done(executionID) {
			return status, nil
		}
	}
}
