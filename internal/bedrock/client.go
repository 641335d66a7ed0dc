// Package bedrock invokes hosted models through the Bedrock runtime with retry.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retry"
	"go.uber.org/zap"
)

// Invoker sends a JSON body to a model and returns the JSON reply.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, modelID string, body []byte) ([]byte, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return f(ctx, modelID, body)
}

// RuntimeAPI is the subset of the Bedrock runtime client used here.
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client is an Invoker backed by the Bedrock runtime.
type Client struct {
	api     RuntimeAPI
	policy  retry.Policy
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a logger for retry events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics counts invocation attempts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// NewClient wraps api. The default retry policy is retry.Default().
func NewClient(api RuntimeAPI, opts ...Option) *Client {
	c := &Client{api: api, policy: retry.Default(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromRegion loads the default AWS credential chain for region.
func NewFromRegion(ctx context.Context, region string, opts ...Option) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewClient(bedrockruntime.NewFromConfig(cfg), opts...), nil
}

// Invoke calls modelID with body. Throttling and server-side faults are retried;
// client faults are not. Every failure other than cancellation of ctx is
// reported as models.ErrUpstreamUnavailable.
func (c *Client) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	var out []byte
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(modelID),
			Body:        body,
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
		})
		if err != nil {
			c.count(modelID, "error")
			if !retryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		c.count(modelID, "ok")
		out = resp.Body
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("model invocation failed, retrying",
			zap.String("model", modelID),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("invoke %s: %w", modelID, err)
		}
		return nil, fmt.Errorf("%w: invoke %s: %w", models.ErrUpstreamUnavailable, modelID, err)
	}
	return out, nil
}

func (c *Client) count(modelID, result string) {
	if c.metrics != nil {
		c.metrics.UpstreamCalls.WithLabelValues(modelID, result).Inc()
	}
}

var permanentCodes = map[string]bool{
	"ValidationException":         true,
	"AccessDeniedException":       true,
	"ResourceNotFoundException":   true,
	"UnrecognizedClientException": true,
}

func retryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if permanentCodes[apiErr.ErrorCode()] {
			return false
		}
		return apiErr.ErrorFault() != smithy.FaultClient || apiErr.ErrorCode() == "ThrottlingException" ||
			apiErr.ErrorCode() == "ModelNotReadyException" || apiErr.ErrorCode() == "ModelTimeoutException"
	}
	return true
}
