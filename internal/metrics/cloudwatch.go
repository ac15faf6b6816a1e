package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	defaultNamespace         = "MAGDA/OMR"
	environmentProduction    = "production"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// metricPutter is the subset of the CloudWatch client used here
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      metricPutter
	enabled     bool
	environment string
	namespace   string
}

// NewClient creates a new CloudWatch metrics client
func NewClient(ctx context.Context, environment, namespace string) (*Client, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	// Only enable in production
	if environment != environmentProduction {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
			namespace:   namespace,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false, environment: environment, namespace: namespace}, nil
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)

	return &Client{
		client:      cloudwatch.NewFromConfig(cfg),
		enabled:     true,
		environment: environment,
		namespace:   namespace,
	}, nil
}

// Enabled reports whether metrics are sent
func (m *Client) Enabled() bool {
	return m.enabled
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	go m.sendAPIRequest(endpoint, statusCode, duration)
}

func (m *Client) sendAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	ctx := context.Background()
	metricName := "APIRequests"
	if statusCode >= httpStatusServerError {
		metricName = "APIErrors"
	}

	dimensions := []types.Dimension{
		{
			Name:  aws.String("Endpoint"),
			Value: aws.String(endpoint),
		},
		{
			Name:  aws.String("Environment"),
			Value: aws.String(m.environment),
		},
	}

	if err := m.putMetric(ctx, metricName, 1, types.StandardUnitCount, dimensions); err != nil {
		log.Printf("Failed to record %s metric: %v", metricName, err)
	}

	latencyMs := float64(duration.Milliseconds())
	if err := m.putMetric(ctx, "APILatency", latencyMs, types.StandardUnitMilliseconds, dimensions); err != nil {
		log.Printf("Failed to record APILatency metric: %v", err)
	}
}

// RecordConversion records conversion count, size and latency
func (m *Client) RecordConversion(c Conversion) {
	if !m.enabled {
		return
	}

	go m.sendConversion(c)
}

func (m *Client) sendConversion(c Conversion) {
	ctx := context.Background()
	dimensions := []types.Dimension{
		{
			Name:  aws.String("Source"),
			Value: aws.String(c.Source),
		},
		{
			Name:  aws.String("Success"),
			Value: aws.String(boolToString(c.Err == nil)),
		},
		{
			Name:  aws.String("Environment"),
			Value: aws.String(m.environment),
		},
	}

	if err := m.putMetric(ctx, "Conversions", 1, types.StandardUnitCount, dimensions); err != nil {
		log.Printf("Failed to record Conversions metric: %v", err)
	}

	if c.Err != nil {
		return
	}

	if err := m.putMetric(ctx, "ConversionNotes", float64(c.Notes), types.StandardUnitCount, dimensions); err != nil {
		log.Printf("Failed to record ConversionNotes metric: %v", err)
	}

	durationMs := float64(c.Duration.Milliseconds())
	if err := m.putMetric(ctx, "ConversionDuration", durationMs, types.StandardUnitMilliseconds, dimensions); err != nil {
		log.Printf("Failed to record ConversionDuration metric: %v", err)
	}
}

// putMetric sends a metric to CloudWatch
func (m *Client) putMetric(
	_ context.Context,
	metricName string,
	value float64,
	unit types.StandardUnit,
	dimensions []types.Dimension,
) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})

	return err
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
