package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/domain"
)

// EventSink records tracking events.
type EventSink interface {
	Record(ctx context.Context, evt domain.TrackingEvent) error
}

// Sinks fans an event out to every sink and joins their errors.
type Sinks []EventSink

func (s Sinks) Record(ctx context.Context, evt domain.TrackingEvent) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CampaignStats are the per-campaign counters kept in redis.
type CampaignStats struct {
	Opens        int64 `json:"opens"`
	Clicks       int64 `json:"clicks"`
	UniqueOpens  int64 `json:"uniqueOpens"`
	UniqueClicks int64 `json:"uniqueClicks"`
}

// RedisCounter keeps open and click counters per campaign.
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter creates a counter sink on rdb.
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

func statsKey(campaignID string) string { return "tracking:campaign:" + campaignID }

func uniqueKey(campaignID string, t domain.TrackingEventType) string {
	return fmt.Sprintf("tracking:campaign:%s:%s:subscribers", campaignID, t)
}

func (c *RedisCounter) Record(ctx context.Context, evt domain.TrackingEvent) error {
	field := "opens"
	if evt.EventType == domain.EventClick {
		field = "clicks"
	}
	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, statsKey(evt.CampaignID), field, 1)
	if evt.SubscriberID != "" {
		pipe.SAdd(ctx, uniqueKey(evt.CampaignID, evt.EventType), evt.SubscriberID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record %s: %w", evt.EventType, err)
	}
	return nil
}

// Stats reads the counters of a campaign.
func (c *RedisCounter) Stats(ctx context.Context, campaignID string) (*CampaignStats, error) {
	pipe := c.rdb.Pipeline()
	counts := pipe.HGetAll(ctx, statsKey(campaignID))
	uo := pipe.SCard(ctx, uniqueKey(campaignID, domain.EventOpen))
	uc := pipe.SCard(ctx, uniqueKey(campaignID, domain.EventClick))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	vals := counts.Val()
	opens, _ := strconv.ParseInt(vals["opens"], 10, 64)
	clicks, _ := strconv.ParseInt(vals["clicks"], 10, 64)
	return &CampaignStats{
		Opens:        opens,
		Clicks:       clicks,
		UniqueOpens:  uo.Val(),
		UniqueClicks: uc.Val(),
	}, nil
}

// SQSAPI is the subset of the SQS client used to publish events.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher forwards events as JSON messages to a queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

func (p *SQSPublisher) Record(ctx context.Context, evt domain.TrackingEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish to sqs: %w", err)
	}
	return nil
}
