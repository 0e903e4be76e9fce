package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
)

const tableName = "bridgegap-tide-years"

// yearRecord is the persisted form of a RawTideYear. ExpiresAt is stored
// alongside the payload rather than used as a DynamoDB TTL attribute: an
// expired record must remain readable so the stale fallback can serve it.
type yearRecord struct {
	StationID string `dynamodbav:"stationId"`
	Year      int    `dynamodbav:"year"`
	Payload   string `dynamodbav:"payload"`
	FetchedAt int64  `dynamodbav:"fetchedAt"`
	Origin    string `dynamodbav:"origin"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// DynamoYearCache persists raw tide years in DynamoDB, one item per
// station-year.
type DynamoYearCache struct {
	client DynamoDBClient
	ttl    time.Duration
}

func NewDynamoYearCache(client DynamoDBClient, ttl time.Duration) *DynamoYearCache {
	return &DynamoYearCache{client: client, ttl: ttl}
}

// GetYear retrieves the stored year, if any, along with whether it has
// outlived its TTL. Expired entries are returned, not hidden; the caller
// decides whether stale data is acceptable.
func (c *DynamoYearCache) GetYear(ctx context.Context, stationID string, year int, now time.Time) (*models.RawTideYear, bool, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key: map[string]types.AttributeValue{
			"stationId": &types.AttributeValueMemberS{Value: stationID},
			"year":      &types.AttributeValueMemberN{Value: strconv.Itoa(year)},
		},
	}

	result, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, false, fmt.Errorf("getting tide year from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, false, nil
	}

	var record yearRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, false, fmt.Errorf("unmarshaling tide year record: %w", err)
	}

	expired := now.Unix() >= record.ExpiresAt
	raw := &models.RawTideYear{
		StationID: record.StationID,
		Year:      record.Year,
		Payload:   record.Payload,
		FetchedAt: time.Unix(record.FetchedAt, 0),
		Origin:    "cache",
	}
	return raw, expired, nil
}

// SaveYear writes a freshly fetched year, replacing any previous item for
// the same station-year key.
func (c *DynamoYearCache) SaveYear(ctx context.Context, raw *models.RawTideYear) error {
	record := yearRecord{
		StationID: raw.StationID,
		Year:      raw.Year,
		Payload:   raw.Payload,
		FetchedAt: raw.FetchedAt.Unix(),
		Origin:    raw.Origin,
		ExpiresAt: raw.FetchedAt.Add(c.ttl).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling tide year record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("putting tide year in DynamoDB: %w", err)
	}

	log.Debug().
		Str("station_id", raw.StationID).
		Int("year", raw.Year).
		Str("origin", raw.Origin).
		Msg("Saved tide year to cache")

	return nil
}
