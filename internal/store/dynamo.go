package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix  = "CAMPAIGN#"
	skMeta    = "META"
	skPublish = "PUBLISH#"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements CampaignStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ CampaignStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func campaignPK(id string) string {
	return pkPrefix + id
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// reportItem is the stored form of a publish report. Results are kept as a
// list in platform order.
type reportItem struct {
	CampaignID string           `dynamodbav:"campaignId"`
	State      publish.State    `dynamodbav:"state"`
	StartedAt  time.Time        `dynamodbav:"startedAt"`
	FinishedAt time.Time        `dynamodbav:"finishedAt"`
	Results    []publish.Result `dynamodbav:"results"`
}

// campaignItem marshals rec with its PK/SK attributes.
func campaignItem(rec *campaign.Record) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal campaign: %w", err)
	}
	for k, v := range keyOf(campaignPK(rec.ID), skMeta) {
		item[k] = v
	}
	return item, nil
}

func reportItemFor(report *publish.Report) (map[string]types.AttributeValue, error) {
	ri := reportItem{
		CampaignID: report.CampaignID,
		State:      report.State,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	for _, p := range campaign.AllPlatforms {
		if r, ok := report.Results[p]; ok {
			ri.Results = append(ri.Results, r)
		}
	}
	item, err := attributevalue.MarshalMap(ri)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	sk := skPublish + report.StartedAt.UTC().Format(time.RFC3339Nano)
	for k, v := range keyOf(campaignPK(report.CampaignID), sk) {
		item[k] = v
	}
	return item, nil
}

func decodeReport(item map[string]types.AttributeValue) (*publish.Report, error) {
	var ri reportItem
	if err := attributevalue.UnmarshalMap(item, &ri); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	report := &publish.Report{
		CampaignID: ri.CampaignID,
		State:      ri.State,
		StartedAt:  ri.StartedAt,
		FinishedAt: ri.FinishedAt,
		Results:    make(map[campaign.Platform]publish.Result, len(ri.Results)),
	}
	for _, r := range ri.Results {
		report.Results[r.Platform] = r
	}
	return report, nil
}

// --- Campaign operations ---

func (s *DynamoStore) PutCampaign(ctx context.Context, rec *campaign.Record) error {
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	item, err := campaignItem(rec)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("PutItem campaign %s: %w", rec.ID, err)
	}

	log.Debug().Str("campaign_id", rec.ID).Str("status", string(rec.Status)).Msg("Campaign persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetCampaign(ctx context.Context, id string) (*campaign.Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(campaignPK(id), skMeta),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem campaign %s: %w", id, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var rec campaign.Record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal campaign %s: %w", id, err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

func (s *DynamoStore) ListCampaigns(ctx context.Context) ([]*campaign.Record, error) {
	input := &dynamodb.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("SK = :meta"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":meta": &types.AttributeValueMemberS{Value: skMeta},
		},
	}

	var out []*campaign.Record
	// Scan returns up to 1MB per call.
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Scan campaigns: %w", err)
		}
		for _, item := range result.Items {
			var rec campaign.Record
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				log.Warn().Err(err).Msg("Skipping undecodable campaign item")
				continue
			}
			if rec.ID == "" {
				if pk, ok := item["PK"].(*types.AttributeValueMemberS); ok {
					rec.ID = strings.TrimPrefix(pk.Value, pkPrefix)
				}
			}
			out = append(out, &rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sortNewestFirst(out)
	return out, nil
}

func (s *DynamoStore) UpdateCampaign(ctx context.Context, id string, u Update) error {
	sets := []string{"#u = :u", "#e = :e"}
	names := map[string]string{
		"#u": "updatedAt",
		"#e": "error", // reserved words need placeholders
	}
	updatedAt, err := attributevalue.Marshal(s.now())
	if err != nil {
		return fmt.Errorf("marshal updatedAt: %w", err)
	}
	values := map[string]types.AttributeValue{
		":u": updatedAt,
		":e": &types.AttributeValueMemberS{Value: u.Error},
	}
	if u.Status != "" {
		sets = append(sets, "#s = :s")
		names["#s"] = "status"
		values[":s"] = &types.AttributeValueMemberS{Value: string(u.Status)}
	}
	if u.ReelKey != "" {
		sets = append(sets, "#r = :r")
		names["#r"] = "reelKey"
		values[":r"] = &types.AttributeValueMemberS{Value: u.ReelKey}
	}
	condition := "attribute_exists(PK)"
	if len(u.IfStatus) > 0 {
		names["#s"] = "status"
		allowed := make([]string, len(u.IfStatus))
		for i, st := range u.IfStatus {
			ph := fmt.Sprintf(":c%d", i)
			allowed[i] = ph
			values[ph] = &types.AttributeValueMemberS{Value: string(st)}
		}
		condition += " AND #s IN (" + strings.Join(allowed, ", ") + ")"
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           &s.tableName,
		Key:                                 keyOf(campaignPK(id), skMeta),
		UpdateExpression:                    aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:                 aws.String(condition),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// The old item comes back only when it exists.
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			var current struct {
				Status campaign.Status `dynamodbav:"status"`
			}
			_ = attributevalue.UnmarshalMap(ccf.Item, &current)
			return fmt.Errorf("campaign %s is %s: %w", id, current.Status, ErrConflict)
		}
		return fmt.Errorf("update campaign %s: %w", id, err)
	}

	log.Debug().Str("campaign_id", id).Str("status", string(u.Status)).Msg("Campaign updated")
	return nil
}

// --- Publish reports ---

func (s *DynamoStore) PutPublishReport(ctx context.Context, report *publish.Report) error {
	item, err := reportItemFor(report)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("PutItem report %s: %w", report.CampaignID, err)
	}
	return nil
}

func (s *DynamoStore) ListPublishReports(ctx context.Context, id string) ([]*publish.Report, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: campaignPK(id)},
			":sk": &types.AttributeValueMemberS{Value: skPublish},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var out []*publish.Report
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query reports %s: %w", id, err)
		}
		for _, item := range result.Items {
			report, err := decodeReport(item)
			if err != nil {
				return nil, err
			}
			out = append(out, report)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

func sortNewestFirst(recs []*campaign.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
