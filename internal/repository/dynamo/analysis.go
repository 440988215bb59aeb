// Package dynamo stores analyses and predictions in a single DynamoDB table.
//
// Layout:
//
//	PK = ANALYSIS#<id>  SK = SUMMARY                 one per run
//	PK = ANALYSIS#<id>  SK = PREDICTION#<customer>   one per scored customer
package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ignite/churn-scorer/internal/domain"
)

// API is the subset of the DynamoDB client used by the repository.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

const summarySK = "SUMMARY"

type summaryItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	OwnerID        string `dynamodbav:"OwnerID"`
	FileName       string `dynamodbav:"FileName"`
	TotalCustomers int    `dynamodbav:"TotalCustomers"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
}

type predictionItem struct {
	PK                  string   `dynamodbav:"PK"`
	SK                  string   `dynamodbav:"SK"`
	ID                  string   `dynamodbav:"ID"`
	CustomerID          string   `dynamodbav:"CustomerID"`
	Probability         float64  `dynamodbav:"ChurnProbability"`
	RiskLevel           string   `dynamodbav:"RiskLevel"`
	ContributingFactors []string `dynamodbav:"ContributingFactors"`
	RecommendedActions  []string `dynamodbav:"RecommendedActions"`
	MonthlyRevenue      float64  `dynamodbav:"MonthlyRevenue"`
	Plan                string   `dynamodbav:"Plan"`
	DaysSinceSignup     int      `dynamodbav:"DaysSinceSignup"`
	DaysSinceLastActive int      `dynamodbav:"DaysSinceLastActive"`
	Source              string   `dynamodbav:"Source"`
	CreatedAt           string   `dynamodbav:"CreatedAt"`
}

// AnalysisRepo implements analysis.Repository on DynamoDB.
type AnalysisRepo struct {
	api   API
	table string
	now   func() time.Time
}

// NewAnalysisRepo creates a repository over table.
func NewAnalysisRepo(api API, table string) *AnalysisRepo {
	return &AnalysisRepo{api: api, table: table, now: time.Now}
}

// NewAnalysisRepoFromConfig builds the DynamoDB client from cfg.
func NewAnalysisRepoFromConfig(cfg aws.Config, table string) *AnalysisRepo {
	return NewAnalysisRepo(dynamodb.NewFromConfig(cfg), table)
}

func analysisPK(id string) string { return "ANALYSIS#" + id }

func (r *AnalysisRepo) CreateAnalysis(ctx context.Context, ownerID, fileName string, totalCustomers int) (string, error) {
	id := uuid.New().String()
	item, err := attributevalue.MarshalMap(summaryItem{
		PK:             analysisPK(id),
		SK:             summarySK,
		OwnerID:        ownerID,
		FileName:       fileName,
		TotalCustomers: totalCustomers,
		CreatedAt:      r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal analysis: %w", err)
	}
	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("put analysis: %w", err)
	}
	return id, nil
}

func (r *AnalysisRepo) InsertPrediction(ctx context.Context, p *domain.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	item, err := attributevalue.MarshalMap(predictionItem{
		PK:                  analysisPK(p.AnalysisID),
		SK:                  "PREDICTION#" + p.CustomerID,
		ID:                  p.ID,
		CustomerID:          p.CustomerID,
		Probability:         p.Probability,
		RiskLevel:           string(p.RiskLevel),
		ContributingFactors: p.ContributingFactors,
		RecommendedActions:  p.RecommendedActions,
		MonthlyRevenue:      p.MonthlyRevenue,
		Plan:                string(p.Plan),
		DaysSinceSignup:     p.DaysSinceSignup,
		DaysSinceLastActive: p.DaysSinceLastActive,
		Source:              string(p.Source),
		CreatedAt:           p.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("put prediction %s: %w", p.CustomerID, err)
	}
	return nil
}

func (r *AnalysisRepo) UpdateAnalysisAggregates(ctx context.Context, id string, s domain.AnalysisSummary) error {
	num := func(v float64) types.AttributeValue {
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
	}
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: analysisPK(id)},
			"SK": &types.AttributeValueMemberS{Value: summarySK},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression: aws.String("SET TotalCustomers = :total, ChurnRate = :rate, HighRiskCount = :high, " +
			"MediumRiskCount = :medium, LowRiskCount = :low, AvgCLTV = :cltv, CompletedAt = :done"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":total":  num(float64(s.TotalCustomers)),
			":rate":   num(s.ChurnRate),
			":high":   num(float64(s.HighRiskCount)),
			":medium": num(float64(s.MediumRiskCount)),
			":low":    num(float64(s.LowRiskCount)),
			":cltv":   num(s.AvgCLTV),
			":done":   &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("update analysis %s: %w", id, err)
	}
	return nil
}

// Ping checks that the table exists. Used by readiness checks.
func (r *AnalysisRepo) Ping(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	return err
}
