// Package archive records finished kiosk visits in DynamoDB and serves the
// event leaderboard from a GSI ordered by XP.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/apresai/summit/internal/progression"
	"github.com/apresai/summit/internal/session"
)

const (
	visitsPartition = "VISITS"
	defaultLimit    = 10
)

// VisitItem is the DynamoDB record for one finished visit.
type VisitItem struct {
	PK             string   `dynamodbav:"PK"`
	SK             string   `dynamodbav:"SK"`
	GSI1PK         string   `dynamodbav:"GSI1PK"`
	GSI1SK         string   `dynamodbav:"GSI1SK"`
	SessionID      string   `dynamodbav:"sessionId" json:"session_id"`
	VisitorName    string   `dynamodbav:"visitorName" json:"visitor_name"`
	AvatarRef      string   `dynamodbav:"avatarRef,omitempty" json:"avatar,omitempty"`
	XP             int      `dynamodbav:"xp" json:"xp"`
	Level          int      `dynamodbav:"level" json:"level"`
	LevelTitle     string   `dynamodbav:"levelTitle" json:"level_title"`
	QuestionsAsked int      `dynamodbav:"questionsAsked" json:"questions_asked"`
	LeadersChatted []string `dynamodbav:"leadersChatted,omitempty,stringset" json:"leaders_chatted"`
	Badges         []string `dynamodbav:"badges,omitempty,stringset" json:"badges"`
	StartedAt      string   `dynamodbav:"startedAt" json:"started_at"`
	EndedAt        string   `dynamodbav:"endedAt" json:"ended_at"`
}

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store handles DynamoDB operations for visits.
type Store struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewStore creates a DynamoDB store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, now: time.Now}
}

// NewStoreFromConfig builds a store over a fresh DynamoDB client.
func NewStoreFromConfig(awsCfg aws.Config, tableName string) *Store {
	return NewStore(dynamodb.NewFromConfig(awsCfg), tableName)
}

func visitKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "VISIT#" + id},
		"SK": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// xpSortKey zero-pads XP so lexical order on GSI1SK is numeric order.
func xpSortKey(xp int, id string) string {
	if xp < 0 {
		xp = 0
	}
	return fmt.Sprintf("%010d#%s", xp, id)
}

// RecordVisit writes the final state of a session. Writing the same session
// twice overwrites the earlier record.
func (s *Store) RecordVisit(ctx context.Context, snap session.Snapshot, level progression.Level, badges []string) error {
	item := VisitItem{
		PK:             "VISIT#" + snap.ID,
		SK:             "METADATA",
		GSI1PK:         visitsPartition,
		GSI1SK:         xpSortKey(snap.XP, snap.ID),
		SessionID:      snap.ID,
		VisitorName:    snap.VisitorName,
		AvatarRef:      snap.AvatarPath,
		XP:             snap.XP,
		Level:          level.Index,
		LevelTitle:     level.Title,
		QuestionsAsked: snap.QuestionsAsked,
		LeadersChatted: snap.LeadersChatted,
		Badges:         badges,
		StartedAt:      snap.CreatedAt.UTC().Format(time.RFC3339),
		EndedAt:        s.now().UTC().Format(time.RFC3339),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal visit item: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put visit item: %w", err)
	}
	return nil
}

// GetVisit retrieves one visit, or nil when it does not exist.
func (s *Store) GetVisit(ctx context.Context, sessionID string) (*VisitItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       visitKey(sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var item VisitItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal visit: %w", err)
	}
	return &item, nil
}

// Leaderboard returns the highest-XP visits, best first.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]VisitItem, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: visitsPartition},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}

	var items []VisitItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
	}
	return items, nil
}

// ParseSortKey splits a GSI1SK back into XP and session id.
func ParseSortKey(sk string) (int, string, error) {
	xpPart, id, ok := strings.Cut(sk, "#")
	if !ok {
		return 0, "", fmt.Errorf("invalid sort key %q", sk)
	}
	var xp int
	if _, err := fmt.Sscanf(xpPart, "%d", &xp); err != nil {
		return 0, "", fmt.Errorf("invalid sort key %q: %w", sk, err)
	}
	return xp, id, nil
}
