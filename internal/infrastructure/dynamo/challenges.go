package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-auth-api/internal/domain"
)

// ChallengeRepo manages short-lived WebAuthn ceremony challenges.
// PK: challenge (the opaque value).
type ChallengeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewChallengeRepo(client *dynamodb.Client, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName}
}

func (r *ChallengeRepo) Put(ctx context.Context, c *domain.Challenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ChallengeRepo) Get(ctx context.Context, challenge string) (*domain.Challenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("challenge", challenge),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkUsed flips the used flag. Conditional on used still being false, so a
// challenge can never be consumed by two ceremony completions.
func (r *ChallengeRepo) MarkUsed(ctx context.Context, challenge string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("challenge", challenge),
		UpdateExpression:    aws.String("SET used = :t"),
		ConditionExpression: aws.String("attribute_exists(challenge) AND used = :f"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("challenge already consumed: %w", domain.ErrAlreadyUsed)
	}
	return err
}

// DeleteExpired removes challenges whose expiry is before now.
func (r *ChallengeRepo) DeleteExpired(ctx context.Context, now int64) (int, error) {
	return r.deleteWhere(ctx, "expires_at < :v", map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
	})
}

// DeleteUsed removes challenges already consumed by a completed ceremony.
func (r *ChallengeRepo) DeleteUsed(ctx context.Context) (int, error) {
	return r.deleteWhere(ctx, "used = :v", map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberBOOL{Value: true},
	})
}

func (r *ChallengeRepo) deleteWhere(ctx context.Context, filter string, values map[string]types.AttributeValue) (int, error) {
	removed := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(r.tableName),
			FilterExpression:          aws.String(filter),
			ProjectionExpression:      aws.String("challenge"),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			v, ok := item["challenge"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey("challenge", v.Value),
			}); err != nil {
				return removed, err
			}
			removed++
		}
		if out.LastEvaluatedKey == nil {
			return removed, nil
		}
		startKey = out.LastEvaluatedKey
	}
}
