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

// TokenRepo manages single-use email-verification and password-reset tokens.
// PK: token. GSI user-purpose-index: (user_id, purpose).
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func (r *TokenRepo) Put(ctx context.Context, t *domain.Token) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TokenRepo) Get(ctx context.Context, token string) (*domain.Token, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var t domain.Token
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume marks the token consumed at the given instant. The write is
// conditional on consumed_at being absent, so of N concurrent redeemers
// exactly one succeeds; the rest get domain.ErrAlreadyUsed.
func (r *TokenRepo) Consume(ctx context.Context, token string, now int64) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("token", token),
		UpdateExpression: aws.String("SET consumed_at = :now"),
		ConditionExpression: aws.String(
			"attribute_exists(#t) AND attribute_not_exists(consumed_at)"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
		},
	})
	if isConditionalCheckFailed(err) {
		return fmt.Errorf("token already consumed: %w", domain.ErrAlreadyUsed)
	}
	return err
}

// DeleteByUserPurpose removes every token of the given purpose owned by the
// user, enforcing the one-live-token-per-(user, purpose) invariant on issue.
func (r *TokenRepo) DeleteByUserPurpose(ctx context.Context, userID, purpose string) error {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user-purpose-index"),
		KeyConditionExpression: aws.String("user_id = :u AND purpose = :p"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
			":p": &types.AttributeValueMemberS{Value: purpose},
		},
		ProjectionExpression:     aws.String("#t"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
	})
	if err != nil {
		return err
	}
	for _, item := range out.Items {
		v, ok := item["token"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       strKey("token", v.Value),
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExpiredOrConsumed removes every token that expired before now or has
// already been consumed. Returns the number of records removed.
func (r *TokenRepo) DeleteExpiredOrConsumed(ctx context.Context, now int64) (int, error) {
	removed := 0
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(r.tableName),
			FilterExpression:         aws.String("expires_at < :now OR attribute_exists(consumed_at)"),
			ProjectionExpression:     aws.String("#t"),
			ExpressionAttributeNames: map[string]string{"#t": "token"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return removed, err
		}
		for _, item := range out.Items {
			v, ok := item["token"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key:       strKey("token", v.Value),
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
