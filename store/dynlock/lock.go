// Copyright 2026 Silt Data, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dynlock implements a TTL-based distributed lock on a DynamoDB
// table. One conditional write acquires, one conditional delete releases;
// expiry makes a crashed owner's lock stealable without operator action.
package dynlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

const (
	lockKeyAttr    = "lock_key"
	ownerAttr      = "owner_id"
	acquiredAtAttr = "acquired_at"
	expiresAtAttr  = "expires_at"

	// DefaultTTL bounds how long a crashed run can hold a dataset.
	DefaultTTL = time.Hour
)

var (
	notExistsOrExpiredExpr = fmt.Sprintf("attribute_not_exists(%s) OR %s < :now", lockKeyAttr, expiresAtAttr)
	ownerEqualsExpr        = fmt.Sprintf("%s = :owner", ownerAttr)
)

// ddbsvc is the subset of the DynamoDB client the lock needs. Tests
// substitute a fake.
type ddbsvc interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Lock coordinates pipeline runs through a DynamoDB table whose primary
// partition key is a string named `lock_key`.
type Lock struct {
	ddbsvc ddbsvc
	table  string
	now    func() time.Time
	lgr    *logrus.Entry
}

// New creates a Lock against the given table.
func New(svc ddbsvc, table string, lgr *logrus.Entry) *Lock {
	return &Lock{ddbsvc: svc, table: table, now: time.Now, lgr: lgr}
}

// Acquire attempts to take the lock for ownerID. It succeeds when no
// record exists for lockKey or the existing record has expired. It
// returns false, without error, when a live owner holds the lock.
func (l *Lock) Acquire(ctx context.Context, lockKey, ownerID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := l.now().Unix()

	_, err := l.ddbsvc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			lockKeyAttr:    &types.AttributeValueMemberS{Value: lockKey},
			ownerAttr:      &types.AttributeValueMemberS{Value: ownerID},
			acquiredAtAttr: &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
			expiresAtAttr:  &types.AttributeValueMemberN{Value: strconv.FormatInt(now+int64(ttl.Seconds()), 10)},
		},
		ConditionExpression: aws.String(notExistsOrExpiredExpr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if isConditionalCheckFailed(err) {
		l.lgr.WithField("lock_key", lockKey).Debug("lock held by a live owner")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Release deletes the lock record iff ownerID still owns it. It returns
// false when the record is gone or was stolen after expiry.
func (l *Lock) Release(ctx context.Context, lockKey, ownerID string) (bool, error) {
	_, err := l.ddbsvc.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			lockKeyAttr: &types.AttributeValueMemberS{Value: lockKey},
		},
		ConditionExpression: aws.String(ownerEqualsExpr),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if isConditionalCheckFailed(err) {
		l.lgr.WithField("lock_key", lockKey).Warn("lock missing or stolen at release")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsLocked reports whether a live (unexpired) lock record exists.
func (l *Lock) IsLocked(ctx context.Context, lockKey string) (bool, error) {
	result, err := l.ddbsvc.GetItem(ctx, &dynamodb.GetItemInput{
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(l.table),
		Key: map[string]types.AttributeValue{
			lockKeyAttr: &types.AttributeValueMemberS{Value: lockKey},
		},
	})
	if err != nil {
		return false, err
	}
	if len(result.Item) == 0 {
		return false, nil
	}

	expiresAt, ok := result.Item[expiresAtAttr].(*types.AttributeValueMemberN)
	if !ok {
		return false, fmt.Errorf("lock record for %q has no numeric %s", lockKey, expiresAtAttr)
	}
	exp, err := strconv.ParseInt(expiresAt.Value, 10, 64)
	if err != nil {
		return false, err
	}
	return exp >= l.now().Unix(), nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
