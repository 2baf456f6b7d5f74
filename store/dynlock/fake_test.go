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

package dynlock

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

type fakeDDB struct {
	data             map[string]lockRecord
	t                *testing.T
	numPuts, numGets int64
}

type lockRecord struct {
	owner                 string
	acquiredAt, expiresAt int64
}

func makeFakeDDB(t *testing.T) *fakeDDB {
	return &fakeDDB{
		data: map[string]lockRecord{},
		t:    t,
	}
}

func (m *fakeDDB) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	key := stringAttr(m.t, input.Key, lockKeyAttr)

	item := map[string]types.AttributeValue{}
	if r, present := m.data[key]; present {
		item[lockKeyAttr] = &types.AttributeValueMemberS{Value: key}
		item[ownerAttr] = &types.AttributeValueMemberS{Value: r.owner}
		item[acquiredAtAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(r.acquiredAt, 10)}
		item[expiresAtAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(r.expiresAt, 10)}
	}
	atomic.AddInt64(&m.numGets, 1)
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (m *fakeDDB) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	assert.Equal(m.t, notExistsOrExpiredExpr, aws.ToString(input.ConditionExpression))

	key := stringAttr(m.t, input.Item, lockKeyAttr)
	owner := stringAttr(m.t, input.Item, ownerAttr)
	acquiredAt := numberAttr(m.t, input.Item, acquiredAtAttr)
	expiresAt := numberAttr(m.t, input.Item, expiresAtAttr)
	now := numberAttr(m.t, input.ExpressionAttributeValues, ":now")

	if current, present := m.data[key]; present && current.expiresAt >= now {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	m.data[key] = lockRecord{owner: owner, acquiredAt: acquiredAt, expiresAt: expiresAt}
	atomic.AddInt64(&m.numPuts, 1)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *fakeDDB) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	assert.Equal(m.t, ownerEqualsExpr, aws.ToString(input.ConditionExpression))

	key := stringAttr(m.t, input.Key, lockKeyAttr)
	owner := stringAttr(m.t, input.ExpressionAttributeValues, ":owner")

	current, present := m.data[key]
	if !present || current.owner != owner {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}

	delete(m.data, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *fakeDDB) putRecord(key, owner string, acquiredAt, expiresAt int64) {
	m.data[key] = lockRecord{owner: owner, acquiredAt: acquiredAt, expiresAt: expiresAt}
}

func (m *fakeDDB) NumPuts() int64 {
	return atomic.LoadInt64(&m.numPuts)
}

func stringAttr(t *testing.T, item map[string]types.AttributeValue, name string) string {
	attr, ok := item[name].(*types.AttributeValueMemberS)
	assert.True(t, ok, "%s should have been a String: %+v", name, item[name])
	return attr.Value
}

func numberAttr(t *testing.T, item map[string]types.AttributeValue, name string) int64 {
	attr, ok := item[name].(*types.AttributeValueMemberN)
	assert.True(t, ok, "%s should have been a Number: %+v", name, item[name])
	n, err := strconv.ParseInt(attr.Value, 10, 64)
	assert.NoError(t, err)
	return n
}
