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

package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type snssvc interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNS publishes updates to an SNS topic. FIFO topics (arn suffix
// ".fifo") get one message group per dataset and a deduplication id
// derived from the manifest pointer, so a retried run cannot announce
// the same version twice.
type SNS struct {
	svc      snssvc
	topicARN string
	now      func() time.Time
	lgr      *logrus.Entry
}

// NewSNS creates an SNS notifier for topicARN.
func NewSNS(svc snssvc, topicARN string, lgr *logrus.Entry) *SNS {
	return &SNS{svc: svc, topicARN: topicARN, now: time.Now, lgr: lgr}
}

// Notify implements Notifier.
func (n *SNS) Notify(ctx context.Context, up Update) error {
	body, err := json.Marshal(newPayload(up, n.now()))
	if err != nil {
		return err
	}

	in := &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(UpdateType),
		Message:  aws.String(string(body)),
	}
	if strings.HasSuffix(n.topicARN, ".fifo") {
		sum := sha256.Sum256([]byte(up.ManifestPointer))
		in.MessageGroupId = aws.String(up.DatasetID)
		in.MessageDeduplicationId = aws.String(hex.EncodeToString(sum[:]))
	}

	out, err := n.svc.Publish(ctx, in)
	if err != nil {
		return errors.Wrapf(err, "publish %s for %s", UpdateType, up.DatasetID)
	}
	n.lgr.WithFields(logrus.Fields{
		"dataset":    up.DatasetID,
		"version":    up.Version,
		"rows_added": up.RowsAdded,
		"message_id": aws.ToString(out.MessageId),
	}).Info("notified consumers")
	return nil
}
