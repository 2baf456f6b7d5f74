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

// Package notify announces successful publications to downstream
// consumers. Notification is fire-and-forget: the pipeline treats a
// failed notify as a warning, never as a failed run.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// UpdateType is both the payload type field and the message subject.
const UpdateType = "DATASET_UPDATED"

// Update describes one successful publication.
type Update struct {
	DatasetID       string
	Version         string
	ManifestPointer string
	RowsAdded       int
}

// Notifier announces updates.
type Notifier interface {
	Notify(ctx context.Context, up Update) error
}

// payload is the wire contract consumers parse.
type payload struct {
	Type            string `json:"type"`
	Timestamp       string `json:"timestamp"`
	DatasetID       string `json:"dataset_id"`
	ManifestPointer string `json:"manifest_pointer"`
}

func newPayload(up Update, at time.Time) payload {
	return payload{
		Type:            UpdateType,
		Timestamp:       at.UTC().Format(time.RFC3339),
		DatasetID:       up.DatasetID,
		ManifestPointer: up.ManifestPointer,
	}
}

// Null drops every update. Used when no topic is configured.
type Null struct{}

// Notify implements Notifier.
func (Null) Notify(context.Context, Update) error { return nil }

// Writer renders one JSON line per update. Used by dry runs and tests.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewWriter creates a Writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, now: time.Now}
}

// Notify implements Notifier.
func (w *Writer) Notify(_ context.Context, up Update) error {
	data, err := json.Marshal(newPayload(up, w.now()))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
