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

// Package codec serializes pipeline payloads. Event and projection rows
// and the primary-key index travel as snappy-compressed Parquet; manifests
// and pointers as indented JSON. Encoding is deterministic: the same input
// produces the same bytes, which lets re-runs be compared byte for byte.
package codec

import (
	"time"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/types"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/siltdata/silt/libraries/ingestcore/dataset"
)

const (
	parquetParallelism = 2
	rowGroupSize       = 128 * 1024 * 1024
)

// eventRecord mirrors dataset.Row with the canonical column names. KeyHash
// is deliberately absent: hashes live only in the index payload.
type eventRecord struct {
	DatasetID          string  `parquet:"name=dataset_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Provider           string  `parquet:"name=provider, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Frequency          string  `parquet:"name=frequency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Unit               string  `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SourceKind         string  `parquet:"name=source_kind, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ObsTime            int64   `parquet:"name=obs_time, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	ObsDate            int32   `parquet:"name=obs_date, type=INT32, convertedtype=DATE"`
	Value              float64 `parquet:"name=value, type=DOUBLE"`
	InternalSeriesCode string  `parquet:"name=internal_series_code, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Version            string  `parquet:"name=version, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	VintageDate        int64   `parquet:"name=vintage_date, type=INT64, convertedtype=TIMESTAMP_MICROS"`
	QualityFlag        string  `parquet:"name=quality_flag, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

// keyHashRecord is the single-column shape of index/keys.parquet.
type keyHashRecord struct {
	KeyHash string `parquet:"name=key_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// EncodeRows serializes a frame in order. An empty frame produces a valid
// zero-row payload.
func EncodeRows(frame dataset.Frame) ([]byte, error) {
	fw := buffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(eventRecord), parquetParallelism)
	if err != nil {
		return nil, err
	}
	pw.RowGroupSize = rowGroupSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range frame {
		if err := pw.Write(rowToRecord(row)); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return fw.Bytes(), nil
}

// DecodeRows deserializes an event or projection payload, preserving row
// order. Decoded rows carry no KeyHash.
func DecodeRows(data []byte) (dataset.Frame, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(eventRecord), parquetParallelism)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	records := make([]eventRecord, pr.GetNumRows())
	if err := pr.Read(&records); err != nil {
		return nil, err
	}

	frame := make(dataset.Frame, len(records))
	for i, rec := range records {
		frame[i] = recordToRow(rec)
	}
	return frame, nil
}

// EncodeKeyHashes serializes the primary-key index in order.
func EncodeKeyHashes(hashes []string) ([]byte, error) {
	fw := buffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(keyHashRecord), parquetParallelism)
	if err != nil {
		return nil, err
	}
	pw.RowGroupSize = rowGroupSize
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, h := range hashes {
		if err := pw.Write(keyHashRecord{KeyHash: h}); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return fw.Bytes(), nil
}

// DecodeKeyHashes deserializes the primary-key index, preserving order.
func DecodeKeyHashes(data []byte) ([]string, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(fr, new(keyHashRecord), parquetParallelism)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	records := make([]keyHashRecord, pr.GetNumRows())
	if err := pr.Read(&records); err != nil {
		return nil, err
	}

	hashes := make([]string, len(records))
	for i, rec := range records {
		hashes[i] = rec.KeyHash
	}
	return hashes, nil
}

func rowToRecord(row dataset.Row) eventRecord {
	return eventRecord{
		DatasetID:          row.DatasetID,
		Provider:           row.Provider,
		Frequency:          row.Frequency,
		Unit:               row.Unit,
		SourceKind:         row.SourceKind,
		ObsTime:            timestampMicros(row.ObsTime),
		ObsDate:            dateDays(row.ObsDate),
		Value:              row.Value,
		InternalSeriesCode: row.InternalSeriesCode,
		Version:            row.Version,
		VintageDate:        timestampMicros(row.VintageDate),
		QualityFlag:        row.QualityFlag,
	}
}

func recordToRow(rec eventRecord) dataset.Row {
	return dataset.Row{
		DatasetID:          rec.DatasetID,
		Provider:           rec.Provider,
		Frequency:          rec.Frequency,
		Unit:               rec.Unit,
		SourceKind:         rec.SourceKind,
		ObsTime:            timeFromMicros(rec.ObsTime),
		ObsDate:            dateFromDays(rec.ObsDate),
		Value:              rec.Value,
		InternalSeriesCode: rec.InternalSeriesCode,
		Version:            rec.Version,
		VintageDate:        timeFromMicros(rec.VintageDate),
		QualityFlag:        rec.QualityFlag,
	}
}

// Zero times persist as 0 and read back as the zero time, so datasets
// without a time or date column round-trip to the same canonical hashes.

func timestampMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return types.TimeToTIMESTAMP_MICROS(t.UTC(), true)
}

func timeFromMicros(micros int64) time.Time {
	if micros == 0 {
		return time.Time{}
	}
	return types.TIMESTAMP_MICROSToTime(micros, true).UTC()
}

func dateDays(t time.Time) int32 {
	if t.IsZero() {
		return 0
	}
	y, m, d := t.Date()
	return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

func dateFromDays(days int32) time.Time {
	if days == 0 {
		return time.Time{}
	}
	return time.Unix(int64(days)*86400, 0).UTC()
}
