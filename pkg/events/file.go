// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package events

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Encoding is the file encoding of an OTLP logs request.
type Encoding int

const (
	EncodingProtobuf Encoding = iota
	EncodingJSON
)

func (e Encoding) String() string {
	if e == EncodingJSON {
		return "json"
	}
	return "protobuf"
}

// DetectEncoding picks JSON for .json files and for content that starts
// with '{', protobuf otherwise.
func DetectEncoding(path string, data []byte) Encoding {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return EncodingJSON
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return EncodingJSON
	}
	return EncodingProtobuf
}

// Unmarshal decodes a logs request.
func Unmarshal(data []byte, enc Encoding) (*collogspb.ExportLogsServiceRequest, error) {
	req := &collogspb.ExportLogsServiceRequest{}
	var err error
	if enc == EncodingJSON {
		err = protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, req)
	} else {
		err = proto.Unmarshal(data, req)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s logs: %w", enc, err)
	}
	return req, nil
}

// Marshal encodes a logs request.
func Marshal(req *collogspb.ExportLogsServiceRequest, enc Encoding) ([]byte, error) {
	if enc == EncodingJSON {
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(req)
	}
	return proto.Marshal(req)
}

// ReadFile reads a logs request and reports the encoding it was in.
func ReadFile(path string) (*collogspb.ExportLogsServiceRequest, Encoding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, EncodingProtobuf, err
	}
	enc := DetectEncoding(path, data)
	req, err := Unmarshal(data, enc)
	if err != nil {
		return nil, enc, fmt.Errorf("%s: %w", path, err)
	}
	return req, enc, nil
}

// WriteFile writes a logs request in the given encoding.
func WriteFile(path string, req *collogspb.ExportLogsServiceRequest, enc Encoding) error {
	data, err := Marshal(req, enc)
	if err != nil {
		return fmt.Errorf("encode %s logs: %w", enc, err)
	}
	return os.WriteFile(path, data, 0o644)
}
