//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TelcoETL.
//
// TelcoETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TelcoETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TelcoETL. If not, see https://www.gnu.org/licenses/.


package writers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/core"
)

// This file lets exports target an s3://bucket/key path. Output is staged
// locally and uploaded when the sink is closed.

// Uploader is the part of the S3 transfer manager the exporter needs.
// *manager.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// NewS3Uploader wraps an S3 client in a multipart-capable uploader.
func NewS3Uploader(client manager.UploadAPIClient) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 1
	})
}

// s3Target identifies the destination object.
type s3Target struct {
	bucket string
	key    string
}

func parseS3Target(uri string) (s3Target, error) {
	u, err := url.Parse(uri)
	if err != nil || !strings.EqualFold(u.Scheme, "s3") {
		return s3Target{}, fmt.Errorf("invalid s3 uri %q", uri)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return s3Target{}, fmt.Errorf("invalid s3 uri %q: bucket and key are required", uri)
	}
	return s3Target{bucket: u.Host, key: key}, nil
}

func (t s3Target) upload(ctx context.Context, client Uploader, body io.Reader, contentType string) error {
	_, err := client.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(t.key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &core.Error{Kind: core.KindUnexpected, Op: "upload", Path: "s3://" + t.bucket + "/" + t.key, Err: err}
	}
	return nil
}

// s3WriteCloser buffers text output in memory and uploads it on Close.
type s3WriteCloser struct {
	ctx         context.Context
	buf         *bytes.Buffer
	client      Uploader
	target      s3Target
	contentType string
	done        bool
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.target.upload(s.ctx, s.client, bytes.NewReader(s.buf.Bytes()), s.contentType)
}

// Abort implements core.Aborter: the buffer is dropped and nothing is uploaded.
func (s *s3WriteCloser) Abort() error {
	s.done = true
	s.buf.Reset()
	return nil
}

// parquetS3Sink writes a local temporary parquet file and uploads it on Close.
type parquetS3Sink struct {
	*ParquetWriter
	ctx      context.Context
	client   Uploader
	target   s3Target
	filename string
}

func (p *parquetS3Sink) Close() error {
	defer os.Remove(p.filename)

	if err := p.ParquetWriter.Close(); err != nil {
		return err
	}
	file, err := os.Open(p.filename)
	if err != nil {
		return &core.Error{Kind: core.KindUnexpected, Op: "open_file", Path: p.filename, Err: err}
	}
	defer file.Close()

	return p.target.upload(p.ctx, p.client, file, "application/vnd.apache.parquet")
}

// newS3ExportSink builds the S3 variant of an export sink. Uploads run under ctx.
func newS3ExportSink(ctx context.Context, format string, cfg config.ExportConfig, comma rune, client Uploader, ds *core.Dataset) (core.DataSink, error) {
	if client == nil {
		return nil, core.NewError(core.KindConfig, "export", fmt.Errorf("no s3 client configured for %s", cfg.Path))
	}
	target, err := parseS3Target(cfg.Path)
	if err != nil {
		return nil, core.NewError(core.KindConfig, "export", err)
	}

	switch format {
	case FormatParquet:
		tmp, err := os.CreateTemp("", "telcoetl-*.parquet")
		if err != nil {
			return nil, core.NewError(core.KindUnexpected, "create_temp", err)
		}
		filename := tmp.Name()
		tmp.Close()

		pw, err := newParquetExport(filename, cfg, ds)
		if err != nil {
			os.Remove(filename)
			return nil, err
		}
		return &parquetS3Sink{ParquetWriter: pw, ctx: ctx, client: client, target: target, filename: filename}, nil
	case FormatCSV:
		w := &s3WriteCloser{ctx: ctx, buf: &bytes.Buffer{}, client: client, target: target, contentType: "text/csv"}
		return NewCSVWriter(w, WithHeaders(ds.Columns()), WithComma(comma), WithCSVBatchSize(cfg.BatchSize)), nil
	case FormatJSONL:
		w := &s3WriteCloser{ctx: ctx, buf: &bytes.Buffer{}, client: client, target: target, contentType: "application/x-ndjson"}
		return NewJSONWriter(w), nil
	default:
		return nil, core.NewError(core.KindConfig, "export", fmt.Errorf("unsupported export format %q", format))
	}
}
