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


package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/aaronlmathis/telcoetl/config"
	"github.com/aaronlmathis/telcoetl/core"
)

// This file lets the extractor read its single input from S3 when the source
// path is an s3://bucket/key URI.

// ObjectGetter is the part of the S3 API the extractor needs. *s3.Client
// satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Location identifies one object.
type S3Location struct {
	Bucket string
	Key    string
}

// String returns the location as an s3:// URI.
func (l S3Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// IsS3URI reports whether path uses the s3:// scheme.
func IsS3URI(path string) bool {
	return strings.HasPrefix(strings.ToLower(path), "s3://")
}

// ParseS3URI splits an s3://bucket/key URI.
func ParseS3URI(uri string) (S3Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return S3Location{}, fmt.Errorf("invalid s3 uri %q: %w", uri, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return S3Location{}, fmt.Errorf("invalid s3 uri %q: scheme must be s3", uri)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return S3Location{}, fmt.Errorf("invalid s3 uri %q: bucket and key are required", uri)
	}
	return S3Location{Bucket: u.Host, Key: key}, nil
}

// NewS3Client builds an S3 client from the default AWS chain, overridden by cfg.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := createAWSConfig(ctx, cfg)
	if err != nil {
		return nil, core.NewError(core.KindConfig, "create_aws_config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}

// createAWSConfig creates AWS configuration from S3 settings.
func createAWSConfig(ctx context.Context, cfg config.S3Config) (aws.Config, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{}

	if cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	return awsconfig.LoadDefaultConfig(ctx, configOpts...)
}

// openS3Object fetches the object body. A missing bucket or key is reported as
// core.KindNotFound.
func openS3Object(ctx context.Context, client ObjectGetter, loc S3Location) (io.ReadCloser, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, &core.Error{Kind: core.KindNotFound, Op: "get_object", Path: loc.String(), Err: err}
		}
		return nil, &core.Error{Kind: core.KindUnexpected, Op: "get_object", Path: loc.String(), Err: err}
	}
	return out.Body, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return true
		}
	}
	return false
}
