// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads contract documents from s3://bucket/prefix/<dataset_id>/v<N>.yaml.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates an S3Source over an existing client.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// NewS3SourceFromConfig builds the client from the default AWS credential chain.
func NewS3SourceFromConfig(ctx context.Context, bucket, prefix string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Source(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *S3Source) Name() string {
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3Source) List(ctx context.Context) ([]DocumentRef, error) {
	var refs []DocumentRef
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list contracts in %s: %w", s.Name(), err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			rel := strings.TrimPrefix(key, s.prefix)
			datasetID, file := path.Split(rel)
			datasetID = strings.TrimSuffix(datasetID, "/")
			if datasetID == "" || strings.Contains(datasetID, "/") {
				continue
			}
			version, ok := parseVersionFile(file)
			if !ok {
				continue
			}
			refs = append(refs, DocumentRef{DatasetID: datasetID, Version: version, Location: key})
		}
	}
	return refs, nil
}

func (s *S3Source) Read(ctx context.Context, ref DocumentRef) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Location),
	})
	if err != nil {
		return nil, fmt.Errorf("read contract s3://%s/%s: %w", s.bucket, ref.Location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read contract s3://%s/%s: %w", s.bucket, ref.Location, err)
	}
	return data, nil
}
