// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cloudstorage

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/eventlake/internal/awsclient"
)

// s3Client uploads through the S3 API, to AWS or to GCS interop.
type s3Client struct {
	awsS3Client *awsclient.S3Client
	provider    string
}

// UploadObject uploads a file to S3
func (c *s3Client) UploadObject(ctx context.Context, bucket, key, sourceFilename string) (err error) {
	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", sourceFilename, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}

	ctx, span := c.awsS3Client.Tracer.Start(ctx, "cloudstorage.uploadS3Object",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()
	defer func() { recordUpload(ctx, c.provider, bucket, stat.Size(), err) }()

	uploader := manager.NewUploader(c.awsS3Client.Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(objectContentType),
		Metadata: map[string]string{
			"writer": writerName,
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload S3 object %s/%s: %w", bucket, key, err)
	}
	return nil
}
