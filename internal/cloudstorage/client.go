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

// Package cloudstorage uploads finished archive files to an object store.
package cloudstorage

import (
	"context"
	"fmt"

	"github.com/cardinalhq/eventlake/internal/awsclient"
	"github.com/cardinalhq/eventlake/internal/azureclient"
)

// Provider names accepted in Profile.CloudProvider.
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
	ProviderFile  = "file"
)

const (
	objectContentType = "application/gzip"
	writerName        = "eventlake"
)

// Client uploads local files to cloud storage.
type Client interface {
	// UploadObject uploads a local file to cloud storage
	UploadObject(ctx context.Context, bucket, key, sourceFilename string) error
}

// Profile describes where archived objects are written.
type Profile struct {
	CloudProvider string `mapstructure:"cloud_provider"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`

	// S3 and GCS interop
	Region       string `mapstructure:"region"`
	Role         string `mapstructure:"role"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	InsecureTLS  bool   `mapstructure:"insecure_tls"`

	// Azure
	StorageAccount string `mapstructure:"storage_account"`

	// Local directory for the file provider
	BaseDir string `mapstructure:"base_dir"`
}

// DefaultProfile writes objects under ./archive on the local filesystem.
func DefaultProfile() Profile {
	return Profile{
		CloudProvider: ProviderFile,
		Bucket:        "eventlake",
		Prefix:        "analytics",
		BaseDir:       "./archive",
	}
}

// Validate reports a profile NewClient cannot serve.
func (p Profile) Validate() error {
	if p.Bucket == "" {
		return fmt.Errorf("storage: bucket is required")
	}
	switch p.CloudProvider {
	case ProviderAWS, ProviderGCP, "":
	case ProviderAzure:
		if p.StorageAccount == "" {
			return fmt.Errorf("storage: storage_account is required for azure")
		}
	case ProviderFile:
		if p.BaseDir == "" {
			return fmt.Errorf("storage: base_dir is required for the file provider")
		}
	default:
		return fmt.Errorf("unsupported cloud provider: %s", p.CloudProvider)
	}
	return nil
}

// NewClient creates the storage Client for the profile's provider.
func NewClient(ctx context.Context, profile Profile) (Client, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	switch profile.CloudProvider {
	case ProviderAWS, ProviderGCP, "": // Empty defaults to AWS
		mgr, err := awsclient.NewManager(ctx, awsclient.WithAssumeRoleSessionName(writerName))
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS manager: %w", err)
		}
		awsS3Client, err := mgr.GetS3(ctx, s3Options(profile)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{awsS3Client: awsS3Client, provider: providerName(profile)}, nil
	case ProviderAzure:
		mgr, err := azureclient.NewManager(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure manager: %w", err)
		}
		opts := []azureclient.BlobOption{azureclient.WithBlobStorageAccount(profile.StorageAccount)}
		if profile.Endpoint != "" {
			opts = append(opts, azureclient.WithBlobEndpoint(profile.Endpoint))
		}
		azureBlobClient, err := mgr.GetBlob(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: azureBlobClient}, nil
	default: // ProviderFile; Validate rejects anything else
		return NewFileClient(profile.BaseDir), nil
	}
}

func s3Options(p Profile) []awsclient.S3Option {
	var opts []awsclient.S3Option
	if p.Role != "" {
		opts = append(opts, awsclient.WithRole(p.Role))
	}
	if p.Region != "" {
		opts = append(opts, awsclient.WithRegion(p.Region))
	}
	if p.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(p.Endpoint))
	}
	if p.UsePathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if p.InsecureTLS {
		opts = append(opts, awsclient.WithInsecureTLS())
	}
	if p.CloudProvider == ProviderGCP {
		opts = append(opts, awsclient.WithGCPProvider())
	}
	return opts
}

func providerName(p Profile) string {
	if p.CloudProvider == "" {
		return ProviderAWS
	}
	return p.CloudProvider
}
