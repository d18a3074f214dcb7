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

package azureclient

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"
)

// BlobClient is the blob client for one storage account.
type BlobClient struct {
	Client   *azblob.Client
	Endpoint string
	Tracer   trace.Tracer
}

type blobConfig struct {
	StorageAccount string
	Endpoint       string
}

type BlobOption func(*blobConfig)

func WithBlobStorageAccount(storageAccount string) BlobOption {
	return func(c *blobConfig) {
		c.StorageAccount = storageAccount
	}
}

func WithBlobEndpoint(endpoint string) BlobOption {
	return func(c *blobConfig) {
		c.Endpoint = endpoint
	}
}

type blobClientKey struct {
	StorageAccount string
}

// GetBlob returns the cached client for the storage account, creating it
// on first use. The endpoint of the first call for an account wins.
func (m *Manager) GetBlob(ctx context.Context, opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}

	if bc.StorageAccount == "" {
		return nil, fmt.Errorf("storage account is required")
	}

	if bc.Endpoint == "" {
		bc.Endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", bc.StorageAccount)
	}

	key := blobClientKey{StorageAccount: bc.StorageAccount}
	m.RLock()
	client, ok := m.blobClients[key]
	m.RUnlock()
	if !ok {
		m.Lock()
		if client, ok = m.blobClients[key]; !ok {
			blobClient, err := azblob.NewClient(bc.Endpoint, m.cred, nil)
			if err != nil {
				m.Unlock()
				return nil, fmt.Errorf("failed to create blob client: %w", err)
			}

			client = &BlobClient{
				Client:   blobClient,
				Endpoint: bc.Endpoint,
				Tracer:   m.tracer,
			}
			m.blobClients[key] = client
		}
		m.Unlock()
	}

	return client, nil
}
