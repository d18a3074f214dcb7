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
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredential struct{}

func (staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "token"}, nil
}

func TestGetBlob(t *testing.T) {
	mgr, err := NewManager(context.Background(), WithCredential(staticCredential{}))
	require.NoError(t, err)

	_, err = mgr.GetBlob(context.Background())
	assert.ErrorContains(t, err, "storage account is required")

	c, err := mgr.GetBlob(context.Background(), WithBlobStorageAccount("archive"))
	require.NoError(t, err)
	assert.Equal(t, "https://archive.blob.core.windows.net/", c.Endpoint)
	assert.NotNil(t, c.Client)

	again, err := mgr.GetBlob(context.Background(),
		WithBlobStorageAccount("archive"),
		WithBlobEndpoint("https://elsewhere.example.com/"))
	require.NoError(t, err)
	assert.Same(t, c, again)

	other, err := mgr.GetBlob(context.Background(),
		WithBlobStorageAccount("devstore"),
		WithBlobEndpoint("https://devstore.example.com/"))
	require.NoError(t, err)
	assert.Equal(t, "https://devstore.example.com/", other.Endpoint)
}
