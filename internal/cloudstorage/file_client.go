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
	"io"
	"os"
	"path/filepath"
	"strings"
)

// fileClient writes objects under a local directory, one subdirectory per
// bucket. It is meant for development and tests.
type fileClient struct {
	base string
}

// NewFileClient returns a client rooted at base.
func NewFileClient(base string) Client {
	return &fileClient{base: base}
}

// path maps bucket/key to a file under base. Keys that would resolve
// outside the bucket directory are rejected.
func (c *fileClient) path(bucket, key string) (string, error) {
	root := filepath.Join(c.base, bucket)
	p := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes bucket %q", key, bucket)
	}
	return p, nil
}

// UploadObject copies a local file into the bucket/key location. The copy
// is written to a temporary name and renamed so readers never see a
// partial object.
func (c *fileClient) UploadObject(ctx context.Context, bucket, key, sourceFilename string) (err error) {
	var size int64
	defer func() { recordUpload(ctx, ProviderFile, bucket, size, err) }()

	dst, err := c.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	src, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", sourceFilename, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	size, err = io.Copy(out, src)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
