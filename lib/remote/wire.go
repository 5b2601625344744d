// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"fmt"
	"net/url"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// Response headers carrying a fetched asset's metadata.
const (
	HeaderMime     = "X-Original-Mime"
	HeaderHash     = "X-Original-Hash"
	HeaderSize     = "X-Original-Size"
	HeaderFilename = "X-Original-Filename"
)

// Entry describes one asset in a listing.
type Entry struct {
	ID       asset.ID `json:"id"`
	Mime     string   `json:"mime"`
	Hash     string   `json:"hash"`
	Size     int64    `json:"size"`
	Filename string   `json:"filename,omitempty"`
}

// ListResponse is the body of GET /projects/{project}/assets.
type ListResponse struct {
	Assets []Entry `json:"assets"`
}

// UploadResponse is the body of a successful batch upload.
type UploadResponse struct {
	Uploaded int `json:"uploaded"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PartName returns the multipart file part name of the i-th asset.
func PartName(i int) string {
	return fmt.Sprintf("asset_%d", i)
}

// FieldName returns the multipart field carrying attribute (id, mime,
// hash, size, filename) of the i-th asset.
func FieldName(i int, attribute string) string {
	return fmt.Sprintf("asset_%d_%s", i, attribute)
}

// AssetsPath returns the collection path for projectID.
func AssetsPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/assets"
}

// AssetPath returns the path of one asset.
func AssetPath(projectID string, id asset.ID) string {
	return AssetsPath(projectID) + "/" + url.PathEscape(string(id))
}
