// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/assetstore/lib/asset"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Config holds the parameters for a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8420".
	BaseURL string

	// HTTPClient is used for every request. Nil gets a client with
	// Timeout applied.
	HTTPClient *http.Client

	// Timeout bounds each request when HTTPClient is nil. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	// Logger receives request diagnostics. Nil discards.
	Logger *slog.Logger
}

// Client talks to one asset server. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Download is a fetched asset.
type Download struct {
	ID       asset.ID
	Payload  []byte
	Mime     string
	Hash     string
	Size     int64
	Filename string
}

// NewClient validates config and creates a Client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("remote: BaseURL is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("remote: BaseURL %q must be http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Upload sends records to projectID as one multipart batch and returns
// the count the server reports. The batch succeeds or fails as a
// whole.
func (c *Client) Upload(ctx context.Context, projectID string, records []*asset.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeUploadForm(form, records))
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AssetsPath(projectID), reader)
	if err != nil {
		reader.Close()
		return 0, fmt.Errorf("remote: upload: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())

	body, err := c.do(request, "upload")
	if err != nil {
		reader.CloseWithError(err)
		return 0, err
	}
	defer body.Close()

	var response UploadResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return 0, asset.TransportError("remote: upload: decoding response", err)
	}

	c.logger.Debug("batch uploaded",
		"project_id", projectID,
		"assets", len(records),
		"uploaded", response.Uploaded,
	)
	return response.Uploaded, nil
}

func writeUploadForm(form *multipart.Writer, records []*asset.Record) error {
	for i, record := range records {
		fields := [][2]string{
			{"id", string(record.ID)},
			{"mime", record.Mime},
			{"hash", record.Hash},
			{"size", strconv.FormatInt(record.Size, 10)},
			{"filename", record.Filename},
		}
		for _, field := range fields {
			if err := form.WriteField(FieldName(i, field[0]), field[1]); err != nil {
				return err
			}
		}
		part, err := form.CreateFormFile(PartName(i), record.DisplayName())
		if err != nil {
			return err
		}
		if _, err := part.Write(record.Payload); err != nil {
			return err
		}
	}
	return form.Close()
}

// List returns the server's listing for projectID.
func (c *Client) List(ctx context.Context, projectID string) ([]Entry, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+AssetsPath(projectID), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: list: %w", err)
	}

	body, err := c.do(request, "list")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var response ListResponse
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, asset.TransportError("remote: list: decoding response", err)
	}
	return response.Assets, nil
}

// Fetch downloads one asset. A 404 wraps asset.ErrNotFound.
func (c *Client) Fetch(ctx context.Context, projectID string, id asset.ID) (*Download, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+AssetPath(projectID, id), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: fetch %s: %w", id, err)
	}

	body, header, err := c.doWithHeader(request, "fetch")
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("remote: fetch %s: %w: %w", id, asset.ErrNotFound, err)
		}
		return nil, err
	}
	defer body.Close()

	payload, err := io.ReadAll(io.LimitReader(body, asset.MaxPayloadSize+1))
	if err != nil {
		return nil, asset.TransportError("remote: fetch "+string(id)+": reading body", err)
	}
	if err := asset.CheckSize(int64(len(payload))); err != nil {
		return nil, asset.TransportError("remote: fetch "+string(id), err)
	}

	download := &Download{
		ID:       id,
		Payload:  payload,
		Mime:     header.Get(HeaderMime),
		Hash:     header.Get(HeaderHash),
		Size:     int64(len(payload)),
		Filename: header.Get(HeaderFilename),
	}
	if download.Mime == "" {
		download.Mime = header.Get("Content-Type")
	}
	if sizeHeader := header.Get(HeaderSize); sizeHeader != "" {
		declared, err := strconv.ParseInt(sizeHeader, 10, 64)
		if err != nil || declared != download.Size {
			return nil, asset.TransportError("remote: fetch "+string(id),
				fmt.Errorf("declared size %q, received %d bytes", sizeHeader, download.Size))
		}
	}
	return download, nil
}

func (c *Client) do(request *http.Request, op string) (io.ReadCloser, error) {
	body, _, err := c.doWithHeader(request, op)
	return body, err
}

// doWithHeader sends request and returns the body of a 2xx response.
// Any other status is decoded into *Error.
func (c *Client) doWithHeader(request *http.Request, op string) (io.ReadCloser, http.Header, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, nil, asset.TransportError(
			fmt.Sprintf("remote: %s: %s %s", op, request.Method, request.URL.Path), err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return response.Body, response.Header, nil
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
	remoteErr := &Error{StatusCode: response.StatusCode, Message: strings.TrimSpace(string(raw))}
	var decoded ErrorResponse
	if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
		remoteErr.Message = decoded.Error
	}

	c.logger.Debug("remote request failed",
		"op", op,
		"method", request.Method,
		"path", request.URL.Path,
		"status", response.StatusCode,
	)
	return nil, nil, asset.TransportError("remote: "+op, remoteErr)
}
