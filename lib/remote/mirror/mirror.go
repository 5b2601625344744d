// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror serves the remote asset endpoints from a local
// assetdb store. It is the peer that `assetstore mirror` runs, and the
// server the sync tests talk to.
//
// Uploaded assets are verified before they are stored: the id must be
// the content identity of the bytes, and a declared hash or size must
// match. Stored assets are marked uploaded, since the mirror is their
// remote copy.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bureau-foundation/assetstore/lib/asset"
	"github.com/bureau-foundation/assetstore/lib/clock"
	"github.com/bureau-foundation/assetstore/lib/remote"
)

// maxMemory is how much of a multipart upload is buffered in memory
// before spilling to temporary files.
const maxMemory = 32 << 20

// Store is the subset of assetdb.Store the mirror serves from.
type Store interface {
	Put(ctx context.Context, record *asset.Record) error
	Get(ctx context.Context, projectID string, id asset.ID) (*asset.Record, error)
	ListByProject(ctx context.Context, projectID string) ([]*asset.Record, error)
}

// Config holds the parameters for a Server.
type Config struct {
	// Store is required.
	Store Store

	// Clock stamps received assets. Nil means the real clock.
	Clock clock.Clock

	// Logger receives request diagnostics. Nil discards.
	Logger *slog.Logger
}

// Server serves the asset endpoints.
type Server struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
	router *gin.Engine
}

// New creates a Server with its routes registered.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	serverClock := config.Clock
	if serverClock == nil {
		serverClock = clock.Real()
	}

	router := gin.New()
	router.MaxMultipartMemory = maxMemory
	router.Use(gin.Recovery())

	server := &Server{
		store:  config.Store,
		clock:  serverClock,
		logger: logger,
		router: router,
	}
	server.RegisterRoutes(router.Group("/"))
	return server
}

// RegisterRoutes registers the asset endpoints on group.
//
//	POST /projects/:project/assets      batch upload
//	GET  /projects/:project/assets      listing
//	GET  /projects/:project/assets/:id  single fetch
func (s *Server) RegisterRoutes(group *gin.RouterGroup) {
	projects := group.Group("/projects/:project")
	projects.POST("/assets", s.handleUpload)
	projects.GET("/assets", s.handleList)
	projects.GET("/assets/:id", s.handleFetch)
}

// ServeHTTP makes the Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleUpload(c *gin.Context) {
	projectID := c.Param("project")

	form, err := c.MultipartForm()
	if err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("parsing multipart form: %w", err))
		return
	}
	defer form.RemoveAll()

	// Validate the whole batch before storing any of it.
	var records []*asset.Record
	for i := 0; ; i++ {
		files := form.File[remote.PartName(i)]
		if len(files) == 0 {
			break
		}
		record, err := s.readUploadedAsset(projectID, form, i, files[0])
		if err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		s.fail(c, http.StatusBadRequest, errors.New("upload contains no assets"))
		return
	}

	for _, record := range records {
		if err := s.store.Put(c.Request.Context(), record); err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
	}

	s.logger.Info("assets received",
		"project_id", projectID,
		"count", len(records),
	)
	c.JSON(http.StatusOK, remote.UploadResponse{Uploaded: len(records)})
}

func (s *Server) readUploadedAsset(projectID string, form *multipart.Form, i int, header *multipart.FileHeader) (*asset.Record, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", remote.PartName(i), err)
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, asset.MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", remote.PartName(i), err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: empty payload", remote.PartName(i))
	}
	if err := asset.CheckSize(int64(len(payload))); err != nil {
		return nil, fmt.Errorf("%s: %w", remote.PartName(i), err)
	}

	field := func(attribute string) string {
		values := form.Value[remote.FieldName(i, attribute)]
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}

	record, err := asset.NewRecord(projectID, payload, field("filename"), field("mime"), s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", remote.PartName(i), err)
	}
	if declared := field("id"); declared != "" && asset.ID(declared) != record.ID {
		return nil, fmt.Errorf("%s: declared id %s does not match content id %s", remote.PartName(i), declared, record.ID)
	}
	if declared := field("hash"); declared != "" && declared != record.Hash {
		return nil, fmt.Errorf("%s: declared hash does not match content", remote.PartName(i))
	}
	if declared := field("size"); declared != "" {
		size, err := strconv.ParseInt(declared, 10, 64)
		if err != nil || size != record.Size {
			return nil, fmt.Errorf("%s: declared size %q, received %d bytes", remote.PartName(i), declared, record.Size)
		}
	}
	record.Uploaded = true
	return record, nil
}

func (s *Server) handleList(c *gin.Context) {
	records, err := s.store.ListByProject(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	response := remote.ListResponse{Assets: make([]remote.Entry, 0, len(records))}
	for _, record := range records {
		response.Assets = append(response.Assets, remote.Entry{
			ID:       record.ID,
			Mime:     record.Mime,
			Hash:     record.Hash,
			Size:     record.Size,
			Filename: record.Filename,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleFetch(c *gin.Context) {
	id, err := asset.ParseID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	record, err := s.store.Get(c.Request.Context(), c.Param("project"), id)
	if errors.Is(err, asset.ErrNotFound) {
		s.fail(c, http.StatusNotFound, fmt.Errorf("asset %s not found", id))
		return
	}
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.Header(remote.HeaderMime, record.Mime)
	c.Header(remote.HeaderHash, record.Hash)
	c.Header(remote.HeaderSize, strconv.FormatInt(record.Size, 10))
	c.Header(remote.HeaderFilename, record.Filename)
	c.Data(http.StatusOK, record.Mime, record.Payload)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("mirror request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, remote.ErrorResponse{Error: err.Error()})
}
