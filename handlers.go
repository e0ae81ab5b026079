package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receipt2ledger/models"
	"receipt2ledger/pkg/config"
	"receipt2ledger/pkg/logger"
	"receipt2ledger/pkg/ocr"
	"receipt2ledger/pkg/receipt"
	"receipt2ledger/pkg/seen"
	"receipt2ledger/pkg/store"
)

const (
	maxUploadSize = 10 << 20
	listLimit     = 200
)

type server struct {
	cfg       *config.Config
	store     *store.Store
	pipeline  *receipt.Pipeline
	pool      *receipt.Pool
	log       zerolog.Logger
	jwtSecret []byte
}

func newServer(cfg *config.Config, st *store.Store, p *receipt.Pipeline, pool *receipt.Pool, log zerolog.Logger) *server {
	return &server{
		cfg:       cfg,
		store:     st,
		pipeline:  p,
		pool:      pool,
		log:       log,
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.POST("/register", s.registerHandler)
	r.POST("/login", s.loginHandler)
	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.GET("/me", s.meHandler)
	authGroup.POST("/receipts", s.uploadReceiptHandler)
	authGroup.POST("/receipts/text", s.extractTextHandler)
	authGroup.GET("/receipts", s.listReceiptsHandler)
	authGroup.GET("/receipts/:id", s.getReceiptHandler)
}

func (s *server) registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, err := s.store.CreateUser(req.Username, req.Password, models.RoleUser)
	switch {
	case errors.Is(err, store.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.store.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token, err := s.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": token})
}

func (s *server) meHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"id":       c.GetUint("uid"),
		"username": c.GetString("username"),
		"role":     c.GetString("role"),
	})
}

// pipelineStatus maps a pipeline failure to an HTTP status.
func pipelineStatus(err error) int {
	switch {
	case errors.Is(err, ocr.ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, receipt.ErrOCRUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ocr.ErrEmptyRecognition),
		errors.Is(err, receipt.ErrFieldMissing),
		errors.Is(err, receipt.ErrDateParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// uploadReceiptHandler stores the image, runs recognition and records the
// transaction. The upload row is kept even when recognition fails.
func (s *server) uploadReceiptHandler(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())
	uid := c.GetUint("uid")
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 10MB)"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
		return
	}
	raw, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	f.Close()
	if err != nil || len(raw) > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file unreadable"})
		return
	}

	relPath := filepath.Join(strconv.FormatUint(uint64(uid), 10), uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	fullPath := filepath.Join(s.cfg.UploadBase, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	if err := os.WriteFile(fullPath, raw, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	up := models.Upload{
		FileName:    file.Filename,
		StorePath:   filepath.ToSlash(relPath),
		Digest:      seen.Digest(raw),
		UserID:      uid,
		ContentType: file.Header.Get("Content-Type"),
	}
	if err := s.store.SaveUpload(&up); err != nil {
		log.Error().Err(err).Msg("save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}

	res, err := s.pool.Submit(c.Request.Context(), raw)
	if err != nil {
		log.Warn().Err(err).Uint("upload_id", up.ID).Msg("receipt not recognized")
		if merr := s.store.MarkUploadFailed(up.ID, err.Error()); merr != nil {
			log.Error().Err(merr).Uint("upload_id", up.ID).Msg("mark upload failed")
		}
		c.JSON(pipelineStatus(err), gin.H{"error": receipt.UserMessage(err), "upload_id": up.ID})
		return
	}
	row, dup, err := s.store.SaveReceipt(uid, &up.ID, res)
	if err != nil {
		log.Error().Err(err).Uint("upload_id", up.ID).Msg("save receipt")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	body := gin.H{
		"upload_id": up.ID,
		"duplicate": dup,
		"warnings":  res.Warnings,
	}
	if row != nil {
		body["receipt"] = row
	}
	c.JSON(http.StatusOK, body)
}

// extractTextHandler runs extraction and normalization on OCR text without
// touching the database.
func (s *server) extractTextHandler(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.pipeline.ProcessText(c.Request.Context(), req.Text)
	if err != nil {
		logger.FromContext(c.Request.Context()).Info().Err(err).Msg("text not recognized")
		c.JSON(pipelineStatus(err), gin.H{"error": receipt.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

// listReceiptsHandler returns recent receipts; administrators see everyone's.
func (s *server) listReceiptsHandler(c *gin.Context) {
	uid := c.GetUint("uid")
	if isAdmin(c) {
		uid = 0
	}
	items, err := s.store.ListReceipts(uid, listLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *server) getReceiptHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("bad id %q", c.Param("id"))})
		return
	}
	r, err := s.store.GetReceipt(uint(id))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !isAdmin(c) && r.UserID != c.GetUint("uid") {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, r)
}
