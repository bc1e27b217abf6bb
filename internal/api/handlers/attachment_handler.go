package handlers

import (
	"errors"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/services"
)

// multipartOverhead is the request size allowance on top of the file limit
// for form fields and part headers.
const multipartOverhead = 1 << 20

type AttachmentHandler struct {
	attachments *services.AttachmentService
	maxBytes    int64
}

func NewAttachmentHandler(attachments *services.AttachmentService, maxBytes int64) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, maxBytes: maxBytes}
}

// Upload accepts a multipart form with number, optional area_code and file.
// The caller's lock stays in place.
func (h *AttachmentHandler) Upload(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	att, err := h.attachments.Upload(c.Request.Context(), actor, services.UploadInput{
		Number:      c.PostForm("number"),
		AreaCode:    c.PostForm("area_code"),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "attachment": att, "file_url": att.FileURL})
}

func (h *AttachmentHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, err := h.attachments.List(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Download streams /files/:name to the caller as an attachment.
func (h *AttachmentHandler) Download(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	att, rc, err := h.attachments.Fetch(c.Request.Context(), actor, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	contentType := att.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, att.SizeBytes, contentType, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName}),
	})
}
