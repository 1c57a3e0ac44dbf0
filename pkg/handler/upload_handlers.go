package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/choraleia/explorer/pkg/models"
	"github.com/choraleia/explorer/pkg/service"
	"github.com/gin-gonic/gin"
)

// Upload enqueues the multipart field "file" into the current directory and
// returns the pending upload. The transfer continues after the response.
func (h *ExplorerHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "missing multipart field 'file'")
		return
	}
	defer func() { _ = file.Close() }()

	if _, err := h.svc.Session(c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	payload, err := service.SpoolPayload(header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to spool upload", "filename", header.Filename, "error", err)
		fail(c, err)
		return
	}

	u, err := h.svc.Upload(c.Param("id"), payload)
	if err != nil {
		if closer, ok := payload.Body.(io.Closer); ok {
			_ = closer.Close()
		}
		h.logger.Warn("Upload rejected", "sessionID", c.Param("id"), "filename", header.Filename, "error", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: u})
}

func (h *ExplorerHandler) ListUploads(c *gin.Context) {
	uploads, err := h.svc.Uploads(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: uploads})
}

// UploadHistory lists recorded uploads. Filters: session_id, directory_id,
// status, limit, offset.
func (h *ExplorerHandler) UploadHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: gin.H{"items": []any{}, "has_more": false}})
		return
	}

	q := service.HistoryQuery{
		SessionID: c.Query("session_id"),
		Status:    c.Query("status"),
	}
	if v, ok := c.GetQuery("directory_id"); ok {
		q.DirectoryID = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			q.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			q.Offset = n
		}
	}

	records, hasMore, err := h.history.List(q)
	if err != nil {
		h.logger.Error("Failed to list upload history", "error", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: gin.H{"items": records, "has_more": hasMore}})
}
