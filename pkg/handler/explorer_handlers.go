package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/choraleia/explorer/pkg/explorer"
	"github.com/choraleia/explorer/pkg/models"
	"github.com/choraleia/explorer/pkg/service"
	"github.com/choraleia/explorer/pkg/utils"
	"github.com/gin-gonic/gin"
)

type ExplorerHandler struct {
	svc     *service.ExplorerService
	history *service.UploadHistoryService
	logger  *slog.Logger
}

func NewExplorerHandler(svc *service.ExplorerService, history *service.UploadHistoryService) *ExplorerHandler {
	return &ExplorerHandler{svc: svc, history: history, logger: utils.GetLogger()}
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, explorer.ErrPlanInProgress),
		errors.Is(err, fs.ErrExist):
		return http.StatusConflict
	case errors.Is(err, explorer.ErrInvalidPath),
		errors.Is(err, explorer.ErrUnknownAction),
		errors.Is(err, explorer.ErrNotInListing),
		errors.Is(err, service.ErrInvalidItemID),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrNothingMarked),
		errors.Is(err, service.ErrNotADirectory),
		errors.Is(err, service.ErrNotAFile),
		errors.Is(err, service.ErrRootDirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := errorStatus(err)
	c.JSON(status, models.Response{Code: status, Message: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.Response{Code: 400, Message: msg})
}

type createSessionRequest struct {
	Mode string `json:"mode"`
	User string `json:"user"`
}

func (h *ExplorerHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	sess, err := h.svc.CreateSession(req.User, explorer.Mode(req.Mode))
	if err != nil {
		h.logger.Warn("Failed to create explorer session", "mode", req.Mode, "error", err)
		badRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: sess.Info()})
}

func (h *ExplorerHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: h.svc.Sessions()})
}

func (h *ExplorerHandler) CloseSession(c *gin.Context) {
	if err := h.svc.CloseSession(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok"})
}

func (h *ExplorerHandler) GetState(c *gin.Context) {
	sess, err := h.svc.Session(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: sess.Store.Snapshot()})
}

// Dispatch accepts one action envelope: {"type": "...", "payload": {...}}.
func (h *ExplorerHandler) Dispatch(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	action, err := explorer.DecodeAction(raw)
	if err != nil {
		h.logger.Warn("Rejected explorer action", "sessionID", c.Param("id"), "error", err)
		fail(c, err)
		return
	}

	snap, err := h.svc.Dispatch(c.Param("id"), action)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: snap})
}

func (h *ExplorerHandler) Listing(c *gin.Context) {
	view, err := h.svc.Listing(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: view})
}

type createFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *ExplorerHandler) CreateFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dir, err := h.svc.CreateFolder(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		h.logger.Warn("Failed to create folder", "sessionID", c.Param("id"), "name", req.Name, "error", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: dir})
}

type moveRequest struct {
	What              string  `json:"what" binding:"required"`
	TargetDirectoryID *string `json:"target_directory_id" binding:"required"`
}

// Move moves the marked files or directories. On failure the IDs moved so
// far are returned with the error.
func (h *ExplorerHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	moved, err := h.svc.MoveMarked(c.Request.Context(), c.Param("id"), service.MoveTarget(req.What), *req.TargetDirectoryID)
	if err != nil {
		h.logger.Error("Move failed", "sessionID", c.Param("id"), "moved", len(moved), "error", err)
		status := errorStatus(err)
		c.JSON(status, models.Response{Code: status, Message: err.Error(), Data: gin.H{"moved": moved}})
		return
	}
	h.logger.Info("Moved marked items", "sessionID", c.Param("id"), "count", len(moved))
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: gin.H{"moved": moved}})
}
