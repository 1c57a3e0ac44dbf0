package handler

import (
	"errors"
	"net/http"

	"github.com/choraleia/explorer/pkg/models"
	"github.com/choraleia/explorer/pkg/service"
	"github.com/gin-gonic/gin"
)

// deletionStatus reports every failure of a started deletion as a conflict,
// whatever the underlying filesystem error was.
func deletionStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNothingMarked):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

type planDeletionRequest struct {
	DirectoryID string `json:"directory_id"`
}

// PlanDeletion discovers the content of a marked directory. An empty
// directory_id selects the first marked directory.
func (h *ExplorerHandler) PlanDeletion(c *gin.Context) {
	var req planDeletionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	plan, err := h.svc.PlanDeletion(c.Request.Context(), c.Param("id"), req.DirectoryID)
	if err != nil {
		h.logger.Warn("Failed to plan deletion", "sessionID", c.Param("id"), "directoryId", req.DirectoryID, "error", err)
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: plan})
}

func (h *ExplorerHandler) GetPlan(c *gin.Context) {
	plan, err := h.svc.Plan(c.Param("id"), c.Param("planId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: plan})
}

// ExecutePlan runs the plan to completion. A failed run answers 409 with
// the items still left, and the same plan can be executed again.
func (h *ExplorerHandler) ExecutePlan(c *gin.Context) {
	plan, err := h.svc.ExecutePlan(c.Request.Context(), c.Param("id"), c.Param("planId"))
	if err != nil {
		status := deletionStatus(err)
		c.JSON(status, models.Response{Code: status, Message: err.Error(), Data: plan})
		return
	}
	h.logger.Info("Deletion plan executed", "sessionID", c.Param("id"), "planId", c.Param("planId"))
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: plan})
}

func (h *ExplorerHandler) DiscardPlan(c *gin.Context) {
	if err := h.svc.DiscardPlan(c.Param("id"), c.Param("planId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok"})
}

// DeleteFiles deletes the marked files. A failed run answers 409 with the
// files that are still marked.
func (h *ExplorerHandler) DeleteFiles(c *gin.Context) {
	remaining, err := h.svc.DeleteMarkedFiles(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := deletionStatus(err)
		c.JSON(status, models.Response{Code: status, Message: err.Error(), Data: gin.H{"remaining": remaining}})
		return
	}
	h.logger.Info("Marked files deleted", "sessionID", c.Param("id"))
	c.JSON(http.StatusOK, models.Response{Code: 0, Message: "ok", Data: gin.H{"remaining": remaining}})
}
