package handler

import (
	"net/http"

	"storyboard-server/internal/batch"
	"storyboard-server/internal/middleware"
	"storyboard-server/internal/models"
	"storyboard-server/internal/service"

	"github.com/gin-gonic/gin"
)

type charactersRequest struct {
	Characters []models.CharacterDefinition `json:"characters"`
}

type insertShotRequest struct {
	After int `json:"after"`
}

type editShotRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

type frameStyleRequest struct {
	Style string `json:"style"`
}

type renderAllResponse struct {
	Project *models.Project `json:"project"`
	Report  *batch.Report   `json:"report"`
}

func (h *StoryboardHandler) createStoryboard(c *gin.Context) {
	var req service.CreateStoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.CreateStoryboard(c.Request.Context(), middleware.UserFrom(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *StoryboardHandler) createQuickStoryboard(c *gin.Context) {
	var req service.QuickStoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.CreateQuickStoryboard(c.Request.Context(), middleware.UserFrom(c), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *StoryboardHandler) listStoryboards(c *gin.Context) {
	projects, err := h.storyboards.ListProjects(c.Request.Context(), middleware.UserFrom(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"storyboards": projects})
}

func (h *StoryboardHandler) getStoryboard(c *gin.Context) {
	project, err := h.storyboards.GetProject(c.Request.Context(), middleware.UserFrom(c), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) deleteStoryboard(c *gin.Context) {
	if err := h.storyboards.DeleteProject(c.Request.Context(), middleware.UserFrom(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryboardHandler) updateScript(c *gin.Context) {
	var upd models.ScriptUpdate
	if !bindStrict(c, &upd) {
		return
	}
	project, err := h.storyboards.UpdateScript(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), upd)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) mergeCharacters(c *gin.Context) {
	var req charactersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.MergeCharacters(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), req.Characters)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) insertShot(c *gin.Context) {
	var req insertShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.InsertShot(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), req.After)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) updateShot(c *gin.Context) {
	number, ok := shotNumber(c)
	if !ok {
		return
	}
	// the shot number is not a patchable field, so a body carrying one is rejected
	var patch models.ShotPatch
	if !bindStrict(c, &patch) {
		return
	}
	project, err := h.storyboards.UpdateShot(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), number, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) editShotWithPrompt(c *gin.Context) {
	number, ok := shotNumber(c)
	if !ok {
		return
	}
	var req editShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.EditShotWithPrompt(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), number, req.Instruction)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) deleteShot(c *gin.Context) {
	number, ok := shotNumber(c)
	if !ok {
		return
	}
	project, err := h.storyboards.DeleteShot(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), number)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) setFrameStyle(c *gin.Context) {
	number, ok := shotNumber(c)
	if !ok {
		return
	}
	var req frameStyleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return
	}
	project, err := h.storyboards.SetFrameStyle(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), number, req.Style)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *StoryboardHandler) renderFrame(c *gin.Context) {
	number, ok := shotNumber(c)
	if !ok {
		return
	}
	project, err := h.storyboards.RegenerateFrame(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), number)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// renderAllFrames starts the batch in the background and answers 202. With ?wait=true it runs
// the batch within the request and returns the final project with the report.
func (h *StoryboardHandler) renderAllFrames(c *gin.Context) {
	user := middleware.UserFrom(c)
	id := c.Param("id")

	if c.Query("wait") != "true" {
		if err := h.storyboards.StartGenerateAllFrames(c.Request.Context(), user, id); err != nil {
			handleServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "started", "project_id": id})
		return
	}

	project, report, err := h.storyboards.GenerateAllFrames(c.Request.Context(), user, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderAllResponse{Project: project, Report: report})
}
