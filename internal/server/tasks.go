package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"day2do/internal/models"
	"day2do/internal/planner"
)

// taskRequest mirrors the task form. estimatedTime may arrive as text or as
// a number depending on the client.
type taskRequest struct {
	Title         string `json:"title"`
	EstimatedTime any    `json:"estimatedTime"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
}

func (r taskRequest) draft() models.Draft {
	return models.Draft{
		Title:         r.Title,
		EstimatedTime: rawMinutes(r.EstimatedTime),
		Priority:      r.Priority,
		Category:      r.Category,
	}
}

func rawMinutes(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// handleListTasks returns all tasks in insertion order.
func (s *Server) handleListTasks(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"tasks": s.store.Tasks()})
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.store.Task(c.Param("id"))
	if !ok {
		s.respondError(c, statusFor(planner.ErrTaskNotFound), planner.ErrTaskNotFound)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleCreateTask appends a new task.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.Create(req.draft())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask replaces the editable fields of a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.store.Update(c.Param("id"), req.draft())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleToggleTask flips the completed flag.
func (s *Server) handleToggleTask(c *gin.Context) {
	task, err := s.store.ToggleCompleted(c.Param("id"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task once the client passes confirm=true.
func (s *Server) handleDeleteTask(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := s.store.Delete(c.Param("id"), confirmed); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
