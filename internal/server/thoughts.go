package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type thoughtsRequest struct {
	Thoughts *string `json:"thoughts"`
}

// handleGetThoughts returns the free-form thoughts text.
func (s *Server) handleGetThoughts(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"thoughts": s.store.Thoughts()})
}

// handleSetThoughts replaces the thoughts text. An empty string is allowed.
func (s *Server) handleSetThoughts(c *gin.Context) {
	var req thoughtsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Thoughts == nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("thoughts is required"))
		return
	}

	s.store.SetThoughts(*req.Thoughts)
	respondSuccess(c, http.StatusOK, gin.H{"thoughts": *req.Thoughts})
}
