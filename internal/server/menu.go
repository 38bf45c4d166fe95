package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	menudomain "github.com/smallbiznis/qrdine/internal/menu/domain"
)

func (s *Server) CreateMenuItem(c *gin.Context) {
	var req menudomain.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.RestaurantID = strings.TrimSpace(c.Param("restaurantId"))

	item, err := s.menuSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) ListMenuItems(c *gin.Context) {
	includeHidden, err := parseOptionalBool(c.Query("include_hidden"))
	if err != nil {
		AbortWithError(c, newValidationError("include_hidden", "invalid_include_hidden", "include_hidden must be a boolean"))
		return
	}

	items, err := s.menuSvc.List(c.Request.Context(), menudomain.ListMenuItemsRequest{
		RestaurantID:  strings.TrimSpace(c.Param("restaurantId")),
		Category:      strings.TrimSpace(c.Query("category")),
		IncludeHidden: lo.FromPtr(includeHidden),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) UpdateMenuItem(c *gin.Context) {
	var req menudomain.UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	item, err := s.menuSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
