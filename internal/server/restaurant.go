package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	restaurantdomain "github.com/smallbiznis/qrdine/internal/restaurant/domain"
)

func (s *Server) CreateRestaurant(c *gin.Context) {
	var req restaurantdomain.CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	item, err := s.restaurantSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetRestaurant(c *gin.Context) {
	item, err := s.restaurantSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("restaurantId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateTaxSettings(c *gin.Context) {
	var req restaurantdomain.UpdateTaxSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("restaurantId"))

	item, err := s.restaurantSvc.UpdateTaxSettings(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
