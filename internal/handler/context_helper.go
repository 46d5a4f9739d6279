package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusconnect/campus-connect-api/internal/middleware"
	"github.com/campusconnect/campus-connect-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFrom(c)
}
