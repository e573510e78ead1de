package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-school-api/internal/middleware"
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// callerFromContext maps the token claims to the service-level caller.
func callerFromContext(c *gin.Context) (service.Caller, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Caller{}, false
	}
	return service.Caller{UserID: claims.UserID, Role: claims.Role}, true
}
