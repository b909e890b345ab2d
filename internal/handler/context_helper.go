package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-routine-api/internal/middleware"
	"github.com/noah-isme/campus-routine-api/internal/models"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// dayFromQuery reads the optional day query parameter. An empty value means the whole week.
func dayFromQuery(c *gin.Context) (models.Weekday, error) {
	raw := strings.TrimSpace(c.Query("day"))
	if raw == "" {
		return "", nil
	}
	day, ok := models.ParseWeekday(raw)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "day must be a weekday between Monday and Friday")
	}
	return day, nil
}

func responseMeta(c *gin.Context, cacheHit bool) map[string]interface{} {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{"cache_hit": cacheHit}
	}
	return meta
}
