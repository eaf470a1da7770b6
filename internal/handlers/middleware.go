package handlers

import (
	"net/http"
	"strings"

	"temperaturebox/internal/models"
	"temperaturebox/internal/service"

	"github.com/gin-gonic/gin"
)

const operatorKey = "operator"

// operatorMiddleware resolves the bearer token to an operator. The operator
// rides on the request context so box commands are attributed to it.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || scheme != "Bearer" || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header format"})
		return
	}

	op, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(operatorKey, op)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), op))
	c.Next()
}

// currentOperator returns the operator set by operatorMiddleware, if any.
func currentOperator(c *gin.Context) (models.Operator, bool) {
	v, ok := c.Get(operatorKey)
	if !ok {
		return models.Operator{}, false
	}
	op, ok := v.(models.Operator)
	return op, ok
}
