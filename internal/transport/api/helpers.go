package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fsdevblog/groph-pay/internal/transport/api/middlewares"
)

// getUserIDFromContext возвращает id юзера, положенный в контекст auth-middleware'ой.
// Вызывается только в хендлерах за AuthRequired.
func getUserIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(middlewares.CurrentUserIDKey)
}
