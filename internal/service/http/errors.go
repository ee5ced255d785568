package httpsvc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

const internalErrorMessage = "Internal server error"

// writeError переводит доменную ошибку в HTTP-ответ {"error": "..."}.
// Сообщения 5xx не раскрывают внутренние детали; они попадают только в лог.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Product not found"})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "User not found"})
	default:
		h.logger.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		}).Error("request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: internalErrorMessage})
	}
}

// bindJSON декодирует тело запроса; при ошибке отвечает 400 с текстом декодера.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}
