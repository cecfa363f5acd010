package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/service"
)

type GenerationsHandler struct {
	meter     MeterServicer
	generator Generator
}

func NewGenerationsHandler(meter MeterServicer, generator Generator) *GenerationsHandler {
	return &GenerationsHandler{
		meter:     meter,
		generator: generator,
	}
}

type GenerateParams struct {
	Prompt string `json:"prompt" binding:"required"`
}

type GenerateResponse struct {
	CallID string `json:"call_id"`
	Cost   int64  `json:"cost"`
	Result string `json:"result"`
}

// Create POST RouteGroup + GenerationsRoute. Метеризуемый вызов: списание до вызова внешнего
// сервиса, возврат кредитов при его неудаче. При нехватке кредитов вызов не выполняется вовсе.
func (g *GenerationsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params GenerateParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, GenerationServiceTimeout)
	defer cancel()

	callID := uuid.NewString()
	var result string

	err := g.meter.WithCredits(reqCtx, currentUserID, service.GenerationCost, callID,
		func(callCtx context.Context) error {
			var genErr error
			result, genErr = g.generator.Generate(callCtx, currentUserID, params.Prompt)
			return genErr
		})
	if err != nil {
		if errors.Is(err, domain.ErrNotEnoughCredits) {
			c.AbortWithStatus(http.StatusPaymentRequired)
			return
		}
		_ = c.AbortWithError(http.StatusBadGateway, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &GenerateResponse{
		CallID: callID,
		Cost:   service.GenerationCost,
		Result: result,
	})
}
