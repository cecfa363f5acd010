package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/service"
)

type ReferralHandler struct {
	svs ReferralServicer
}

func NewReferralHandler(svs ReferralServicer) *ReferralHandler {
	return &ReferralHandler{
		svs: svs,
	}
}

type ReferralCodeResponse struct {
	Code string `json:"code"`
}

// Code GET RouteGroup + ReferralCodeRoute. Выдает (или возвращает существующий) код юзера.
func (r *ReferralHandler) Code(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	code, err := r.svs.EnsureCode(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &ReferralCodeResponse{Code: code.Code})
}

type ActivateParams struct {
	Code string `json:"code" binding:"required"`
}

type ReferralEdgeResponse struct {
	ReferrerID     int64 `json:"referrer_id"`
	RefereeID      int64 `json:"referee_id"`
	ReferrerReward int64 `json:"referrer_reward"`
	RefereeReward  int64 `json:"referee_reward"`
}

// Activate POST RouteGroup + ReferralRoute. Активация чужого кода текущим юзером.
// Повторная активация — no-op с существующей связью в ответе.
func (r *ReferralHandler) Activate(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params ActivateParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	edge, err := r.svs.Process(reqCtx, currentUserID, params.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			c.AbortWithStatus(http.StatusNotFound)
		case errors.Is(err, service.ErrSelfReferral):
			c.AbortWithStatus(http.StatusConflict)
		default:
			_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		}
		return
	}

	c.JSON(http.StatusOK, &ReferralEdgeResponse{
		ReferrerID:     edge.ReferrerID,
		RefereeID:      edge.RefereeID,
		ReferrerReward: edge.ReferrerReward,
		RefereeReward:  edge.RefereeReward,
	})
}
