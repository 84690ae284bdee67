package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/geodata/internal/usecase"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate    *validator.Validate
	tileUseCase *usecase.TileUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.TileUseCase) *Handler {
	return &Handler{
		validate:    v,
		tileUseCase: uc,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, InternalServerError.Error(), nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// bind reads uri parameters into params and validates them.
func (h *Handler) bind(c *gin.Context, params any) bool {
	if err := c.ShouldBindUri(params); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, ErrInvalidTileIndex.Error(), nil)
		return false
	}
	if err := h.validate.Struct(params); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return false
	}
	return true
}

func requestLogger(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		return l.(logger.Logger)
	}
	return logger.FromContext(c.Request.Context())
}
