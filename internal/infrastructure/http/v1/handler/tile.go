package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geodata/internal/infrastructure/http/v1/dto"
)

func (h *Handler) Elevation(c *gin.Context) {
	l := requestLogger(c)

	var params dto.TileParams
	if !h.bind(c, &params) {
		return
	}

	tile, err := h.tileUseCase.GetElevation(c.Request.Context(), params.X, params.Z)
	if err != nil {
		l.Error("failed to get elevation tile", "x", params.X, "z", params.Z, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Header("X-Tile-Width", strconv.Itoa(tile.Width))
	c.Header("X-Tile-Height", strconv.Itoa(tile.Height))
	c.Header("X-Elevation-Min", strconv.Itoa(int(tile.Range.Min)))
	c.Header("X-Elevation-Max", strconv.Itoa(int(tile.Range.Max)))
	c.Data(http.StatusOK, "application/octet-stream", tile.Data)
}

func (h *Handler) Osm(c *gin.Context) {
	l := requestLogger(c)

	var params dto.TileParams
	if !h.bind(c, &params) {
		return
	}

	data, err := h.tileUseCase.GetOsm(c.Request.Context(), params.X, params.Z)
	if err != nil {
		l.Error("failed to get osm tile", "x", params.X, "z", params.Z, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Data(http.StatusOK, "application/geo+json", data)
}
