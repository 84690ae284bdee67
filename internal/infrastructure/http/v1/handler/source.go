package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/geodata/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/geodata/internal/source"
)

func (h *Handler) Sources(c *gin.Context) {
	sources := h.tileUseCase.Sources()

	resp := make([]dto.SourceResponse, 0, len(sources))
	for _, s := range sources {
		resp = append(resp, dto.SourceResponse{
			Name:        s.Name,
			ElementType: string(s.ElementType),
			CacheRoot:   s.CacheRoot,
		})
	}

	h.RespondWithJSON(c, http.StatusOK, "got sources", resp)
}

func (h *Handler) SourceTile(c *gin.Context) {
	var params dto.SourceTileParams
	if !h.bind(c, &params) {
		return
	}

	info, err := h.tileUseCase.CacheInfo(params.Source, params.X, params.Z)
	if err != nil {
		if errors.Is(err, source.ErrUnknown) {
			h.RespondWithJSON(c, http.StatusNotFound, ErrUnknownSource.Error(), nil)
			return
		}
		requestLogger(c).Error("failed to get tile info", "source", params.Source, "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	resp := dto.TileInfoResponse{
		Source:      info.Source,
		ElementType: string(info.ElementType),
		X:           info.X,
		Z:           info.Z,
		CacheRoot:   info.CacheRoot,
		CachedName:  info.CachedName,
		Cached:      info.Cached,
	}
	if info.Bounds != nil {
		resp.Bounds = &dto.BoundsResponse{
			MinLat: info.Bounds.MinLat,
			MinLng: info.Bounds.MinLng,
			MaxLat: info.Bounds.MaxLat,
			MaxLng: info.Bounds.MaxLng,
		}
	}

	h.RespondWithJSON(c, http.StatusOK, "got tile info", resp)
}
