package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"satellite-pos/internal/dto"
	"satellite-pos/internal/service"
)

type SyncHandler struct {
	syncService service.SyncService
}

func NewSyncHandler(syncService service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

func (h *SyncHandler) SyncShift(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := h.syncService.SyncShift(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, counts)
}

func (h *SyncHandler) ExportShift(c echo.Context) error {
	ctx := c.Request().Context()

	bundle, err := h.syncService.ExportShift(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.ExportResponse{Bundle: bundle})
}

func (h *SyncHandler) ImportBundle(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ImportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Bundle == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing bundle")
	}

	counts, err := h.syncService.ImportBundle(ctx, req.Bundle)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, counts)
}

func (h *SyncHandler) Purge(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PurgeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.BeforeMs <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "before_ms must be positive")
	}

	purged, err := h.syncService.PurgeOrdersBefore(ctx, req.BeforeMs)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.PurgeResponse{Purged: purged})
}

func (h *SyncHandler) RefreshWorkingCopy(c echo.Context) error {
	ctx := c.Request().Context()

	n, err := h.syncService.RefreshWorkingCopy(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, dto.RefreshResponse{Customers: n})
}
