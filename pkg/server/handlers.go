package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ethangrabau/mythra-web/pkg/core"
	"github.com/ethangrabau/mythra-web/pkg/logger"
	"github.com/ethangrabau/mythra-web/pkg/workflow"
)

type printRequest struct {
	ImageName string `json:"imageName"`
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handlePrint(c echo.Context) error {
	var req printRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.ImageName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Image name is required"})
	}
	if err := workflow.ValidateImageName(req.ImageName); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := s.printer.Print(c.Request().Context(), req.ImageName)
	switch {
	case errors.Is(err, core.ErrDeviceBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": "device is busy"})
	case errors.Is(err, core.ErrDeviceNotFound):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no connected device"})
	case err != nil:
		logger.Error("Print of %s failed: %v", req.ImageName, err)
		body := map[string]any{
			"error":  "print workflow failed",
			"detail": err.Error(),
		}
		if result != nil {
			body["runId"] = result.RunID
			body["failedState"] = result.FailedState.String()
		}
		return c.JSON(http.StatusInternalServerError, body)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "Print job started successfully",
		"runId":  result.RunID,
	})
}
