package handlers

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/statustracker/backend/internal/transport/http/dto"
)

type Uploader interface {
	Accept(ctx context.Context, r io.ReadSeeker, declaredName string) (string, error)
}

type UploadHandler struct {
	uploads Uploader
	logger  *logger.Logger
}

func NewUploadHandler(uploads Uploader, logger *logger.Logger) *UploadHandler {
	return &UploadHandler{uploads: uploads, logger: logger}
}

func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		h.logger.Warnw("upload_missing_file", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "no file selected"})
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Errorw("upload_open_failed", "file", fh.Filename, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "uploaded file is not readable"})
	}
	defer f.Close()

	taskID, err := h.uploads.Accept(c.UserContext(), f, fh.Filename)
	if err != nil {
		return respondError(c, h.logger, "upload_failed", err, "file", fh.Filename)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.UploadResponse{
		TaskID:  taskID,
		Message: "file accepted for processing",
	})
}
