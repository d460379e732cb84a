package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/cuongbtq/coursehub/internal/api/dto"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/gin-gonic/gin"
)

const formFileField = "file"

// formFile reads the multipart "file" field
func formFile(c *gin.Context) (*multipart.FileHeader, multipart.File, error) {
	fh, err := c.FormFile(formFileField)
	if err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			return nil, nil, err
		}
		return nil, nil, domain.NewError(domain.ErrValidation, "a CSV file is required", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, domain.NewError(domain.ErrValidation, "failed to read uploaded file", err)
	}
	return fh, f, nil
}

func toWorkflowFile(fh *multipart.FileHeader, f multipart.File) workflow.File {
	return workflow.File{Name: fh.Filename, Size: fh.Size, Content: f}
}

// Upload handles POST /api/upload
// Stores the file and returns the path the backend reads it from
func (h *Handler) Upload(c *gin.Context) {
	fh, f, err := formFile(c)
	if err != nil {
		h.fail(c, err, domain.MsgUploadFailed)
		return
	}
	defer f.Close()

	filePath, err := h.files.Save(c.Request.Context(), fh.Filename, f)
	if err != nil {
		h.fail(c, domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err), domain.MsgUploadFailed)
		return
	}

	h.logger.Info("File uploaded",
		slog.String("filename", fh.Filename),
		slog.Int64("size", fh.Size),
		slog.String("file_path", filePath),
	)

	c.JSON(http.StatusOK, dto.UploadResponse{FilePath: filePath})
}

// Download handles GET /api/download?path=
// Streams a stored file back to the client
func (h *Handler) Download(c *gin.Context) {
	p := strings.TrimSpace(c.Query("path"))
	if p == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "path is required",
		})
		return
	}

	h.stream(c, p)
}

// stream copies the stored file at p into the response
func (h *Handler) stream(c *gin.Context, p string) {
	rc, err := h.files.Open(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err, domain.MsgDownloadFailed)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)

	n, err := io.Copy(c.Writer, rc)
	if err != nil {
		// headers are already sent
		h.logger.Error("Failed to stream file",
			slog.String("path", p),
			slog.Int64("written", n),
			slog.Any("error", err),
		)
	}
}
