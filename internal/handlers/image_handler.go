package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/imagehost"
	"expensetracker/internal/logger"
)

// MaxImageSize caps uploaded image bodies.
const MaxImageSize = 10 << 20

// ImageHandler accepts image uploads and hands them to the image host.
type ImageHandler struct {
	uploader imagehost.Uploader
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(uploader imagehost.Uploader) *ImageHandler {
	return &ImageHandler{uploader: uploader}
}

// UploadImageRequest is the multipart form of an image upload.
type UploadImageRequest struct {
	Folder string                `form:"folder" binding:"required,image_folder"`
	File   *multipart.FileHeader `form:"file" binding:"required"`
}

// UploadImageResponse carries the public URL of a stored image.
type UploadImageResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// UploadImage stores an image and returns its public URL
// @Summary     Upload image
// @Description Upload an image into one of the folders wallets, transactions, goals or users. The returned URL can be stored on the matching record.
// @Tags        images
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       folder formData string true "Target folder"
// @Param       file   formData file   true "Image file"
// @Success     201 {object} UploadImageResponse "Image stored"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     502 {object} ErrorResponse "Upload failed"
// @Router      /images [post]
func (h *ImageHandler) UploadImage(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageSize+1<<20)

	var req UploadImageRequest
	if err := c.ShouldBind(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.File.Size > MaxImageSize {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "image is larger than 10MB"))
		return
	}

	f, err := req.File.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInvalidInput, err))
		return
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "file is not an image"))
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	url, err := h.uploader.Upload(c.Request.Context(), f, req.Folder, req.File.Filename)
	if err != nil {
		logger.Get().Errorw("image upload failed", "user_id", userID, "folder", req.Folder, "error", err)
		respondWithError(c, apperrors.ErrImageUpload)
		return
	}

	c.JSON(http.StatusCreated, UploadImageResponse{Success: true, URL: url})
}
