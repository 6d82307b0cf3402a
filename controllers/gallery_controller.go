package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/models"
	"github.com/visionboard/backend/storage"
	"github.com/visionboard/backend/utils"
)

// GalleryController accepts image uploads and serves the uploaded-image
// gallery. The metadata record is written strictly after the upload
// pipeline returned a retrievable URL; a failed upload leaves no trace
// in the gallery.
type GalleryController struct {
	images   *livesync.Collection[*models.UploadedImage]
	uploader *storage.Uploader
}

func NewGalleryController(db *gorm.DB, notifier livesync.Notifier, uploader *storage.Uploader) *GalleryController {
	images := livesync.NewCollection(db, notifier, utils.Log(), livesync.Config{
		Kind:       "images",
		Table:      "uploaded_images",
		SortColumn: "created_at",
		SortDesc:   true,
	}, func() *models.UploadedImage { return &models.UploadedImage{} })
	return &GalleryController{images: images, uploader: uploader}
}

// Upload runs the upload pipeline for a multipart image and then
// records it in the gallery.
func (g *GalleryController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	file, err := ctx.FormFile("image")
	if err != nil || file == nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "image file is required")
		return
	}

	imageType := ctx.PostForm("type")
	if imageType == "" {
		imageType = models.ImageTypeVision
	}
	if imageType != models.ImageTypeVision && imageType != models.ImageTypeProof {
		utils.Error(ctx, http.StatusBadRequest, 40003, "type must be vision or proof")
		return
	}

	data, contentType, err := readUpload(ctx, file)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}

	url, err := g.uploader.Upload(ctx.Request.Context(), data, contentType, imageType)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}

	image := &models.UploadedImage{URL: url, Type: imageType}
	if err := g.images.Add(ctx.Request.Context(), userID, image); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"image": image})
}

// List returns the owner's gallery, newest first.
func (g *GalleryController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	items, err := g.images.List(ctx.Request.Context(), userID)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"images": items})
}

// Delete removes the gallery record. The stored object itself is kept;
// other records may reference the same URL.
func (g *GalleryController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := g.images.Remove(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		utils.FailErr(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "deleted"})
}

// Stream pushes the owner's full gallery on every change.
func (g *GalleryController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	streamList(ctx, g.images, userID)
}
