package controllers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/visionboard/backend/config"
	"github.com/visionboard/backend/livesync"
	"github.com/visionboard/backend/middleware"
	"github.com/visionboard/backend/utils"
)

func getUserID(ctx *gin.Context) (string, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return "", false
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// readUpload loads a multipart file into memory, enforcing the
// configured size limit and resolving its content type from the part
// header or the file bytes.
func readUpload(ctx *gin.Context, file *multipart.FileHeader) ([]byte, string, error) {
	maxBytes := int64(config.Get().StorageMaxUploadMB) << 20
	if maxBytes > 0 && file.Size > maxBytes {
		return nil, "", fmt.Errorf("%w: file exceeds %dMB limit", utils.ErrValidation, config.Get().StorageMaxUploadMB)
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("%w: cannot open upload", utils.ErrValidation)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", fmt.Errorf("%w: cannot read upload", utils.ErrValidation)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", utils.ErrValidation)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func sseHeaders(ctx *gin.Context) {
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
}

// streamList pipes subscription deliveries to the client as SSE "list"
// events until the client disconnects or the subscription ends. The
// subscription is released on every exit path; an erroring delivery is
// reported as a terminal "error" event rather than silently dropping to
// stale data.
func streamList[T livesync.Record](ctx *gin.Context, col *livesync.Collection[T], ownerID string, filters ...livesync.Filter) {
	deliveries, cancel, err := col.Subscribe(ctx.Request.Context(), ownerID, filters...)
	if err != nil {
		utils.FailErr(ctx, err)
		return
	}
	defer cancel()

	sseHeaders(ctx)
	ctx.Stream(func(w io.Writer) bool {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			if d.Err != nil {
				ctx.SSEvent("error", gin.H{"message": d.Err.Error()})
				return false
			}
			ctx.SSEvent("list", d.Items)
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
