package api

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/garagescholars/garage-tech-stack-sub001/media"
)

// maxUploadBytes bounds the multipart body held in memory; larger parts
// spill to temporary files.
const maxUploadBytes = 32 << 20

// uploadMedia handles POST /v1/jobs/:jobId/media. The multipart form
// carries a "kind" field and a "file" part.
func (a *API) uploadMedia(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(c, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	kind := media.Kind(c.PostForm("kind"))
	if !kind.Valid() {
		badRequest(c, fmt.Sprintf("unknown media kind %q", kind))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Sprintf("missing file: %v", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, fmt.Sprintf("open upload: %v", err))
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	p, err := a.eng.AttachMedia(c.Request.Context(), jobID, actorFrom(c), kind,
		filepath.Base(fh.Filename), contentType, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, MediaResponse{Path: p})
}

// mediaURL handles GET /v1/media/url?path=.
func (a *API) mediaURL(c *gin.Context) {
	p := c.Query("path")
	if p == "" {
		badRequest(c, "path is required")
		return
	}
	u, err := a.eng.MediaURL(c.Request.Context(), p)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MediaResponse{Path: p, URL: u})
}
