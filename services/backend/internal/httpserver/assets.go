package httpserver

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/asset"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/services/backend/internal/transport"
)

const maxAssetSize = 10 << 20

type AssetHTTP struct {
	Disk asset.Disk
}

// Upload stores the raw request body and returns its public URL.
func (h *AssetHTTP) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "asset.upload")

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxAssetSize+1))
	if err != nil {
		return badRequest(l, "upload_error", "cannot read body", err)
	}
	if len(data) == 0 {
		return badRequest(l, "upload_error", "empty body", nil)
	}
	if len(data) > maxAssetSize {
		l.Warn("upload_error", "status", 413, "reason", "asset too large", "size", len(data))
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "asset too large")
	}

	ct := c.Request().Header.Get(echo.HeaderContentType)
	if ct == "" || ct == echo.MIMEOctetStream {
		ct = http.DetectContentType(data)
	}
	name := "products/" + uuid.NewString() + extension(ct)

	if err := h.Disk.Put(ctx, name, bytes.NewReader(data), ct); err != nil {
		l.Error("upload_error", "status", 500, "reason", "cannot store asset", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store asset")
	}

	l.Info("upload_success", "asset", name, "size", len(data), "content_type", ct)
	return c.JSON(http.StatusCreated, transport.AssetResponse{URL: h.Disk.URL(name)})
}

func (h *AssetHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "asset.get")

	name := path.Clean("/" + c.Param("*"))[1:]
	if name == "" || !h.Disk.Exists(ctx, name) {
		return echo.NewHTTPError(http.StatusNotFound, "asset not found")
	}
	rc, err := h.Disk.Get(ctx, name)
	if err != nil {
		l.Error("get_asset_error", "status", 500, "reason", "cannot read asset", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read asset")
	}
	defer rc.Close()

	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, ct, rc)
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
