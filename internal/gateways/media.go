package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".3gp":  "video/3gpp",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".txt":  "text/plain",
}

// MimeType returns the content type the provider expects for path.
func MimeType(path string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// UploadMedia uploads a local file and returns the provider media id.
func (c *Client) UploadMedia(ctx context.Context, path string, kind model.MediaKind) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}
	defer f.Close()

	mimeType := MimeType(path)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("messaging_product", messagingProduct); err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}
	if err := w.WriteField("type", mimeType); err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &SendError{Op: "upload", Message: err.Error(), Err: err}
	}

	response, err := c.call(ctx, "upload", "/media", w.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &resp); err != nil || resp.ID == "" {
		return "", &SendError{Op: "upload", Message: "response carries no media id", Err: ErrMalformedResponse}
	}

	logger.Debug("Media uploaded", "path", path, "kind", string(kind), "media_id", resp.ID)

	return resp.ID, nil
}
