package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/pkg/errors"
)

// readImage extracts the image bytes from a JSON, multipart or raw body.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	var data []byte
	switch mediaType {
	case "application/json":
		data, err = readJSON(r)
	case "multipart/form-data":
		data, err = readMultipart(r, maxBytes)
	default:
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}
	return data, nil
}

func readJSON(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Wrap(err, "invalid JSON body")
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64 image")
	}
	return data, nil
}

func readMultipart(r *http.Request, maxBytes int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, errors.Wrap(err, "invalid multipart body")
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.Wrap(err, "missing form file \"file\"")
	}
	defer file.Close()

	return io.ReadAll(file)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// annotationFormat accepts the formats render.Encode can write.
func annotationFormat(s string) (images.ImageFormat, error) {
	format, err := images.ParseFormat(s)
	if err != nil {
		return "", err
	}
	switch format {
	case images.FormatJPEG, images.FormatPNG, images.FormatWebP:
		return format, nil
	}
	return "", errors.Wrapf(images.ErrUnsupportedFormat, "cannot annotate as %s", format)
}

// statusFor maps pipeline errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, inference.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, images.ErrInvalidImage), errors.Is(err, preprocess.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_image"
	case errors.Is(err, postprocess.ErrInvalidOutput):
		return http.StatusBadGateway, "invalid_output"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, "superseded"
	}
	return http.StatusInternalServerError, "processing_error"
}
