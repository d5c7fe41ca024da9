package client

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"slices"
)

// encode builds the body for one attempt along with its content type.
// Multipart bodies are rebuilt each time since the file readers are consumed.
func (r *request) encode() (io.Reader, string, error) {
	if !r.call.multipart() {
		if r.body == nil {
			return http.NoBody, "", nil
		}
		return bytes.NewReader(r.body), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if r.body != nil {
		if err := w.WriteField("payload_json", string(r.body)); err != nil {
			return nil, "", err
		}
	}

	for _, name := range slices.Sorted(maps.Keys(r.call.Form)) {
		if err := w.WriteField(name, r.call.Form[name]); err != nil {
			return nil, "", err
		}
	}

	for i, file := range r.call.Files {
		if err := writeFile(w, fileField(i, len(r.call.Files)), file); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// fileField names a file part the way Discord expects: a lone upload is
// "file", several are "file0", "file1" and so on.
func fileField(index, total int) string {
	if total == 1 {
		return "file"
	}
	return fmt.Sprintf("file%d", index)
}

func writeFile(w *multipart.Writer, field string, file File) error {
	if file.Reader == nil {
		return fmt.Errorf("%w: %s has no reader", ErrInvalidFile, file.Name)
	}

	if _, err := file.Reader.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFile, file.Name, err)
	}

	part, err := w.CreateFormFile(field, file.Name)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, file.Reader); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidFile, file.Name, err)
	}
	return nil
}
