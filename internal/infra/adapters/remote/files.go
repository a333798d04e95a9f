package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
)

// FileClient загружает файл в хранилище relay и возвращает абсолютную подписанную ссылку
type FileClient struct {
	c *client
}

func NewFileClient(baseURL, token string, hc *http.Client) (*FileClient, error) {
	c, err := newClient(baseURL, token, hc)
	if err != nil {
		return nil, err
	}

	return &FileClient{c: c}, nil
}

func (f *FileClient) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return "", errors.New("file name is empty")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}

		_ = pw.CloseWithError(err)
	}()

	req, err := f.c.newRequest(ctx, http.MethodPost, "/api/v1/files", pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp dto.FileResponse
	if err = f.c.do(req, &resp); err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	return f.c.resolve(resp.URL)
}
