package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
	ErrTooLarge    = errors.New("file too large")
)

// FileStore - хранилище байтов файлов, которыми делятся в звонке
type FileStore interface {
	// Put сохраняет файл и возвращает ключ объекта вида <uuid>/<name>
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, object string) (*os.File, error)
}

type localStore struct {
	dir     string
	maxSize int64
}

// NewLocalStore складывает файлы в dir/<uuid>/<name>. maxSize <= 0 - без ограничения.
func NewLocalStore(dir string, maxSize int64) (FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create file dir: %w", err)
	}

	return &localStore{dir: dir, maxSize: maxSize}, nil
}

func (s *localStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	dir := filepath.Join(s.dir, id)

	if err = os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}

	if err = s.copy(ctx, f, r); err != nil {
		_ = f.Close()
		_ = os.RemoveAll(dir)
		return "", err
	}

	if err = f.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("close object: %w", err)
	}

	return id + "/" + name, nil
}

func (s *localStore) Open(_ context.Context, object string) (*os.File, error) {
	id, name, ok := strings.Cut(object, "/")
	if !ok {
		return nil, ErrInvalidName
	}

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidName
	}

	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, id, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}

	return f, nil
}

func (s *localStore) copy(ctx context.Context, w io.Writer, r io.Reader) error {
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}

	n, err := io.Copy(w, ctxReader{ctx: ctx, r: src})
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}

	if s.maxSize > 0 && n > s.maxSize {
		return ErrTooLarge
	}

	return nil
}

// cleanName оставляет только базовое имя, без путей
func cleanName(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == "/" || name == "" || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidName
	}

	return name, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
