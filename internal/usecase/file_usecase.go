package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain/models"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/storage"
)

// SignedFile - результат загрузки: относительная подписанная ссылка
type SignedFile struct {
	URL       string
	Name      string
	ExpiresAt time.Time
}

type FileUsecase interface {
	Upload(ctx context.Context, userID uuid.UUID, ip, name string, r io.Reader) (*SignedFile, error)
	// Open проверяет подпись и открывает объект
	Open(ctx context.Context, object, expires, sig string) (*os.File, error)
}

type fileUsecase struct {
	store     storage.FileStore
	signer    *storage.Signer
	auditRepo repository.AuditRepository
}

func NewFileUsecase(store storage.FileStore, signer *storage.Signer, auditRepo repository.AuditRepository) FileUsecase {
	return &fileUsecase{
		store:     store,
		signer:    signer,
		auditRepo: auditRepo,
	}
}

func (f *fileUsecase) Upload(ctx context.Context, userID uuid.UUID, ip, name string, r io.Reader) (*SignedFile, error) {
	object, err := f.store.Put(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	// аудит не должен ломать загрузку
	if err = f.auditRepo.Add(ctx, models.NewAuditEntry(userID, models.ActionShareFile, object, ip)); err != nil {
		slog.Error("add audit entry", slog.Any(constant.Error, err), slog.Any(constant.UserID, userID))
	}

	link, expires := f.signer.Sign(object)

	return &SignedFile{
		URL:       link,
		Name:      path.Base(object),
		ExpiresAt: expires,
	}, nil
}

func (f *fileUsecase) Open(ctx context.Context, object, expires, sig string) (*os.File, error) {
	if err := f.signer.Verify(object, expires, sig); err != nil {
		return nil, err
	}

	return f.store.Open(ctx, object)
}
