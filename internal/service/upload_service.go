package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/repository"
)

// Upload errors.
var (
	ErrUploadMissing        = errors.New("no file provided")
	ErrUploadsDisabled      = errors.New("photo uploads are not configured")
	ErrUploadTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
}

// FileStorage abstracts uploading binary data and returning a URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService stores profile photos for accounts.
type UploadService interface {
	UploadProfileImage(ctx context.Context, userID uint, file *multipart.FileHeader) (dto.UserResponse, error)
}

type uploadService struct {
	storage FileStorage
	users   repository.UserRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs the upload service.
func NewUploadService(storage FileStorage, users repository.UserRepository, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &uploadService{
		storage: storage,
		users:   users,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/campuspass/outpass-api/internal/service/upload"),
	}
}

func (s *uploadService) UploadProfileImage(ctx context.Context, userID uint, file *multipart.FileHeader) (dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.profile_image")
	defer span.End()

	if s.storage == nil {
		return dto.UserResponse{}, ErrUploadsDisabled
	}
	if file == nil {
		return dto.UserResponse{}, ErrUploadMissing
	}
	if file.Size > s.maxSize {
		return dto.UserResponse{}, ErrUploadTooLarge
	}

	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.size", file.Size),
	)

	source, err := file.Open()
	if err != nil {
		return dto.UserResponse{}, err
	}
	defer source.Close()

	data, err := io.ReadAll(io.LimitReader(source, s.maxSize+1))
	if err != nil {
		return dto.UserResponse{}, err
	}
	if int64(len(data)) > s.maxSize {
		return dto.UserResponse{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(data)
	if _, ok := allowedImageTypes[detected.String()]; !ok {
		return dto.UserResponse{}, ErrUploadTypeNotAllowed
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, ErrUserNotFound
	}

	name := fmt.Sprintf("profiles/user-%d%s", userID, detected.Extension())
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(data))
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.ProfileImage = url
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", userID).Str("mime", detected.String()).Msg("profile image stored")

	return dto.NewUserResponse(user), nil
}
