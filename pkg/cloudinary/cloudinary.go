package cloudinary

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Store implements the storage.BlobStore interface on top of Cloudinary.
// Blob keys are Cloudinary public IDs.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed blob store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Store{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Put uploads the payload under a fresh public ID and returns it.
func (s *Store) Put(ctx context.Context, data []byte, typeHint string) (string, error) {
	params := uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     uuid.NewString(),
		ResourceType: "auto",
	}

	result, err := s.client.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("type_hint", typeHint).Msg("blob uploaded to cloudinary")

	return result.PublicID, nil
}

// Delete destroys the asset with the given public ID. Destroying a missing
// asset is not treated as an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key})
	if err != nil {
		return fmt.Errorf("failed to destroy asset %s: %w", key, err)
	}

	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("unexpected destroy result for %s: %s", key, result.Result)
	}

	return nil
}

// Resolve returns a delivery URL for the stored asset.
func (s *Store) Resolve(key string) string {
	asset, err := s.client.Image(key)
	if err != nil {
		return key
	}

	url, err := asset.String()
	if err != nil {
		return key
	}

	return url
}
