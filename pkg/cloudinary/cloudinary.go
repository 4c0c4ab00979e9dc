// Package cloudinary stores profile photos on Cloudinary.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Client uploads images and hands back their public URL.
type Client struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}

	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = "outpass"
	}

	return &Client{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends an image to Cloudinary and returns its secure URL. The public
// id is derived from the given name, so re-uploading the same name replaces
// the previous image.
func (c *Client) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	overwrite := true
	params := uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     publicID(name),
		ResourceType: "image",
		Overwrite:    &overwrite,
	}

	result, err := c.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	c.logger.Info().Str("public_id", result.PublicID).Msg("image uploaded")

	return result.SecureURL, nil
}

func publicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '/':
			return r
		}
		return '-'
	}, base)

	return strings.Trim(base, "-/")
}
