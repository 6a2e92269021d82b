// Package image renders privacy-safe display copies of proof photos.
// Originals keep their EXIF intact for the verification pipeline; the
// display copy served to other users has all metadata stripped and is
// capped to feed dimensions so approved photos never leak GPS tags.
package image

import (
	"fmt"

	"github.com/h2non/bimg"
)

// DisplayConfig holds settings for display copy rendering.
type DisplayConfig struct {
	// Quality for JPEG encoding (1-100, default: 85)
	Quality int
	// MaxWidth limits display width (0 = no limit)
	MaxWidth int
	// MaxHeight limits display height (0 = no limit)
	MaxHeight int
}

// DefaultDisplayConfig returns the standard feed display settings.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Quality:   85,
		MaxWidth:  2048,
		MaxHeight: 2048,
	}
}

// RenderDisplay produces a display copy with default settings.
func RenderDisplay(inputBytes []byte) ([]byte, error) {
	return RenderDisplayWithConfig(inputBytes, DefaultDisplayConfig())
}

// RenderDisplayWithConfig re-encodes a photo for public display:
// all EXIF metadata is stripped, the image is downscaled to the
// configured bounds, and the output is always JPEG regardless of the
// source format so HEIC uploads render everywhere.
func RenderDisplayWithConfig(inputBytes []byte, config DisplayConfig) ([]byte, error) {
	img := bimg.NewImage(inputBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	options := bimg.Options{
		Quality:       config.Quality,
		StripMetadata: true,
		Type:          bimg.JPEG,
	}

	if config.MaxWidth > 0 && metadata.Size.Width > config.MaxWidth {
		options.Width = config.MaxWidth
	}
	if config.MaxHeight > 0 && metadata.Size.Height > config.MaxHeight {
		options.Height = config.MaxHeight
	}

	outputBytes, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to render display copy: %w", err)
	}

	return outputBytes, nil
}

// VerifyNoEXIF checks if the image has EXIF metadata.
// Returns true if no EXIF data is present, false otherwise.
func VerifyNoEXIF(imageBytes []byte) (bool, error) {
	img := bimg.NewImage(imageBytes)
	metadata, err := img.Metadata()
	if err != nil {
		return false, fmt.Errorf("failed to read image metadata: %w", err)
	}

	exif := metadata.EXIF
	hasEXIF := exif.Make != "" || exif.Model != "" ||
		exif.GPSLatitude != "" || exif.GPSLongitude != "" ||
		exif.DateTimeOriginal != "" || exif.Software != ""

	return !hasEXIF, nil
}
