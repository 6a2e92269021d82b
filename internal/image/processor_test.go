package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// testJPEG encodes a small gradient image as JPEG for processing tests.
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: 128,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestRenderDisplay_StripsMetadata(t *testing.T) {
	original := testJPEG(t, 100, 100)

	display, err := RenderDisplay(original)
	if err != nil {
		t.Fatalf("RenderDisplay failed: %v", err)
	}
	if len(display) == 0 {
		t.Fatal("display copy is empty")
	}

	noEXIF, err := VerifyNoEXIF(display)
	if err != nil {
		t.Fatalf("VerifyNoEXIF failed: %v", err)
	}
	if !noEXIF {
		t.Error("EXIF metadata still present in display copy")
	}
}

func TestRenderDisplayWithConfig_Downscales(t *testing.T) {
	original := testJPEG(t, 400, 200)

	display, err := RenderDisplayWithConfig(original, DisplayConfig{
		Quality:  85,
		MaxWidth: 100,
	})
	if err != nil {
		t.Fatalf("RenderDisplayWithConfig failed: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(display))
	if err != nil {
		t.Fatalf("failed to decode display copy: %v", err)
	}
	if cfg.Width > 100 {
		t.Errorf("expected width capped at 100, got %d", cfg.Width)
	}
}

func TestRenderDisplayWithConfig_SmallImageNotUpscaled(t *testing.T) {
	original := testJPEG(t, 50, 50)

	display, err := RenderDisplayWithConfig(original, DefaultDisplayConfig())
	if err != nil {
		t.Fatalf("RenderDisplayWithConfig failed: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(display))
	if err != nil {
		t.Fatalf("failed to decode display copy: %v", err)
	}
	if cfg.Width != 50 || cfg.Height != 50 {
		t.Errorf("expected 50x50 unchanged, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRenderDisplay_InvalidInput(t *testing.T) {
	if _, err := RenderDisplay([]byte("not an image")); err == nil {
		t.Error("expected error for non-image input")
	}
}

func TestDisplayKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "jpg key",
			key:      "submissions/user1/abc.jpg",
			expected: "display/submissions/user1/abc.jpg",
		},
		{
			name:     "heic key converts extension",
			key:      "submissions/user1/abc.heic",
			expected: "display/submissions/user1/abc.jpg",
		},
		{
			name:     "no extension",
			key:      "submissions/user1/abc",
			expected: "display/submissions/user1/abc.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayKey(tt.key); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
