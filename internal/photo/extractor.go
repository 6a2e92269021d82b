// Package photo extracts embedded capture metadata from raw image bytes.
// Extraction is a pure function over the bytes and never fails hard: any
// parse error yields a Metadata value with HasMetadata=false, since absence
// of metadata is itself a signal for downstream scoring rather than an error.
package photo

import (
	"bytes"
	"fmt"
	"time"

	"github.com/h2non/bimg"
	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/snapquest/api/internal/geo"
)

// Metadata holds the attributes embedded in an image by the capturing
// device. All fields except HasMetadata are optional; pointers are nil when
// the corresponding tag was absent.
type Metadata struct {
	HasMetadata bool `json:"has_metadata"`

	// Location is the embedded GPS position in decimal degrees.
	Location *geo.Point `json:"location,omitempty"`

	// CapturedAt is the capture timestamp normalized to an absolute instant.
	CapturedAt *time.Time `json:"captured_at,omitempty"`

	// TimestampInvalid is set when a capture timestamp tag was present but
	// could not be parsed.
	TimestampInvalid bool `json:"timestamp_invalid,omitempty"`

	// Camera is the capturing device identity, "Make Model" when both tags
	// are present.
	Camera string `json:"camera,omitempty"`

	// Exposure summarizes the technical exposure parameters, e.g.
	// "1/250s f/1.8 ISO 100". Empty when none were recorded.
	Exposure string `json:"exposure,omitempty"`

	// Width and Height are pixel dimensions, zero when undeterminable.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Extract parses embedded metadata from raw image bytes. It never returns
// an error; a photo whose metadata cannot be parsed produces a zero-value
// Metadata with HasMetadata=false.
func Extract(data []byte) Metadata {
	var meta Metadata

	if len(data) == 0 {
		return meta
	}

	// Pixel dimensions come from the image header, available even when the
	// EXIF block is stripped.
	if size, err := bimg.NewImage(data).Size(); err == nil {
		meta.Width = size.Width
		meta.Height = size.Height
	}

	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}
	meta.HasMetadata = true

	if lat, lng, err := x.LatLong(); err == nil {
		meta.Location = &geo.Point{Lat: lat, Lng: lng}
	}

	meta.CapturedAt, meta.TimestampInvalid = captureTime(x)
	meta.Camera = cameraIdentity(x)
	meta.Exposure = exposureSummary(x)

	return meta
}

// captureTime returns the normalized capture instant, or nil plus an
// invalid flag when a timestamp tag exists but does not parse.
func captureTime(x *goexif.Exif) (*time.Time, bool) {
	tagPresent := false
	for _, field := range []goexif.FieldName{goexif.DateTimeOriginal, goexif.DateTime} {
		if _, err := x.Get(field); err == nil {
			tagPresent = true
			break
		}
	}
	if !tagPresent {
		return nil, false
	}

	ts, err := x.DateTime()
	if err != nil {
		return nil, true
	}
	utc := ts.UTC()
	return &utc, false
}

// cameraIdentity joins the Make and Model tags into a single identity
// string, tolerating either being absent.
func cameraIdentity(x *goexif.Exif) string {
	var maker, model string
	if tag, err := x.Get(goexif.Make); err == nil {
		maker, _ = tag.StringVal()
	}
	if tag, err := x.Get(goexif.Model); err == nil {
		model, _ = tag.StringVal()
	}

	switch {
	case maker != "" && model != "":
		return maker + " " + model
	case model != "":
		return model
	default:
		return maker
	}
}

// exposureSummary renders shutter speed, aperture, and ISO into a compact
// human-readable string for the audit trail.
func exposureSummary(x *goexif.Exif) string {
	var parts []string

	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			parts = append(parts, fmt.Sprintf("%d/%ds", num, den))
		}
	}
	if tag, err := x.Get(goexif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil && den != 0 {
			parts = append(parts, fmt.Sprintf("f/%.1f", float64(num)/float64(den)))
		}
	}
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			parts = append(parts, fmt.Sprintf("ISO %d", iso))
		}
	}

	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
