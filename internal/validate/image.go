package validate

import (
	"encoding/base64"
	"fmt"
	"strings"

	"copilot-gateway/internal/core"
)

const dataURLPrefix = "data:"

// ImageValidator provides image validation functionality
type ImageValidator struct{}

// NewImageValidator creates a new image validator
func NewImageValidator() *ImageValidator {
	return &ImageValidator{}
}

// ValidateImageData validates base64 encoded image data
func (v *ImageValidator) ValidateImageData(mediaType, data string) error {
	if !v.isFormatSupported(mediaType) {
		return fmt.Errorf("unsupported image format: %s. Supported formats: %v",
			mediaType, core.SupportedImageFormats)
	}

	// Check the encoded length first so huge payloads are never decoded
	estimatedSize := int64(len(data)) * 3 / 4
	if estimatedSize > core.MaxImageSizeBytes {
		return fmt.Errorf("image data too large: estimated %d bytes exceeds %d limit", estimatedSize, core.MaxImageSizeBytes)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("invalid base64 data: %w", err)
	}

	if int64(len(decoded)) > core.MaxImageSizeBytes {
		return fmt.Errorf("image size %d bytes exceeds maximum allowed size %d bytes",
			len(decoded), core.MaxImageSizeBytes)
	}

	return nil
}

// ValidateSource checks an Anthropic image source and returns the URL the
// upstream should receive for it.
func (v *ImageValidator) ValidateSource(src *core.AnthropicImageSource) (string, error) {
	if src == nil {
		return "", fmt.Errorf("image block has no source")
	}
	switch src.Type {
	case core.ImageSourceTypeBase64:
		if err := v.ValidateImageData(src.MediaType, src.Data); err != nil {
			return "", err
		}
		return DataURL(src.MediaType, src.Data), nil
	case core.ImageSourceTypeURL:
		if src.URL == "" {
			return "", fmt.Errorf("image source url is empty")
		}
		return src.URL, nil
	default:
		return "", fmt.Errorf("unsupported image source type: %q", src.Type)
	}
}

// ValidateURL checks an OpenAI image_url value. Only data URLs are inspected;
// remote URLs are left for the upstream to fetch.
func (v *ImageValidator) ValidateURL(url string) error {
	mediaType, data, ok := ParseDataURL(url)
	if !ok {
		if strings.HasPrefix(url, dataURLPrefix) {
			return fmt.Errorf("malformed data url")
		}
		return nil
	}
	return v.ValidateImageData(mediaType, data)
}

func (v *ImageValidator) isFormatSupported(mediaType string) bool {
	for _, format := range core.SupportedImageFormats {
		if strings.EqualFold(format, mediaType) {
			return true
		}
	}
	return false
}

// DataURL builds a base64 data URL.
func DataURL(mediaType, data string) string {
	return dataURLPrefix + mediaType + ";base64," + data
}

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(url string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(url, dataURLPrefix) {
		return "", "", false
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(url, dataURLPrefix), ",")
	if !found {
		return "", "", false
	}
	parts := strings.Split(header, ";")
	if len(parts) < 2 || parts[len(parts)-1] != "base64" {
		return "", "", false
	}
	return parts[0], payload, true
}
