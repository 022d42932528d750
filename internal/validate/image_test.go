package validate

import (
	"encoding/base64"
	"strings"
	"testing"

	"copilot-gateway/internal/core"
)

func TestImageValidator_ValidateImageData(t *testing.T) {
	validator := NewImageValidator()

	smallPNG := base64.StdEncoding.EncodeToString(make([]byte, 100))

	tests := []struct {
		name      string
		mediaType string
		data      string
		wantErr   bool
	}{
		{"valid png", "image/png", smallPNG, false},
		{"valid jpeg", "image/jpeg", smallPNG, false},
		{"valid gif", "image/gif", smallPNG, false},
		{"valid webp", "image/webp", smallPNG, false},
		{"case insensitive format", "IMAGE/PNG", smallPNG, false},
		{"unsupported format", "image/bmp", smallPNG, true},
		{"invalid base64", "image/png", "!!!invalid!!!", true},
		// Empty string is valid base64 (decodes to empty bytes)
		{"empty data", "image/png", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImageData(tt.mediaType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageData() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestImageValidator_RejectsOversizedPayloadBeforeDecoding(t *testing.T) {
	validator := NewImageValidator()
	huge := strings.Repeat("A", int(core.MaxImageSizeBytes)*4/3+8)

	err := validator.ValidateImageData("image/png", huge)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestImageValidator_ValidateSource(t *testing.T) {
	validator := NewImageValidator()
	data := base64.StdEncoding.EncodeToString([]byte("png-bytes"))

	tests := []struct {
		name    string
		src     *core.AnthropicImageSource
		wantURL string
		wantErr bool
	}{
		{
			name:    "base64 source becomes data url",
			src:     &core.AnthropicImageSource{Type: core.ImageSourceTypeBase64, MediaType: "image/png", Data: data},
			wantURL: "data:image/png;base64," + data,
		},
		{
			name:    "url source passes through",
			src:     &core.AnthropicImageSource{Type: core.ImageSourceTypeURL, URL: "https://example.com/a.png"},
			wantURL: "https://example.com/a.png",
		},
		{name: "nil source", src: nil, wantErr: true},
		{name: "empty url", src: &core.AnthropicImageSource{Type: core.ImageSourceTypeURL}, wantErr: true},
		{name: "unknown type", src: &core.AnthropicImageSource{Type: "file"}, wantErr: true},
		{
			name:    "unsupported media type",
			src:     &core.AnthropicImageSource{Type: core.ImageSourceTypeBase64, MediaType: "image/tiff", Data: data},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validator.ValidateSource(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.wantURL {
				t.Errorf("ValidateSource() = %q, want %q", got, tt.wantURL)
			}
		})
	}
}

func TestImageValidator_ValidateURL(t *testing.T) {
	validator := NewImageValidator()
	data := base64.StdEncoding.EncodeToString([]byte("x"))

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"remote url", "https://example.com/cat.jpg", false},
		{"valid data url", "data:image/jpeg;base64," + data, false},
		{"data url without base64 marker", "data:image/jpeg," + data, true},
		{"data url with bad format", "data:image/bmp;base64," + data, true},
		{"data url without payload separator", "data:image/png;base64", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantMedia string
		wantData  string
		wantOK    bool
	}{
		{"png", "data:image/png;base64,QUJD", "image/png", "QUJD", true},
		{"extra params", "data:image/png;charset=utf-8;base64,QUJD", "image/png", "QUJD", true},
		{"not a data url", "https://example.com", "", "", false},
		{"missing comma", "data:image/png;base64", "", "", false},
		{"not base64", "data:text/plain,hello", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			media, data, ok := ParseDataURL(tt.url)
			if ok != tt.wantOK || media != tt.wantMedia || data != tt.wantData {
				t.Errorf("ParseDataURL(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.url, media, data, ok, tt.wantMedia, tt.wantData, tt.wantOK)
			}
		})
	}

	if got := DataURL("image/gif", "R0lG"); got != "data:image/gif;base64,R0lG" {
		t.Errorf("DataURL() = %q", got)
	}
}
