package core

import "time"

// Session token lifecycle constants
const (
	SessionRefreshMargin = 60 * time.Second
	MinSessionRefreshGap = 1 * time.Second
)

// Device authorization constants
const (
	DefaultDevicePollInterval = 5 * time.Second
	DevicePollSlowDownStep    = 5 * time.Second
)

// HTTP client config constants
const (
	HTTPMaxIdleConns          = 500
	HTTPMaxIdleConnsPerHost   = 100
	HTTPMaxConnsPerHost       = 200
	HTTPIdleConnTimeout       = 600 * time.Second
	HTTPTLSHandshakeTimeout   = 30 * time.Second
	HTTPResponseHeaderTimeout = 60 * time.Second
	HTTPExpectContinueTimeout = 5 * time.Second
	HTTPRequestTimeout        = 10 * time.Minute
)

// Cache config constants
const (
	CacheDefaultCapacity = 64
	CacheCleanupInterval = 5 * time.Minute
	UsageCacheTTL        = 60 * time.Second
	UsageCacheKey        = "usage:v1"
)

// Stats and monitoring constants
const (
	StatsFilePath     = "stats.json"
	MinSaveInterval   = 5 * time.Second
	MaxRequestHistory = 1000
)

// Image validation constants
const (
	MaxImageSizeBytes = 20 * 1024 * 1024
	ImageFormatPNG    = "image/png"
	ImageFormatJPEG   = "image/jpeg"
	ImageFormatGIF    = "image/gif"
	ImageFormatWebP   = "image/webp"
)

// SupportedImageFormats supported image format list
var SupportedImageFormats = []string{ImageFormatPNG, ImageFormatJPEG, ImageFormatGIF, ImageFormatWebP}

// Request and response body size limits
const (
	MaxRequestBodySize   = 50 * 1024 * 1024
	MaxResponseBodySize  = 10 * 1024 * 1024
	MaxScannerBufferSize = 1024 * 1024
)

// Logging config constants
const (
	MaxDebugFilePathLength = 260
)

// File permission constants
const (
	FilePermissionReadWrite = 0644
	FilePermissionOwnerOnly = 0600
	DirPermissionOwnerOnly  = 0700
)
