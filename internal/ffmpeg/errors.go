package ffmpeg

import "errors"

// ErrNotFound indicates the ffmpeg binary is not installed and
// auto-download failed.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrUnsupportedPlatform indicates the OS/architecture has no static
// build to auto-download.
var ErrUnsupportedPlatform = errors.New("unsupported platform for ffmpeg auto-download")

// ErrChecksumMismatch indicates a downloaded file failed checksum
// verification.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ErrDownloadFailed indicates a download could not be completed.
var ErrDownloadFailed = errors.New("download failed")
