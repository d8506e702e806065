package media

import "errors"

// ErrUnreadable indicates the source file could not be probed or split.
// Jobs fail fast on this error (reason MEDIA_UNREADABLE).
var ErrUnreadable = errors.New("media unreadable")

// ErrSplitFailed indicates ffmpeg failed while extracting a chunk window.
var ErrSplitFailed = errors.New("media split failed")

// ErrOpFailed indicates an ffmpeg audio/video operation failed.
var ErrOpFailed = errors.New("media operation failed")
