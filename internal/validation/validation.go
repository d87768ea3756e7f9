package validation

import (
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"reel-editor/internal/models"
)

const (
	MaxFileSize    = 500 * 1024 * 1024 // 500MB
	MaxFilenameLen = 255
	MaxTitleLen    = 255
)

var (
	ErrFileTooLarge    = errors.New("file too large - maximum 500MB allowed")
	ErrInvalidFileType = errors.New("invalid file type - only mp4, mov, webm, mp3, wav, m4a, ogg, png, jpeg, gif, webp allowed")
	ErrFilenameTooLong = errors.New("filename too long - maximum 255 characters")
	ErrEmptyFile       = errors.New("file is empty")
	ErrTitleTooLong    = errors.New("title too long - maximum 255 characters")
	ErrInvalidStatus   = errors.New("status must be draft or done")
	ErrInvalidProject  = errors.New("invalid project_json")
)

// MediaClass groups upload types by the layer they can become.
type MediaClass string

const (
	MediaVideo MediaClass = "video"
	MediaAudio MediaClass = "audio"
	MediaImage MediaClass = "image"
)

var AllowedMimeTypes = map[string]MediaClass{
	"video/mp4":       MediaVideo,
	"video/quicktime": MediaVideo,
	"video/webm":      MediaVideo,
	"audio/mpeg":      MediaAudio,
	"audio/mp3":       MediaAudio,
	"audio/mp4":       MediaAudio,
	"audio/m4a":       MediaAudio,
	"audio/wav":       MediaAudio,
	"audio/wave":      MediaAudio,
	"audio/x-wav":     MediaAudio,
	"audio/ogg":       MediaAudio,
	"audio/vorbis":    MediaAudio,
	"image/png":       MediaImage,
	"image/jpeg":      MediaImage,
	"image/gif":       MediaImage,
	"image/webp":      MediaImage,
}

var extContentTypes = map[string]string{
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ValidateUpload checks an uploaded file and returns its content type and
// media class.
func ValidateUpload(fileHeader *multipart.FileHeader) (string, MediaClass, error) {
	if fileHeader.Size == 0 {
		return "", "", ErrEmptyFile
	}
	if fileHeader.Size > MaxFileSize {
		return "", "", ErrFileTooLarge
	}
	if len(fileHeader.Filename) > MaxFilenameLen {
		return "", "", ErrFilenameTooLong
	}

	contentType := fileHeader.Header.Get("Content-Type")
	// browsers send octet-stream for types they do not know
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = GuessContentType(fileHeader.Filename)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	class, ok := AllowedMimeTypes[strings.ToLower(contentType)]
	if !ok {
		return "", "", ErrInvalidFileType
	}
	return contentType, class, nil
}

func GuessContentType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ct, ok := extContentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func ValidateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return ErrTitleTooLong
	}
	return nil
}

func ValidateStatus(status models.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ValidateProjectJSON rejects documents a client should never send: unknown
// track types, clips without ids, duplicated clip ids and negative times.
// Overlapping video ranges are accepted; the editor lays them out again on
// load.
func ValidateProjectJSON(pj models.ProjectJSON) error {
	seen := make(map[string]bool)
	for _, track := range pj.Tracks {
		if !track.Type.Known() {
			return fmt.Errorf("%w: unknown track type %q", ErrInvalidProject, track.Type)
		}
		for _, clip := range track.Clips {
			if clip.ID == "" {
				return fmt.Errorf("%w: %s clip without id", ErrInvalidProject, track.Type)
			}
			if seen[clip.ID] {
				return fmt.Errorf("%w: duplicate clip id %q", ErrInvalidProject, clip.ID)
			}
			seen[clip.ID] = true
			for name, v := range map[string]*float64{"start": clip.Start, "end": clip.End, "duration": clip.Duration} {
				if v != nil && *v < 0 {
					return fmt.Errorf("%w: clip %q has negative %s", ErrInvalidProject, clip.ID, name)
				}
			}
		}
	}
	if s := pj.Settings; s != nil && s.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidProject)
	}
	return nil
}
