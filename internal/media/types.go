// Package media resolves a campaign's assets into an ordered sequence of
// publishable references. Element 0 of a resolved sequence is the head: the
// only item that carries the caption.
package media

import (
	"fmt"
	"strings"
)

// SupportedImageExtensions maps publishable image extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// GIFExtension is accepted only when ResolveOptions.AllowGIF is set.
const GIFExtension = ".gif"

// SupportedVideoExtensions maps publishable video extensions to MIME types.
var SupportedVideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// DerivedPrefix marks files generated from an asset, such as enhanced
// copies. Directory scans skip them so they never publish alongside the
// original.
const DerivedPrefix = "enhanced_"

// Kind is the media type of a reference.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// GetMIMEType returns the MIME type for a file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}
	if ext == GIFExtension {
		return "image/gif", nil
	}
	if mimeType, ok := SupportedVideoExtensions[ext]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the extension is a supported image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the extension is a supported video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// KindForExt classifies an extension under opts.
func KindForExt(ext string, opts ResolveOptions) (Kind, bool) {
	ext = strings.ToLower(ext)
	switch {
	case IsImage(ext):
		return KindImage, true
	case ext == GIFExtension && opts.AllowGIF:
		return KindImage, true
	case IsVideo(ext) && !opts.ImagesOnly:
		return KindVideo, true
	}
	return "", false
}

// ExtForMIME returns the preferred file extension for an image or video MIME type.
func ExtForMIME(mimeType string) (string, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg", true
	case "image/png":
		return ".png", true
	case "image/webp":
		return ".webp", true
	case "image/gif":
		return GIFExtension, true
	case "video/mp4":
		return ".mp4", true
	case "video/quicktime":
		return ".mov", true
	case "video/webm":
		return ".webm", true
	}
	return "", false
}

// KindForMIME classifies a MIME type by its top-level type.
func KindForMIME(mimeType string) (Kind, bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo, true
	}
	return "", false
}
