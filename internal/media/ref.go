package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source tells which location variant a Ref holds.
type Source int

const (
	SourceLocal Source = iota + 1
	SourceRemote
	SourceInline
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceInline:
		return "inline"
	}
	return "unknown"
}

// Ref is a media reference holding exactly one location: a local path, a
// remote URL, or an inline base64 payload. Construct it with LocalFile,
// RemoteURL, or InlineBase64; the zero value is invalid.
type Ref struct {
	kind   Kind
	source Source
	value  string
	name   string
	mime   string
}

// LocalFile references a file on disk. The kind comes from its extension.
func LocalFile(p string) (Ref, error) {
	ext := filepath.Ext(p)
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return Ref{}, err
	}
	kind, _ := KindForMIME(mimeType)
	return Ref{kind: kind, source: SourceLocal, value: p, name: filepath.Base(p), mime: mimeType}, nil
}

// RemoteURL references media already reachable over HTTP.
func RemoteURL(rawURL string, kind Kind) Ref {
	name := "media"
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	mimeType, _ := GetMIMEType(path.Ext(name))
	return Ref{kind: kind, source: SourceRemote, value: rawURL, name: name, mime: mimeType}
}

// InlineBase64 references an embedded payload, either raw base64 or a
// data URL ("data:image/png;base64,...."). A data URL's MIME type overrides kind.
func InlineBase64(data string, kind Kind) (Ref, error) {
	mimeType := ""
	payload := data
	if strings.HasPrefix(data, "data:") {
		header, body, ok := strings.Cut(data, ",")
		if !ok {
			return Ref{}, fmt.Errorf("malformed data URL")
		}
		payload = body
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if k, ok := KindForMIME(mimeType); ok {
			kind = k
		}
	}
	if payload == "" {
		return Ref{}, fmt.Errorf("empty base64 payload")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
		if kind == KindVideo {
			mimeType = "video/mp4"
		}
	}
	ext := ".jpg"
	if kind == KindVideo {
		ext = ".mp4"
	}
	return Ref{kind: kind, source: SourceInline, value: payload, name: "inline" + ext, mime: mimeType}, nil
}

func (r Ref) Kind() Kind       { return r.kind }
func (r Ref) Source() Source   { return r.source }
func (r Ref) Name() string     { return r.name }
func (r Ref) MIMEType() string { return r.mime }
func (r Ref) IsVideo() bool    { return r.kind == KindVideo }

// Path returns the local path, or "" for other sources.
func (r Ref) Path() string {
	if r.source == SourceLocal {
		return r.value
	}
	return ""
}

// URL returns the remote URL, or "" for other sources.
func (r Ref) URL() string {
	if r.source == SourceRemote {
		return r.value
	}
	return ""
}

// Valid reports whether exactly one location is populated.
func (r Ref) Valid() bool {
	return r.source >= SourceLocal && r.source <= SourceInline && r.value != "" &&
		(r.kind == KindImage || r.kind == KindVideo)
}

// Decode returns the inline payload bytes.
func (r Ref) Decode() ([]byte, error) {
	if r.source != SourceInline {
		return nil, fmt.Errorf("%s media has no inline payload", r.source)
	}
	b, err := base64.StdEncoding.DecodeString(r.value)
	if err != nil {
		// Some producers strip padding.
		if b2, err2 := base64.RawStdEncoding.DecodeString(strings.TrimRight(r.value, "=")); err2 == nil {
			return b2, nil
		}
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return b, nil
}

// Open returns the media bytes for local and inline refs.
func (r Ref) Open() (io.ReadCloser, error) {
	switch r.source {
	case SourceLocal:
		return os.Open(r.value)
	case SourceInline:
		b, err := r.Decode()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(b)), nil
	default:
		return nil, fmt.Errorf("%s media cannot be opened locally", r.source)
	}
}

func (r Ref) String() string {
	if r.source == SourceInline {
		return fmt.Sprintf("%s:%s(%d bytes base64)", r.source, r.kind, len(r.value))
	}
	return fmt.Sprintf("%s:%s:%s", r.source, r.kind, r.value)
}
