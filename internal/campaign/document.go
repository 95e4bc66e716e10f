package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MetadataFile is the per-campaign metadata document inside a campaign directory.
const MetadataFile = "metadata.json"

// AssetsDir is the conventional media directory inside a campaign directory.
const AssetsDir = "assets"

// MediaItem is a product media entry as stored by the catalogue database.
type MediaItem struct {
	URL        string `json:"url,omitempty" dynamodbav:"url,omitempty"`
	Type       string `json:"type,omitempty" dynamodbav:"type,omitempty"`
	Order      int    `json:"order,omitempty" dynamodbav:"order,omitempty"`
	Base64Data string `json:"base64_data,omitempty" dynamodbav:"base64Data,omitempty"`
}

// Document is the stored campaign document: metadata plus its media layout.
type Document struct {
	StandardMetadata

	// Assets are paths relative to the campaign root, in publish order.
	Assets    []string    `json:"assets,omitempty" dynamodbav:"assets,omitempty"`
	HeadIndex *int        `json:"head_index,omitempty" dynamodbav:"headIndex,omitempty"`
	Media     []MediaItem `json:"media,omitempty" dynamodbav:"media,omitempty"`
}

// Metadata returns the normalized metadata for the document.
func (d Document) Metadata() Metadata {
	return Normalize(d.StandardMetadata)
}

// LoadDir reads {dir}/metadata.json. A missing id defaults to the directory name.
func LoadDir(dir string) (*Document, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.ID == "" {
		doc.ID = filepath.Base(filepath.Clean(dir))
	}
	return &doc, nil
}

// WriteDir writes the document as {dir}/metadata.json.
func WriteDir(dir string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// NewID returns a short random campaign id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Status is the lifecycle state of a stored campaign.
type Status string

const (
	StatusUploaded           Status = "uploaded"
	StatusProcessing         Status = "processing"
	StatusReady              Status = "ready"
	StatusPublishing         Status = "publishing"
	StatusPublished          Status = "published"
	StatusPartiallyPublished Status = "partially_published"
	StatusFailed             Status = "failed"
	StatusError              Status = "error"
)

// Record is a campaign as persisted by a store.
type Record struct {
	Document

	Status    Status    `json:"status" dynamodbav:"status"`
	Dir       string    `json:"dir,omitempty" dynamodbav:"dir,omitempty"`
	ReelKey   string    `json:"reelKey,omitempty" dynamodbav:"reelKey,omitempty"`
	Error     string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}
