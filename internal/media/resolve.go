package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
)

// ResolveOptions narrows which files are publishable.
type ResolveOptions struct {
	// ImagesOnly excludes video files.
	ImagesOnly bool
	// AllowGIF admits .gif as an image.
	AllowGIF bool
}

// Resolve builds the ordered media sequence for a campaign directory.
//
// A non-empty assets list is resolved in order relative to campaignDir;
// entries that are missing or escape the campaign root are dropped with a
// warning. Otherwise {campaignDir}/assets is scanned, skipping derived
// files, and sorted by case-insensitive filename. Unsupported extensions are filtered out. When
// headIndex is in range, that element is moved to the front and the rest keep
// their relative order. An empty result is a NoUsableMedia error.
func Resolve(campaignDir string, assets []string, headIndex *int, opts ResolveOptions) ([]Ref, error) {
	var paths []string
	if len(assets) > 0 {
		paths = explicitPaths(campaignDir, assets)
	} else {
		scanned, err := scanAssets(filepath.Join(campaignDir, campaign.AssetsDir))
		if err != nil {
			return nil, publish.Wrap(publish.KindNoUsableMedia, err, "scan assets")
		}
		paths = scanned
	}

	refs := make([]Ref, 0, len(paths))
	for _, p := range paths {
		if _, ok := KindForExt(filepath.Ext(p), opts); !ok {
			log.Debug().Str("path", p).Msg("Skipping unsupported media file")
			continue
		}
		ref, err := LocalFile(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping media file")
			continue
		}
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return nil, publish.Errorf(publish.KindNoUsableMedia, "no supported media in %s", campaignDir)
	}

	refs = RotateHead(refs, headIndex)
	log.Info().Str("campaign_dir", campaignDir).Int("count", len(refs)).Str("head", refs[0].Name()).Msg("Media resolved")
	return refs, nil
}

// RotateHead moves refs[*headIndex] to the front, preserving the order of the
// remaining elements. Out-of-range or nil indexes leave refs unchanged.
func RotateHead(refs []Ref, headIndex *int) []Ref {
	if headIndex == nil || *headIndex <= 0 || *headIndex >= len(refs) {
		return refs
	}
	i := *headIndex
	out := make([]Ref, 0, len(refs))
	out = append(out, refs[i])
	out = append(out, refs[:i]...)
	out = append(out, refs[i+1:]...)
	return out
}

func explicitPaths(campaignDir string, assets []string) []string {
	root, err := filepath.Abs(campaignDir)
	if err != nil {
		root = filepath.Clean(campaignDir)
	}

	paths := make([]string, 0, len(assets))
	for _, rel := range assets {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
			log.Warn().Str("asset", rel).Msg("Asset escapes campaign directory, dropping")
			continue
		}
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			log.Warn().Str("asset", rel).Msg("Asset not found, dropping")
			continue
		}
		paths = append(paths, full)
	}
	return paths
}

func scanAssets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("assets directory not found: %s", dir)
		}
		return nil, fmt.Errorf("read assets directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), DerivedPrefix) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return strings.ToLower(filepath.Base(paths[i])) < strings.ToLower(filepath.Base(paths[j]))
	})
	return paths, nil
}

// FromDocumentMedia converts catalogue media entries into remote or inline
// refs ordered by their order field. Only images are kept.
func FromDocumentMedia(items []campaign.MediaItem) ([]Ref, error) {
	sorted := append([]campaign.MediaItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	refs := make([]Ref, 0, len(sorted))
	for _, item := range sorted {
		if item.Type != "" && item.Type != string(KindImage) {
			continue
		}
		switch {
		case item.URL != "":
			refs = append(refs, RemoteURL(item.URL, KindImage))
		case item.Base64Data != "":
			ref, err := InlineBase64(item.Base64Data, KindImage)
			if err != nil {
				log.Warn().Err(err).Int("order", item.Order).Msg("Skipping malformed inline media")
				continue
			}
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, publish.Errorf(publish.KindNoUsableMedia, "document has no usable image media")
	}
	return refs, nil
}
