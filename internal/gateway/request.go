package gateway

import (
	"context"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
)

// RequestFromDocument builds a publish request for doc. Database-shaped
// documents with a media list publish those images; otherwise assets are
// resolved relative to dir.
func RequestFromDocument(doc *campaign.Document, dir string) (Request, error) {
	req := Request{Metadata: doc.Metadata()}

	var err error
	if len(doc.Media) > 0 {
		req.Media, err = media.FromDocumentMedia(doc.Media)
		req.Media = media.RotateHead(req.Media, doc.HeadIndex)
	} else {
		req.Media, err = media.Resolve(dir, doc.Assets, doc.HeadIndex, media.ResolveOptions{})
	}
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// AssetURLFunc returns a fetchable URL for a campaign-relative asset path.
type AssetURLFunc func(ctx context.Context, asset string) (string, error)

// RequestFromRemoteAssets is RequestFromDocument for campaigns whose assets
// live in object storage rather than on local disk. Assets that cannot be
// signed or have unsupported extensions are dropped with a warning.
func RequestFromRemoteAssets(ctx context.Context, doc *campaign.Document, assetURL AssetURLFunc) (Request, error) {
	if len(doc.Media) > 0 {
		return RequestFromDocument(doc, "")
	}
	req := Request{Metadata: doc.Metadata()}
	refs := make([]media.Ref, 0, len(doc.Assets))
	for _, asset := range doc.Assets {
		kind, ok := media.KindForExt(path.Ext(asset), media.ResolveOptions{})
		if !ok {
			log.Warn().Str("asset", asset).Msg("Skipping unsupported asset")
			continue
		}
		u, err := assetURL(ctx, asset)
		if err != nil {
			log.Warn().Err(err).Str("asset", asset).Msg("Skipping asset without URL")
			continue
		}
		refs = append(refs, media.RemoteURL(u, kind))
	}
	if len(refs) == 0 {
		return Request{}, publish.Errorf(publish.KindNoUsableMedia, "campaign %s has no publishable stored assets", doc.ID)
	}
	req.Media = media.RotateHead(refs, doc.HeadIndex)
	return req, nil
}
