package campaign

import "strings"

// Normalize converts a raw document into Metadata. It never fails: absent
// fields become empty strings, an empty hashtag list, or a nil price.
func Normalize(raw StandardMetadata) Metadata {
	meta := Metadata{
		ID:       strings.TrimSpace(raw.ID),
		Hashtags: normalizeHashtags(raw.Hashtags),
	}
	if raw.Titles != nil {
		meta.Titles.EN = strings.TrimSpace(raw.Titles.EN)
		meta.Titles.HI = strings.TrimSpace(raw.Titles.HI)
	}
	if meta.Titles.EN == "" {
		meta.Titles.EN = strings.TrimSpace(raw.TitleEN)
	}
	if meta.Titles.HI == "" {
		meta.Titles.HI = strings.TrimSpace(raw.TitleHI)
	}

	if raw.Description != nil {
		meta.Description.HI = strings.TrimSpace(raw.Description.HI)
		meta.Description.EN = strings.TrimSpace(raw.Description.EN)
	}
	if meta.Description.HI == "" {
		meta.Description.HI = strings.TrimSpace(raw.DescriptionHI)
	}

	if raw.CTA != nil {
		meta.CTA.WhatsApp = strings.TrimSpace(raw.CTA.WhatsApp)
	}
	if meta.CTA.WhatsApp == "" {
		meta.CTA.WhatsApp = strings.TrimSpace(raw.CTAWhatsApp)
	}

	meta.Price = normalizePrice(raw.Price)
	return meta
}

// ToLegacyShape flattens Metadata for callers still on the legacy shape.
func ToLegacyShape(meta Metadata) LegacyMetadata {
	legacy := LegacyMetadata{
		TitleEN:       meta.Titles.EN,
		TitleHI:       meta.Titles.HI,
		DescriptionHI: meta.Description.HI,
		Hashtags:      append([]string{}, meta.Hashtags...),
		CTAWhatsApp:   meta.CTA.WhatsApp,
	}
	if meta.Price != nil {
		p := *meta.Price
		legacy.Price = &p
	}
	return legacy
}

// FromLegacy lifts a legacy-shaped input into Metadata.
func FromLegacy(legacy LegacyMetadata) Metadata {
	return Normalize(StandardMetadata{
		TitleEN:       legacy.TitleEN,
		TitleHI:       legacy.TitleHI,
		DescriptionHI: legacy.DescriptionHI,
		Price:         legacy.Price,
		Hashtags:      legacy.Hashtags,
		CTAWhatsApp:   legacy.CTAWhatsApp,
	})
}

func normalizePrice(p *Price) *Price {
	if p == nil || (p.Low <= 0 && p.High <= 0) {
		return nil
	}
	out := *p
	out.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))
	if out.Currency == "" {
		out.Currency = DefaultCurrency
	}
	return &out
}

// normalizeHashtags trims entries, drops empties and duplicates, and adds a
// leading '#' to bare words. Order is preserved.
func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || t == "#" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
