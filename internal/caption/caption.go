// Package caption renders post captions from normalized campaign metadata.
// Output is deterministic: the same metadata always yields the same bytes.
package caption

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/fpang/prachar/internal/campaign"
)

const (
	// InstagramHashtagLimit is how many hashtags the Instagram caption keeps.
	InstagramHashtagLimit = 5
	// InstagramMaxRunes is Instagram's caption length ceiling.
	InstagramMaxRunes = 2200

	whatsAppLinkText = "Order on WhatsApp"
	instagramClosing = "📱 DM for orders & custom designs!"
)

var instagramBranding = []string{
	"🎨 Handcrafted with love by Indian artisans",
	"🛍️ Support local craftspeople & traditional art",
	"🌱 Sustainable • Authentic • Unique",
}

// Build renders the caption for platform. Unknown platforms get the
// Instagram plain-text variant.
func Build(meta campaign.Metadata, platform campaign.Platform) string {
	if platform == campaign.PlatformTelegram {
		return Telegram(meta)
	}
	return Instagram(meta)
}

// Telegram renders an HTML caption for the Bot API's HTML parse mode. One line
// per present field; absent fields produce no line at all.
func Telegram(meta campaign.Metadata) string {
	var lines []string

	if title := joinNonEmpty(" ", meta.Titles.HI, meta.Titles.EN); title != "" {
		lines = append(lines, "<b>"+html.EscapeString(title)+"</b>")
	}
	if meta.Description.HI != "" {
		lines = append(lines, html.EscapeString(meta.Description.HI))
	}
	if line := priceLine(meta.Price); line != "" {
		lines = append(lines, line)
	}
	if len(meta.Hashtags) > 0 {
		lines = append(lines, html.EscapeString(strings.Join(meta.Hashtags, " ")))
	}
	if meta.CTA.WhatsApp != "" {
		lines = append(lines, fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(meta.CTA.WhatsApp), whatsAppLinkText))
	}
	return strings.Join(lines, "\n")
}

// Instagram renders a plain-text caption. Sections are separated by a blank
// line; only the first InstagramHashtagLimit hashtags are kept.
func Instagram(meta campaign.Metadata) string {
	var sections []string

	if title := joinNonEmpty(" • ", meta.Titles.HI, meta.Titles.EN); title != "" {
		sections = append(sections, "✨ "+title)
	}
	if meta.Description.HI != "" {
		sections = append(sections, meta.Description.HI)
	}
	sections = append(sections, strings.Join(instagramBranding, "\n"))

	tags := meta.Hashtags
	if len(tags) > InstagramHashtagLimit {
		tags = tags[:InstagramHashtagLimit]
	}
	if len(tags) > 0 {
		sections = append(sections, strings.Join(tags, " "))
	}
	sections = append(sections, instagramClosing)

	return truncateRunes(strings.Join(sections, "\n\n"), InstagramMaxRunes)
}

func priceLine(p *campaign.Price) string {
	if !p.HasRange() {
		return ""
	}
	currency := p.Currency
	if currency == "" {
		currency = campaign.DefaultCurrency
	}
	return fmt.Sprintf("💰 %s–%s %s", p.Low, p.High, html.EscapeString(currency))
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
