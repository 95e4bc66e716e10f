// Package campaign holds the campaign metadata model shared by every
// publisher, and the conversions between the standardized document shape,
// the flat legacy shape, and the normalized Metadata the publishers consume.
package campaign

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCurrency is applied when a price carries no currency code.
const DefaultCurrency = "INR"

// Platform identifies a publishing target.
type Platform string

const (
	PlatformTelegram  Platform = "telegram"
	PlatformInstagram Platform = "instagram"
)

// AllPlatforms lists every supported target in default publish order.
var AllPlatforms = []Platform{PlatformTelegram, PlatformInstagram}

// ParsePlatform accepts a case-insensitive platform name.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case PlatformTelegram, PlatformInstagram:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// Titles holds the bilingual product title.
type Titles struct {
	EN string `json:"en,omitempty" dynamodbav:"en,omitempty"`
	HI string `json:"hi,omitempty" dynamodbav:"hi,omitempty"`
}

// Description holds the product description. Only Hindi is rendered today.
type Description struct {
	HI string `json:"hi,omitempty" dynamodbav:"hi,omitempty"`
	EN string `json:"en,omitempty" dynamodbav:"en,omitempty"`
}

// CTA holds call-to-action links.
type CTA struct {
	WhatsApp string `json:"whatsapp,omitempty" dynamodbav:"whatsapp,omitempty"`
}

// Amount is a price bound. Documents written by older tools store it as a
// string, so both JSON numbers and numeric strings are accepted.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*a = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*a = Amount(v)
	return nil
}

// String renders the amount without a trailing ".0" for whole values.
func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', -1, 64)
}

// Price is a low/high price range.
type Price struct {
	Low      Amount `json:"low,omitempty" dynamodbav:"low,omitempty"`
	High     Amount `json:"high,omitempty" dynamodbav:"high,omitempty"`
	Currency string `json:"currency,omitempty" dynamodbav:"currency,omitempty"`
}

// HasRange reports whether both bounds are set.
func (p *Price) HasRange() bool {
	return p != nil && p.Low > 0 && p.High > 0
}

// Metadata is the normalized campaign representation. It is built once per
// publish attempt and treated as read-only afterwards.
type Metadata struct {
	ID          string      `json:"id,omitempty"`
	Titles      Titles      `json:"titles"`
	Description Description `json:"description"`
	Price       *Price      `json:"price,omitempty"`
	Hashtags    []string    `json:"hashtags"`
	CTA         CTA         `json:"cta"`
}

// StandardMetadata is the raw standardized document shape. Every field is
// optional. Flat legacy keys are read as fallbacks because older campaign
// documents mix both shapes.
type StandardMetadata struct {
	ID          string       `json:"id,omitempty" dynamodbav:"id,omitempty"`
	Titles      *Titles      `json:"titles,omitempty" dynamodbav:"titles,omitempty"`
	Description *Description `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Price       *Price       `json:"price,omitempty" dynamodbav:"price,omitempty"`
	Hashtags    Hashtags     `json:"hashtags,omitempty" dynamodbav:"hashtags,omitempty"`
	CTA         *CTA         `json:"cta,omitempty" dynamodbav:"cta,omitempty"`

	TitleEN       string `json:"title_en,omitempty" dynamodbav:"title_en,omitempty"`
	TitleHI       string `json:"title_hi,omitempty" dynamodbav:"title_hi,omitempty"`
	DescriptionHI string `json:"description_hi,omitempty" dynamodbav:"description_hi,omitempty"`
	CTAWhatsApp   string `json:"cta_whatsapp,omitempty" dynamodbav:"cta_whatsapp,omitempty"`
}

// Hashtags accepts either a JSON array or a single comma/space separated string.
type Hashtags []string

func (h *Hashtags) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*h = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("hashtags must be a list or string: %w", err)
	}
	*h = SplitHashtags(s)
	return nil
}

// SplitHashtags splits free-form input such as "handmade, #scarf kalamkari".
func SplitHashtags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

// LegacyMetadata is the flat shape older publishers were written against.
type LegacyMetadata struct {
	TitleEN       string   `json:"title_en"`
	TitleHI       string   `json:"title_hi"`
	DescriptionHI string   `json:"description_hi"`
	Price         *Price   `json:"price,omitempty"`
	Hashtags      []string `json:"hashtags"`
	CTAWhatsApp   string   `json:"cta_whatsapp"`
}
