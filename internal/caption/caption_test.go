package caption

import (
	"strings"
	"testing"

	"github.com/fpang/prachar/internal/campaign"
)

func scarf() campaign.Metadata {
	return campaign.Normalize(campaign.StandardMetadata{
		Titles:   &campaign.Titles{EN: "Scarf", HI: "स्कार्फ"},
		Price:    &campaign.Price{Low: 500, High: 900, Currency: "INR"},
		Hashtags: campaign.Hashtags{"#a", "#b"},
	})
}

func TestTelegram_EndToEndScenario(t *testing.T) {
	got := Telegram(scarf())

	for _, want := range []string{"स्कार्फ Scarf", "500", "900", "INR", "#a #b"} {
		if !strings.Contains(got, want) {
			t.Errorf("caption missing %q:\n%s", want, got)
		}
	}
	if !strings.HasPrefix(got, "<b>स्कार्फ Scarf</b>\n") {
		t.Errorf("expected bold title first line, got:\n%s", got)
	}
}

func TestTelegram_OmitsAbsentFields(t *testing.T) {
	meta := campaign.Metadata{Titles: campaign.Titles{EN: "Pot"}}
	got := Telegram(meta)

	if got != "<b>Pot</b>" {
		t.Errorf("Telegram = %q, want %q", got, "<b>Pot</b>")
	}
	if strings.Contains(got, "\n\n") {
		t.Error("caption must not contain empty lines")
	}

	meta.Price = &campaign.Price{Low: 100}
	if strings.Contains(Telegram(meta), "💰") {
		t.Error("price line needs both bounds")
	}
}

func TestTelegram_FullLayout(t *testing.T) {
	meta := campaign.Metadata{
		Titles:      campaign.Titles{EN: "Scarf", HI: "स्कार्फ"},
		Description: campaign.Description{HI: "रेशम & कपास"},
		Price:       &campaign.Price{Low: 500, High: 900, Currency: "INR"},
		Hashtags:    []string{"#a", "#b"},
		CTA:         campaign.CTA{WhatsApp: "https://wa.me/91999?text=hi&x=1"},
	}
	want := strings.Join([]string{
		"<b>स्कार्फ Scarf</b>",
		"रेशम &amp; कपास",
		"💰 500–900 INR",
		"#a #b",
		`<a href="https://wa.me/91999?text=hi&amp;x=1">Order on WhatsApp</a>`,
	}, "\n")
	if got := Telegram(meta); got != want {
		t.Errorf("Telegram =\n%s\nwant\n%s", got, want)
	}
}

func TestInstagram_HashtagTruncation(t *testing.T) {
	meta := campaign.Metadata{
		Titles:   campaign.Titles{EN: "Lamp"},
		Hashtags: []string{"#1", "#2", "#3", "#4", "#5", "#6", "#7", "#8"},
	}
	got := Instagram(meta)

	if !strings.Contains(got, "\n\n#1 #2 #3 #4 #5\n\n") {
		t.Errorf("expected first five hashtags in order:\n%s", got)
	}
	for _, tag := range []string{"#6", "#7", "#8"} {
		if strings.Contains(got, tag) {
			t.Errorf("caption should not contain %s", tag)
		}
	}
}

func TestInstagram_Layout(t *testing.T) {
	got := Instagram(scarf())
	want := "✨ स्कार्फ • Scarf\n\n" +
		"🎨 Handcrafted with love by Indian artisans\n" +
		"🛍️ Support local craftspeople & traditional art\n" +
		"🌱 Sustainable • Authentic • Unique\n\n" +
		"#a #b\n\n" +
		"📱 DM for orders & custom designs!"
	if got != want {
		t.Errorf("Instagram =\n%q\nwant\n%q", got, want)
	}
	if strings.ContainsAny(got, "<>") {
		t.Error("Instagram caption must be plain text")
	}
}

func TestInstagram_LengthCeiling(t *testing.T) {
	meta := campaign.Metadata{Description: campaign.Description{HI: strings.Repeat("क", 3000)}}
	if n := len([]rune(Instagram(meta))); n != InstagramMaxRunes {
		t.Errorf("rune count = %d, want %d", n, InstagramMaxRunes)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	meta := scarf()
	for _, p := range campaign.AllPlatforms {
		first := Build(meta, p)
		for i := 0; i < 5; i++ {
			if again := Build(meta, p); again != first {
				t.Fatalf("%s caption not deterministic", p)
			}
		}
	}
	if Build(meta, campaign.PlatformTelegram) == Build(meta, campaign.PlatformInstagram) {
		t.Error("platform variants should differ")
	}
}
