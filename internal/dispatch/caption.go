package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/quakewatch/internal/models"
)

// Numerals selects the digit set used in captions. Burmese numerals also
// switch the caption text to Burmese.
type Numerals string

const (
	Latin   Numerals = "latin"
	Burmese Numerals = "burmese"
)

// Severity returns the marker shown on messaging posts.
func Severity(mag float64) string {
	switch {
	case mag >= 6.0:
		return "🔴🚨"
	case mag >= 5.0:
		return "🟠⚠️"
	case mag >= 4.0:
		return "🟡"
	default:
		return "🟢"
	}
}

// SocialMarker returns the marker that leads social captions.
func SocialMarker(mag float64) string {
	if mag >= 4.0 {
		return "🚨"
	}
	return "⚠️"
}

// MapLink points at the epicentre on Google Maps.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", formatNumber(lat), formatNumber(lon))
}

var clockFaces = [...]string{"🕛", "🕐", "🕑", "🕒", "🕓", "🕔", "🕕", "🕖", "🕗", "🕘", "🕙", "🕚"}

// ClockEmoji returns the clock face for the 12-hour hour of t.
func ClockEmoji(t time.Time) string {
	return clockFaces[t.Hour()%12]
}

const burmeseDigits = "၀၁၂၃၄၅၆၇၈၉"

// ToBurmeseDigits replaces ASCII digits with Myanmar digits.
func ToBurmeseDigits(s string) string {
	digits := []rune(burmeseDigits)
	var b strings.Builder
	b.Grow(len(s) * 3)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(digits[r-'0'])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Captioner renders caption text for one quake.
type Captioner struct {
	Numerals Numerals
	Local    *time.Location
	// Promo is an optional line added to social captions (e.g. a channel link).
	Promo string
}

func (c Captioner) num(s string) string {
	if c.Numerals == Burmese {
		return ToBurmeseDigits(s)
	}
	return s
}

func (c Captioner) local(t time.Time) time.Time {
	if c.Local == nil {
		return t.UTC()
	}
	return t.In(c.Local)
}

// LocalTimeText formats the origin time in the local zone, led by a clock face.
func (c Captioner) LocalTimeText(origin time.Time) string {
	t := c.local(origin)
	if c.Numerals != Burmese {
		return fmt.Sprintf("%s %s", ClockEmoji(t), t.Format("Jan 2, 2006 3:04:05 PM"))
	}
	var tod string
	switch h := t.Hour(); {
	case h >= 1 && h <= 10:
		tod = "မနက်"
	case h >= 11 && h <= 15:
		tod = "နေ့လည်"
	case h >= 16 && h <= 18:
		tod = "ညနေ"
	default:
		tod = "ည"
	}
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return fmt.Sprintf("%s %s %sနာရီ %sမိနစ် %sစက္ကန့်", ClockEmoji(t), tod,
		c.num(strconv.Itoa(hour12)), c.num(t.Format("04")), c.num(t.Format("05")))
}

func (c Captioner) place(near models.NearestLocation, ok bool) (name, distance string) {
	if !ok {
		if c.Numerals == Burmese {
			return "မသိရ", "?"
		}
		return "unknown location", "?"
	}
	name = near.Name
	if c.Numerals == Burmese && near.LocalName != "" {
		name = near.LocalName
	}
	return name, c.num(strconv.Itoa(near.Distance))
}

func unitWord(near models.NearestLocation, burmese bool) string {
	switch {
	case burmese && near.Unit == "km":
		return "ကီလိုမီတာ"
	case burmese:
		return "မိုင်"
	case near.Unit == "km":
		return "km"
	default:
		return "miles"
	}
}

// Social builds the long caption used for the image post.
func (c Captioner) Social(q models.Quake, origin time.Time, near models.NearestLocation, ok bool) string {
	name, dist := c.place(near, ok)
	mag := c.num(formatNumber(q.Magnitude))
	depth := c.num(formatNumber(q.DepthKm))
	lat, lon := formatNumber(q.Latitude), formatNumber(q.Longitude)

	var lines []string
	if c.Numerals == Burmese {
		lines = []string{
			fmt.Sprintf("%sပြင်းအား%sအဆင့်ရှိငလျင် %sအနီးလှုပ်ခတ်သွား", SocialMarker(q.Magnitude), mag, name),
			"",
		}
		if c.Promo != "" {
			lines = append(lines, c.Promo, "")
		}
		lines = append(lines,
			fmt.Sprintf("အင်အား : %s", mag),
			fmt.Sprintf("နေရာ : %sမှ %s%sခန့်အကွာ", name, dist, unitWord(near, true)),
			fmt.Sprintf("လှုပ်ခတ်ချိန် : %s", c.LocalTimeText(origin)),
			fmt.Sprintf("အနက် : %s ကီလိုမီတာ", depth),
			fmt.Sprintf("ဗဟိုမှတ်: Latitude %s | Longitude %s", lat, lon),
			fmt.Sprintf("မြေပုံအသေးစိပ်ကြည့်ရှုရန် : %s", MapLink(q.Latitude, q.Longitude)),
		)
		return strings.Join(lines, "\n")
	}

	lines = []string{
		fmt.Sprintf("%s Magnitude %s earthquake near %s", SocialMarker(q.Magnitude), mag, name),
		"",
	}
	if c.Promo != "" {
		lines = append(lines, c.Promo, "")
	}
	lines = append(lines,
		fmt.Sprintf("Magnitude: %s", mag),
		fmt.Sprintf("Location: about %s %s from %s", dist, unitWord(near, false), name),
		fmt.Sprintf("Time: %s", c.LocalTimeText(origin)),
		fmt.Sprintf("Depth: %s km", depth),
		fmt.Sprintf("Epicentre: Latitude %s | Longitude %s", lat, lon),
		fmt.Sprintf("Map: %s", MapLink(q.Latitude, q.Longitude)),
	)
	return strings.Join(lines, "\n")
}

// Messaging builds the short caption used for the messaging post.
func (c Captioner) Messaging(q models.Quake, origin time.Time, near models.NearestLocation, ok bool) string {
	name, dist := c.place(near, ok)
	mag := c.num(formatNumber(q.Magnitude))
	if c.Numerals == Burmese {
		return fmt.Sprintf("%s အင်အား %s အဆင့်\n📍 %sမှ %s %sခန့်အကွာ\n%s",
			Severity(q.Magnitude), mag, name, dist, unitWord(near, true), c.LocalTimeText(origin))
	}
	return fmt.Sprintf("%s Magnitude %s\n📍 About %s %s from %s\n%s",
		Severity(q.Magnitude), mag, dist, unitWord(near, false), name, c.LocalTimeText(origin))
}
