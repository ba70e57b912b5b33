package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/soaringjerry/surveyform/internal/models"
)

// ChoicesSeparator joins tokens in the persisted multi-select encoding.
const ChoicesSeparator = ","

// EmptyChoiceLabel is the placeholder option prepended to dropdowns.
const EmptyChoiceLabel = "-------------"

var (
	reSlugStrip  = regexp.MustCompile(`[^\w\s-]`)
	reSlugHyphen = regexp.MustCompile(`[-\s]+`)
)

// Slugify folds s to lowercase ASCII words joined by hyphens.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	out := reSlugStrip.ReplaceAllString(strings.ToLower(b.String()), "")
	out = reSlugHyphen.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}

// EncodeChoiceList renders selected values the way legacy answers were
// stored: ['a', 'b'].
func EncodeChoiceList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ChoicesSeparator+" ") + "]"
}

// DecodeChoiceList recovers slug-cased choice tokens from a stored body.
// The encoding is lossy: tokens containing the separator or a quote do not
// survive the round trip.
func DecodeChoiceList(body string) []string {
	out := []string{}
	switch {
	case body == "[]" || body == "":
		return out
	case strings.Contains(body, "[") && strings.Contains(body, "]") && len(body) >= 2:
		inner := strings.TrimSpace(body[1 : len(body)-1])
		for _, piece := range strings.Split(inner, ChoicesSeparator) {
			parts := strings.Split(piece, "'")
			if len(parts) < 2 {
				continue
			}
			out = append(out, Slugify(parts[1]))
		}
		return out
	default:
		return append(out, Slugify(body))
	}
}

// Choice is one selectable option of a choice field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Image string `json:"image,omitempty"`
}

// ChoicesFor lists the options of an answer group. Select-image choices are
// declared as "label:image-src" and submitted as "slug:image-src".
func ChoicesFor(ag *models.AnswerGroup) []Choice {
	out := make([]Choice, 0, len(ag.Choices))
	for _, raw := range ag.Choices {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if ag.Type == models.TypeSelectImage {
			label, src, _ := strings.Cut(raw, ":")
			label = strings.TrimSpace(label)
			src = strings.TrimSpace(src)
			out = append(out, Choice{Value: Slugify(label) + ":" + src, Label: label, Image: src})
			continue
		}
		out = append(out, Choice{Value: Slugify(raw), Label: raw})
	}
	return out
}

// ParseImageChoice splits a submitted select-image value on its first colon.
// ok is false when the value carries no image source.
func ParseImageChoice(v string) (value, src string, ok bool) {
	value, src, ok = strings.Cut(v, ":")
	return value, src, ok
}
