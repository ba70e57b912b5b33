package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soaringjerry/surveyform/internal/models"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":     "hello-world",
		"  Crème Brûlée ": "creme-brulee",
		"a -- b":          "a-b",
		"Yes!":            "yes",
		"_x_":             "x",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestChoiceListRoundTrip(t *testing.T) {
	encoded := EncodeChoiceList([]string{"red", "dark-blue"})
	assert.Equal(t, "['red', 'dark-blue']", encoded)
	assert.Equal(t, []string{"red", "dark-blue"}, DecodeChoiceList(encoded))

	assert.Equal(t, "[]", EncodeChoiceList(nil))
	assert.Equal(t, []string{}, DecodeChoiceList("[]"))
	assert.Equal(t, []string{"single-token"}, DecodeChoiceList("Single Token"))
}

func TestChoicesForImageSelect(t *testing.T) {
	ag := &models.AnswerGroup{Type: models.TypeSelectImage, Choices: []string{"Big Cat:/img/cat.png", " "}}
	choices := ChoicesFor(ag)
	assert.Equal(t, []Choice{{Value: "big-cat:/img/cat.png", Label: "Big Cat", Image: "/img/cat.png"}}, choices)

	value, src, ok := ParseImageChoice("big-cat:/img/cat.png")
	assert.True(t, ok)
	assert.Equal(t, "big-cat", value)
	assert.Equal(t, "/img/cat.png", src)

	_, _, ok = ParseImageChoice("big-cat")
	assert.False(t, ok)
}
