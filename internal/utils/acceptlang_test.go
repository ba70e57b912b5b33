package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineLocale_QueryParamWins(t *testing.T) {
	assert.Equal(t, "zh", DetermineLocale("zh-CN", "en-US,en;q=0.9,zh;q=0.8", []string{"en", "zh"}, "en"))
}

func TestDetermineLocale_AcceptLanguageOrder(t *testing.T) {
	assert.Equal(t, "en", DetermineLocale("", "en-US,en;q=0.9,zh;q=0.8", []string{"en", "zh"}, "en"))
}

func TestDetermineLocale_AcceptLanguagePrefersHigherQ(t *testing.T) {
	assert.Equal(t, "zh", DetermineLocale("", "zh;q=0.9,en;q=0.8", []string{"en", "zh"}, "en"))
}

func TestDetermineLocale_DefaultFallback(t *testing.T) {
	assert.Equal(t, "en", DetermineLocale("", "fr-FR,es;q=0.9", []string{"en", "zh"}, "en"))
}

func TestDetermineLocale_GarbageInput(t *testing.T) {
	assert.Equal(t, "zh", DetermineLocale("???", ";;;", []string{"zh", "en"}, "de"))
}
