package pipeline

import (
	"fmt"
	"strings"
)

// realismLockPhrase is the fixed quality anchor appended to every composed
// prompt when the caller asks for the realism lock. It always goes last.
const realismLockPhrase = "photorealistic, natural skin texture, true-to-life color response, no CGI sheen, no plastic smoothness"

// filmStocks maps preset ids to the stylistic phrase injected ahead of the
// base prompt.
var filmStocks = map[string]string{
	"kodak-portra-400":   "shot on Kodak Portra 400, soft pastel color palette, fine grain",
	"kodak-vision3-500t": "shot on Kodak Vision3 500T, tungsten-balanced cinematic color, halation on highlights",
	"cinestill-800t":     "shot on CineStill 800T, glowing neon halation, cool night tones",
	"fuji-pro-400h":      "shot on Fuji Pro 400H, airy greens and muted skin tones",
	"ilford-hp5":         "shot on Ilford HP5 Plus, high-contrast black and white, pronounced grain",
}

func FilmStockPhrase(preset string) string {
	if preset == "" {
		return ""
	}
	if phrase, ok := filmStocks[preset]; ok {
		return phrase
	}
	return fmt.Sprintf("shot on %s film stock", strings.ReplaceAll(preset, "-", " "))
}

// ReferenceContext produces the leading callout that tells the backend how
// to treat the conditioning images.
func ReferenceContext(count int) string {
	switch {
	case count <= 0:
		return ""
	case count == 1:
		return "Using the provided image as the visual reference, preserve its composition, subject identity and framing"
	default:
		return fmt.Sprintf("Using the %d provided images as visual references, preserve their composition, subject identity and framing", count)
	}
}

// ComposePrompt assembles the final prompt in its fixed order: reference
// callouts, film stock preset, the base prompt, then the realism lock.
// The order never changes.
func ComposePrompt(referenceContext, filmStock, base string, realismLock bool) string {
	parts := make([]string, 0, 4)
	if referenceContext != "" {
		parts = append(parts, referenceContext)
	}
	if phrase := FilmStockPhrase(filmStock); phrase != "" {
		parts = append(parts, phrase)
	}
	if base != "" {
		parts = append(parts, base)
	}
	if realismLock {
		parts = append(parts, realismLockPhrase)
	}

	return strings.Join(parts, ", ")
}
