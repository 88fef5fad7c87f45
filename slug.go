package blog

import (
	"context"
	"strconv"

	"github.com/goliatone/go-slug"
)

// maxSlugAttempts bounds the -2, -3 ... suffix search
const maxSlugAttempts = 1000

// Slugify transliterates s and returns a URL safe slug, or fallback
// when nothing usable is left
func Slugify(s, fallback string) string {
	if transliterated, err := slug.HashNormalize(s); err == nil {
		s = transliterated
	}

	out, err := slug.Normalize(s)
	if err != nil {
		return fallback
	}
	return out
}

// uniqueSlug returns base when it is free or the first free base-N with N >= 2
func uniqueSlug(ctx context.Context, base string, taken func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	candidate := base
	for n := 2; n <= maxSlugAttempts+1; n++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
	return "", ErrSlugExhausted
}
