package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/axillles/BezShuma/app/database"
)

const (
	// similarityThreshold is the normalized token-set Jaccard ratio above
	// which two stories are considered the same.
	similarityThreshold = 0.85

	// dedupWindow bounds how many recent posts are compared per candidate.
	dedupWindow = 200
)

// Dedup decides whether a candidate entry has already been queued or
// published for a channel. Pure read, no side effects.
type Dedup struct {
	posts database.PostRepository
}

func NewDedup(posts database.PostRepository) *Dedup {
	return &Dedup{posts: posts}
}

// IsDuplicate checks the origin identifier exact match first, then falls
// back to normalized text similarity against recent non-rejected posts.
// The text check catches feeds that rotate entry identifiers for the same
// story.
func (d *Dedup) IsDuplicate(channelID, title, body, originGUID string) (bool, error) {
	if originGUID != "" {
		exists, err := d.posts.HasOrigin(channelID, originGUID)
		if err != nil {
			return false, fmt.Errorf("failed to check origin match: %w", err)
		}
		if exists {
			return true, nil
		}
	}

	candidate := tokenSet(Normalize(title + " " + body))
	if len(candidate) == 0 {
		return false, nil
	}

	recent, err := d.posts.RecentOriginals(channelID, dedupWindow)
	if err != nil {
		return false, fmt.Errorf("failed to load recent posts: %w", err)
	}

	for _, post := range recent {
		existing := tokenSet(Normalize(post.OriginalTitle + " " + post.OriginalBody))
		if jaccard(candidate, existing) >= similarityThreshold {
			return true, nil
		}
	}

	return false, nil
}

// dedupNormalizer folds compatibility forms, lowers case and turns
// punctuation and symbols into spaces, so formatting differences cannot
// produce false negatives.
var dedupNormalizer = transform.Chain(
	norm.NFKC,
	runes.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}),
)

// Normalize folds case, punctuation and whitespace for text comparison.
func Normalize(s string) string {
	folded, _, err := transform.String(dedupNormalizer, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
