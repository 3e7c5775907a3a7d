package stories

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/storypress/storypress/internal/models"
	"gorm.io/gorm"
)

// Slugify lowercases a title and reduces it to hyphen-separated
// alphanumeric runs, capped at 80 characters.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

// AssignSlug sets a story's slug from its title, suffixed with the short
// story id to keep slugs unique without a write-time constraint. Idempotent:
// an already-slugged story is left alone.
func AssignSlug(db *gorm.DB, storyID uint) error {
	var story models.Story
	if err := db.First(&story, storyID).Error; err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}
	if story.Slug != "" || story.Title == "" {
		return nil
	}

	short := story.StoryID
	if len(short) > 8 {
		short = short[:8]
	}
	slug := fmt.Sprintf("%s-%s", Slugify(story.Title), short)

	if err := db.Model(&story).Update("slug", slug).Error; err != nil {
		return fmt.Errorf("failed to assign slug: %w", err)
	}
	return nil
}
