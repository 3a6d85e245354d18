package announce

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/iccc-team/hawker-notifier/app/sources"
	"golang.org/x/text/cases"
)

const mainCategory = "MAIN"

var validModCategories = []string{"ARCHIVED", "MAIN", "OLD_VERSION", "OPTIONAL"}

// TopicRule decides whether a stream or video belongs to the primary topic.
type TopicRule struct {
	Keyword string // matched as a substring of title, tags and description
	Name    string // matched exactly against the category
}

// SelectLatestRelease returns the release with the latest PublishedAt.
// Ties go to the larger numeric ID, then to the lexically larger ID.
func SelectLatestRelease(items []RemoteItem) (RemoteItem, bool) {
	if len(items) == 0 {
		return RemoteItem{}, false
	}

	latest := items[0]
	for _, item := range items[1:] {
		if item.PublishedAt.After(latest.PublishedAt) {
			latest = item
			continue
		}
		if item.PublishedAt.Equal(latest.PublishedAt) && compareIdentity(item.ID, latest.ID) > 0 {
			latest = item
		}
	}
	return latest, true
}

func compareIdentity(a, b Identity) int {
	ai, aErr := strconv.ParseInt(string(a), 10, 64)
	bi, bErr := strconv.ParseInt(string(b), 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai > bi:
			return 1
		case ai < bi:
			return -1
		default:
			return 0
		}
	}
	return strings.Compare(string(a), string(b))
}

func ClassifyRelease(item RemoteItem) Classification {
	if !item.Prerelease {
		return Classification{Reason: fmt.Sprintf("Most recent release is not a pre-release (id: %s)", item.ID)}
	}
	return Classification{Eligible: true, Reason: fmt.Sprintf("Release %s is a pre-release", item.ID)}
}

// ValidationError names the payload rule that failed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateModFiles checks the structure of a files.json payload and returns
// its unique MAIN file. The error names the first rule that failed.
func ValidateModFiles(modID int, payload *sources.ModFiles) (*sources.ModFile, error) {
	if payload == nil {
		return nil, invalid("Unable to extract data for mod with id %d.", modID)
	}

	prefix := fmt.Sprintf("There was a problem reading mod data with id %d.", modID)

	if payload.Files == nil {
		return nil, invalid(`%s object did not have required "files" property.`, prefix)
	}
	files := *payload.Files

	if len(files) == 0 {
		return nil, invalid(`%s The "files" property did not contain any files.`, prefix)
	}

	for _, f := range files {
		if f.CategoryName == "" {
			return nil, invalid(`%s At least one of the object within the "files" property does not have "category_name" property.`, prefix)
		}
	}

	for _, f := range files {
		if !slices.Contains(validModCategories, f.CategoryName) {
			found := make([]string, 0, len(files))
			for _, file := range files {
				found = append(found, strconv.Quote(file.CategoryName))
			}
			valid := make([]string, 0, len(validModCategories)-1)
			for _, c := range validModCategories[:len(validModCategories)-1] {
				valid = append(valid, strconv.Quote(c))
			}
			return nil, invalid(`%s At least one of the "category_name" properties is not %s, nor %q. Found %s.`,
				prefix, strings.Join(valid, ", "), validModCategories[len(validModCategories)-1], strings.Join(found, ", "))
		}
	}

	var main *sources.ModFile
	mainCount := 0
	for i := range files {
		if files[i].CategoryName == mainCategory {
			mainCount++
			main = &files[i]
		}
	}
	if mainCount != 1 {
		return nil, invalid(`%s There were %d files that had the "category_name" property with the value "MAIN". Expected 1.`, prefix, mainCount)
	}

	return main, nil
}

// ClassifyTopic tags an item as primary or other topic. Title, tags, category
// and description are checked in that order and the first match wins.
func ClassifyTopic(item RemoteItem, rule TopicRule) Classification {
	fold := cases.Fold()
	keyword := fold.String(rule.Keyword)

	contains := func(s string) bool {
		return keyword != "" && strings.Contains(fold.String(s), keyword)
	}

	primary := func(reason string) Classification {
		slog.Debug("Item classified", "item", item.ID, "topic", TopicPrimary, "reason", reason)
		return Classification{Eligible: true, Topic: TopicPrimary, Reason: reason}
	}

	if contains(item.Title) {
		return primary(fmt.Sprintf("title contains %q", rule.Keyword))
	}

	for _, tag := range item.Tags {
		if contains(tag) {
			return primary(fmt.Sprintf("tag %q contains %q", tag, rule.Keyword))
		}
	}

	if rule.Name != "" && fold.String(item.Category) == fold.String(rule.Name) {
		return primary(fmt.Sprintf("category is %q", rule.Name))
	}

	if contains(item.Description) {
		return primary(fmt.Sprintf("description contains %q", rule.Keyword))
	}

	slog.Debug("Item classified", "item", item.ID, "topic", TopicOther)
	return Classification{Eligible: true, Topic: TopicOther, Reason: "no topic match"}
}
