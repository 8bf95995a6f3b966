package utils

import (
	"regexp"
	"strings"
)

var (
	bsAllowedChars             = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	leadingZeros               = regexp.MustCompile(`^0+`)
	folderDisallowed           = regexp.MustCompile(`[^a-z0-9а-яё]`)
	folderDisallowedKeepHyphen = regexp.MustCompile(`[^a-z0-9а-яё-]`)
	underscoreRuns             = regexp.MustCompile(`_+`)
)

// NormalizeBsNumber brings a free-form base-station number into canonical
// form: the first two characters of every hyphen-delimited part are the
// region code and get uppercased, the remainder is the station number and
// loses its leading zeros. "ms01-ms002" becomes "MS1-MS2".
//
// Parts shorter than two characters and numbers consisting only of zeros are
// passed through as-is after the same rules (an all-zero number collapses to
// the bare region code). The function is pure and idempotent.
func NormalizeBsNumber(bsNumber string) string {
	cleaned := bsAllowedChars.ReplaceAllString(bsNumber, "")

	parts := strings.Split(cleaned, "-")
	normalized := make([]string, len(parts))
	for i, part := range parts {
		if len(part) <= 2 {
			normalized[i] = strings.ToUpper(part)
			continue
		}
		regionCode := strings.ToUpper(part[:2])
		bsDigits := leadingZeros.ReplaceAllString(part[2:], "")
		normalized[i] = regionCode + bsDigits
	}

	return strings.Join(normalized, "-")
}

// SplitSiteNames returns the individual site names of a normalized
// base-station number. A hyphenated number refers to several physical sites.
func SplitSiteNames(normalizedBsNumber string) []string {
	return strings.Split(normalizedBsNumber, "-")
}

// SanitizeFolderPart lowercases s and collapses every run of characters that
// is not a letter or digit into a single underscore, trimming underscores at
// both ends. Used for the per-task uploads directory name.
func SanitizeFolderPart(s string) string {
	lowered := strings.ToLower(s)
	replaced := folderDisallowed.ReplaceAllString(lowered, "_")
	collapsed := underscoreRuns.ReplaceAllString(replaced, "_")
	return strings.Trim(collapsed, "_")
}

// SanitizeBsFolderPart is SanitizeFolderPart but keeps hyphens, so a
// normalized range like "ms1-ms2" stays readable in the directory name.
func SanitizeBsFolderPart(s string) string {
	lowered := strings.ToLower(s)
	replaced := folderDisallowedKeepHyphen.ReplaceAllString(lowered, "_")
	collapsed := underscoreRuns.ReplaceAllString(replaced, "_")
	return strings.Trim(collapsed, "_")
}

// TaskFolderName derives the uploads directory name for a task from its name
// and normalized base-station number.
func TaskFolderName(taskName, bsNumber string) string {
	return SanitizeFolderPart(taskName) + "_" + SanitizeBsFolderPart(bsNumber)
}
