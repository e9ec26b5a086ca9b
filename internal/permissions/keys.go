package permissions

import "strings"

// Feature areas an admin can be allowed to manage.
const (
	KeyFinance  = "finance"
	KeyMembers  = "members"
	KeyEvents   = "events"
	KeyQuiz     = "quiz"
	KeyFeedback = "feedback"
	KeyGallery  = "gallery"
	KeyNotices  = "notices"
)

// KnownKeys lists every permission key in display order.
func KnownKeys() []string {
	return []string{
		KeyFinance,
		KeyMembers,
		KeyEvents,
		KeyQuiz,
		KeyFeedback,
		KeyGallery,
		KeyNotices,
	}
}

// IsKnownKey reports whether key names a feature area.
func IsKnownKey(key string) bool {
	key = NormalizeKey(key)
	for _, k := range KnownKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// NormalizeKey trims and lower-cases a permission key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func normalizeKeys(keys []string) []string {
	unique := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = NormalizeKey(k)
		if k == "" {
			continue
		}
		if _, ok := unique[k]; ok {
			continue
		}
		unique[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
