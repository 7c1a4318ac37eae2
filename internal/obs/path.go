package obs

import "strings"

// CanonicalPath collapses resource identifiers out of metric labels so the
// per-path series count stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	const adminUsers = "/v1/admin/users/"
	if strings.HasPrefix(path, adminUsers) {
		rest := strings.TrimPrefix(path, adminUsers)
		if rest != "" && !strings.Contains(rest, "/") {
			return adminUsers + ":id"
		}
	}
	return path
}
