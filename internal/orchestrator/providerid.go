package orchestrator

import "strings"

// ExtractProviderID recovers the provider id from an env-var key of the form
// STORAGE_AUTH_<KIND>_<PID>_<FIELD>. The id is the concatenation (rejoined
// with "_") of every segment strictly between the kind (position 2) and the
// field (the final segment), so STORAGE_AUTH_MINIO_123_456_USER yields
// "123_456" and STORAGE_AUTH_ONEDATA_aa_bb_HOST yields "aa_bb".
func ExtractProviderID(key string) (string, bool) {
	parts := strings.Split(key, "_")
	if len(parts) < 5 || parts[0] != "STORAGE" || parts[1] != "AUTH" {
		return "", false
	}
	pid := strings.Join(parts[3:len(parts)-1], "_")
	if pid == "" {
		return "", false
	}
	return pid, true
}

// fieldOf returns the final segment of a STORAGE_AUTH_* key, e.g. "USER" or
// "HOST".
func fieldOf(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// kindOf returns the kind segment (position 2) of a STORAGE_AUTH_* key, e.g.
// "MINIO" or "ONEDATA".
func kindOf(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
