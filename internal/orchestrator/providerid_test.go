package orchestrator

import "testing"

func TestExtractProviderID(t *testing.T) {
	cases := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"STORAGE_AUTH_MINIO_123_456_USER", "123_456", true},
		{"STORAGE_AUTH_ONEDATA_aa_bb_HOST", "aa_bb", true},
		{"STORAGE_AUTH_ONEDATA_aa-def_HOST", "aa-def", true},
		{"STORAGE_PATH_INPUT_123", "", false},
		{"SCRIPT", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractProviderID(tc.key)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ExtractProviderID(%q) = (%q, %v), want (%q, %v)", tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
}
