package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	if got := topics.EntryUpload("tenant-1"); got != "sugarline/entries/tenant-1" {
		t.Errorf("EntryUpload = %q", got)
	}
	if got := topics.AllEntryUploads(); got != "sugarline/entries/+" {
		t.Errorf("AllEntryUploads = %q", got)
	}
	if got := topics.SystemStatus(); got != "sugarline/system/status" {
		t.Errorf("SystemStatus = %q", got)
	}
}

func TestTenantFromUploadTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  string
	}{
		{"sugarline/entries/tenant-1", "tenant-1"},
		{"sugarline/entries/7b1e3c9a-0f42-4c3b-9d7e-1a2b3c4d5e6f", "7b1e3c9a-0f42-4c3b-9d7e-1a2b3c4d5e6f"},
		{"sugarline/entries/", ""},
		{"sugarline/entries/tenant-1/extra", ""},
		{"sugarline/system/status", ""},
		{"other/entries/tenant-1", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := TenantFromUploadTopic(tc.topic); got != tc.want {
			t.Errorf("TenantFromUploadTopic(%q) = %q, want %q", tc.topic, got, tc.want)
		}
	}
}
