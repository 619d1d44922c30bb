package mqtt

import "fmt"

// Topic prefixes for the Sugarline MQTT namespace.
//
// Uploaders publish entries to sugarline/entries/{tenant_id}; the broker's
// retained system status topic lets uploaders detect whether the service is
// reachable before queueing readings.
const (
	// TopicPrefix is the base for all Sugarline topics.
	TopicPrefix = "sugarline"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sugarline/system"
)

// Topics provides builders for Sugarline MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// EntryUpload returns the upload topic for one tenant.
//
// Example: sugarline/entries/7b1e3c9a-...-f2
func (Topics) EntryUpload(tenantID string) string {
	return fmt.Sprintf("%s/entries/%s", TopicPrefix, tenantID)
}

// AllEntryUploads returns a pattern matching every tenant's upload topic.
//
// Pattern: sugarline/entries/+
func (Topics) AllEntryUploads() string {
	return fmt.Sprintf("%s/entries/+", TopicPrefix)
}

// SystemStatus returns the system status topic.
//
// Example: sugarline/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// TenantFromUploadTopic extracts the tenant ID from an upload topic.
// Returns "" when the topic is not an upload topic.
func TenantFromUploadTopic(topic string) string {
	prefix := TopicPrefix + "/entries/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	tenantID := topic[len(prefix):]
	for i := 0; i < len(tenantID); i++ {
		if tenantID[i] == '/' {
			return ""
		}
	}
	return tenantID
}
