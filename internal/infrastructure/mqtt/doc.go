// Package mqtt provides MQTT broker connectivity for the optional entry
// upload path.
//
// Legacy CGM uploaders that predate the HTTP API publish readings to
// sugarline/entries/{tenant_id}; the entry ingester subscribes with a
// wildcard and feeds them through the same normalization and storage
// pipeline as HTTP uploads. The client handles reconnection, subscription
// restoration, and a retained online/offline status topic.
package mqtt
