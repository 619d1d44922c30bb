package entry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sugarline/sugarline-core/internal/infrastructure/logging"
	"github.com/sugarline/sugarline-core/internal/infrastructure/mqtt"
	"github.com/sugarline/sugarline-core/internal/tenant"
)

// MQTTIngester feeds entries published to sugarline/entries/{tenant_id}
// through the same normalization and storage pipeline as HTTP uploads.
//
// Unlike the HTTP path there is no credential on the message; the topic
// itself names the tenant, so the broker's ACLs are the access control.
// Unknown or deactivated tenants are rejected before anything is stored.
type MQTTIngester struct {
	client  *mqtt.Client
	service *Service
	tenants tenant.Repository
	logger  *logging.Logger
	qos     byte
}

// NewMQTTIngester creates an ingester. Call Start to begin consuming.
func NewMQTTIngester(client *mqtt.Client, service *Service, tenants tenant.Repository, qos byte, logger *logging.Logger) *MQTTIngester {
	return &MQTTIngester{
		client:  client,
		service: service,
		tenants: tenants,
		logger:  logger,
		qos:     qos,
	}
}

// Start subscribes to every tenant's upload topic.
func (i *MQTTIngester) Start() error {
	topic := mqtt.Topics{}.AllEntryUploads()
	i.logger.Info("subscribing to entry uploads", "topic", topic)
	return i.client.Subscribe(topic, i.qos, i.handleUpload)
}

// handleUpload processes one uploaded message: a single entry object or an
// array, exactly like the HTTP POST body.
func (i *MQTTIngester) handleUpload(topic string, payload []byte) error {
	tenantID := mqtt.TenantFromUploadTopic(topic)
	if tenantID == "" {
		return fmt.Errorf("unexpected upload topic %q", topic)
	}

	ctx := context.Background()
	t, err := i.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			i.logger.Warn("dropping upload for unknown tenant", "tenant_id", tenantID)
			return nil
		}
		return err
	}
	if !t.IsActive {
		i.logger.Warn("dropping upload for deactivated tenant", "tenant_id", tenantID)
		return nil
	}

	entries, err := decodeUpload(payload)
	if err != nil {
		i.logger.Warn("dropping malformed upload", "tenant_id", tenantID, "error", err)
		return nil
	}

	stored, err := i.service.Create(ctx, tenantID, entries)
	if err != nil {
		return fmt.Errorf("storing mqtt upload for tenant %s: %w", tenantID, err)
	}

	i.logger.Debug("mqtt upload stored", "tenant_id", tenantID, "count", len(stored))
	return nil
}

// decodeUpload parses an upload payload: one entry object or an array.
func decodeUpload(payload []byte) ([]*Entry, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty payload")
	}

	if trimmed[0] == '[' {
		var batch []*Entry
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("parsing entries array: %w", err)
		}
		return batch, nil
	}

	var e Entry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return nil, fmt.Errorf("parsing entry: %w", err)
	}
	return []*Entry{&e}, nil
}
