package sqlstore

import (
	"strings"

	"github.com/goliatone/go-webhooks/core"
)

func webhookToDomain(record *webhookRecord, headers []*webhookHeaderRecord) core.Webhook {
	if record == nil {
		return core.Webhook{}
	}
	out := core.Webhook{
		ID:          record.ID,
		NamespaceID: record.NamespaceID,
		URL:         record.URL,
		Method:      core.RequestMethod(record.Method),
		ContentType: core.ContentType(record.ContentType),
		Username:    record.Username,
		Password:    record.Password,
		Enabled:     record.Enabled,
		Headers:     headersToDomain(headers),
		CreatedAt:   record.CreatedAt.UTC(),
		UpdatedAt:   record.UpdatedAt.UTC(),
	}
	return out
}

func headersToDomain(records []*webhookHeaderRecord) []core.Header {
	out := make([]core.Header, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, core.Header{
			ID:        record.ID,
			WebhookID: record.WebhookID,
			Name:      record.Name,
			Value:     record.Value,
		})
	}
	return out
}

func deliveryToDomain(record *deliveryRecord) core.Delivery {
	if record == nil {
		return core.Delivery{}
	}
	return core.Delivery{
		ID:             record.ID,
		WebhookID:      record.WebhookID,
		Token:          record.Token,
		Status:         record.Status,
		RequestHeader:  copyStringMap(record.RequestHeader),
		RequestBody:    record.RequestBody,
		ResponseHeader: copyStringMap(record.ResponseHeader),
		ResponseBody:   record.ResponseBody,
		TransportError: record.TransportError,
		CreatedAt:      record.CreatedAt.UTC(),
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func namespaceToDomain(record *namespaceRecord) core.Namespace {
	if record == nil {
		return core.Namespace{}
	}
	return core.Namespace{
		ID:         record.ID,
		RegistryID: record.RegistryID,
		Name:       record.Name,
		Global:     record.Global,
	}
}

func registryToDomain(record *registryRecord) core.Registry {
	if record == nil {
		return core.Registry{}
	}
	return core.Registry{
		ID:               record.ID,
		Name:             record.Name,
		Hostname:         record.Hostname,
		ExternalHostname: record.ExternalHostname,
	}
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
