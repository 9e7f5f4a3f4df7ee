// internal/gateway/callback.go
package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CallbackNotice is a settlement notification normalized from the gateway's
// provider-specific webhook payload.
type CallbackNotice struct {
	Reference  string         // our merchant reference (the transaction's reference)
	ExternalID string         // gateway-assigned payment reference, may be empty
	Status     string         // provider status string, verbatim
	Raw        map[string]any // full payload for metadata storage
}

// ParseCallback normalizes a webhook payload. Providers are inconsistent about
// field names across API versions, so each normalized field is resolved from a
// list of aliases.
func ParseCallback(payload []byte) (*CallbackNotice, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("callback payload is not valid JSON: %w", err)
	}

	notice := &CallbackNotice{
		Reference:  stringField(fields, "app_transaction_ref", "merchant_reference", "transaction_ref", "transaction_id"),
		ExternalID: stringField(fields, "payment_id", "coolpay_transaction_id", "gateway_transaction_id"),
		Status:     stringField(fields, "transaction_status", "payment_status", "status"),
		Raw:        fields,
	}
	if notice.Reference == "" {
		return nil, fmt.Errorf("callback payload carries no merchant reference")
	}
	return notice, nil
}

// IsSuccess reports whether the notice's status indicates a settled payment.
func (n *CallbackNotice) IsSuccess() bool {
	switch strings.ToUpper(n.Status) {
	case "SUCCESS", "SUCCESSFUL", "SUCCEEDED", "COMPLETED", "ACCEPTED":
		return true
	}
	return false
}

// IsFailure reports whether the notice's status indicates a rejected or
// abandoned payment. Statuses that are neither success nor failure (e.g.
// "AWAITING_CONFIRMATION") keep the transaction PENDING.
func (n *CallbackNotice) IsFailure() bool {
	switch strings.ToUpper(n.Status) {
	case "FAILED", "FAILURE", "CANCELED", "CANCELLED", "REJECTED", "EXPIRED", "ERROR":
		return true
	}
	return false
}

// RawJSON returns the payload re-encoded for metadata storage.
func (n *CallbackNotice) RawJSON() []byte {
	raw, err := json.Marshal(n.Raw)
	if err != nil {
		return nil
	}
	return raw
}

// stringField returns the first alias present in fields as a string.
func stringField(fields map[string]any, aliases ...string) string {
	for _, alias := range aliases {
		if v, ok := fields[alias]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
