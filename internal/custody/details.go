package custody

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Details is the event-type specific payload of a custody event. Each
// implementation belongs to exactly one EventType.
type Details interface {
	EventType() EventType
}

type CollectionDetails struct {
	Authority     string `json:"authority,omitempty"`
	WarrantNumber string `json:"warrantNumber,omitempty"`
	SourceDevice  string `json:"sourceDevice,omitempty"`
}

type TransferDetails struct {
	Reason  string `json:"reason,omitempty"`
	Courier string `json:"courier,omitempty"`
}

type AnalysisDetails struct {
	Tool        string `json:"tool,omitempty"`
	ToolVersion string `json:"toolVersion,omitempty"`
	CaseNumber  string `json:"caseNumber,omitempty"`
}

type StorageDetails struct {
	Facility string `json:"facility,omitempty"`
	Locker   string `json:"locker,omitempty"`
}

type ReleaseDetails struct {
	Authorization string `json:"authorization,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
}

// BlockchainSubmissionDetails records that an external anchoring service
// attested a digest of the chain.
type BlockchainSubmissionDetails struct {
	Network       string `json:"network,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	AnchoredHash  string `json:"anchoredHash,omitempty"`
}

type OtherDetails struct {
	Description string `json:"description,omitempty"`
}

func (CollectionDetails) EventType() EventType           { return EventTypeCollection }
func (TransferDetails) EventType() EventType             { return EventTypeTransfer }
func (AnalysisDetails) EventType() EventType             { return EventTypeAnalysis }
func (StorageDetails) EventType() EventType              { return EventTypeStorage }
func (ReleaseDetails) EventType() EventType              { return EventTypeRelease }
func (BlockchainSubmissionDetails) EventType() EventType { return EventTypeBlockchainSubmission }
func (OtherDetails) EventType() EventType                { return EventTypeOther }

// DecodeDetails parses raw into the Details variant for eventType. Empty or
// null input yields nil.
func DecodeDetails(eventType EventType, raw json.RawMessage) (Details, error) {
	return decodeDetails(eventType, raw)
}

func decodeDetails(eventType EventType, raw json.RawMessage) (Details, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var err error
	switch eventType {
	case EventTypeCollection:
		var d CollectionDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeTransfer:
		var d TransferDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeAnalysis:
		var d AnalysisDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeStorage:
		var d StorageDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeRelease:
		var d ReleaseDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeBlockchainSubmission:
		var d BlockchainSubmissionDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	case EventTypeOther:
		var d OtherDetails
		err = json.Unmarshal(raw, &d)
		return d, wrapDetailsErr(eventType, err)
	default:
		return nil, fmt.Errorf("details given for unknown event type %q", eventType)
	}
}

func wrapDetailsErr(eventType EventType, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("decode %s details: %w", eventType, err)
}
