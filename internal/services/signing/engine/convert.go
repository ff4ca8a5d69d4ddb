package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

// requestFromAggregate rebuilds the nested domain view from flat rows.
// Unknown workflow types and escalation actions are tolerated here so
// execution can apply the documented fallbacks; unknown statuses are
// data corruption and fail the load.
func requestFromAggregate(aggregate storage.RequestAggregate) (domain.SigningRequest, error) {
	record := aggregate.Request

	status, err := domain.ParseRequestStatus(record.Status)
	if err != nil {
		return domain.SigningRequest{}, fmt.Errorf("request %s: %w", record.ID, err)
	}
	chainStatus, err := domain.ParseRequestStatus(record.ChainStatus)
	if err != nil {
		return domain.SigningRequest{}, fmt.Errorf("request %s chain: %w", record.ID, err)
	}
	workflowType, err := domain.ParseWorkflowType(record.WorkflowType)
	if err != nil {
		log.Printf("request %s: %v, falling back to sequential", record.ID, err)
		workflowType = domain.WorkflowTypeSequential
	}
	escalationAction := domain.EscalationActionUnspecified
	if record.EscalationAction != "" {
		escalationAction, err = domain.ParseEscalationAction(record.EscalationAction)
		if err != nil {
			log.Printf("request %s: %v, falling back to notify", record.ID, err)
			escalationAction = domain.EscalationActionNotify
		}
	}

	chain := domain.SigningChain{
		CurrentLevel: record.CurrentLevel,
		TotalLevels:  record.TotalLevels,
		Status:       chainStatus,
	}
	for _, levelRecord := range aggregate.Levels {
		level := domain.SigningLevel{
			Level:              levelRecord.Level,
			RequiredSignatures: levelRecord.RequiredSignatures,
		}
		if levelRecord.WorkflowOverride != "" {
			override, err := domain.ParseWorkflowType(levelRecord.WorkflowOverride)
			if err != nil {
				log.Printf("request %s level %d: %v, ignoring override", record.ID, levelRecord.Level, err)
			} else {
				level.WorkflowOverride = override
			}
		}
		for _, signerRecord := range aggregate.Signers {
			if signerRecord.Level != levelRecord.Level {
				continue
			}
			signer, err := signerFromRecord(signerRecord)
			if err != nil {
				return domain.SigningRequest{}, err
			}
			level.Signers = append(level.Signers, signer)
		}
		chain.Levels = append(chain.Levels, level)
	}

	return domain.SigningRequest{
		ID:                record.ID,
		Title:             record.Title,
		RequesterEmail:    record.RequesterEmail,
		DocumentRefs:      record.DocumentRefs,
		WorkflowType:      workflowType,
		Status:            status,
		DueDate:           record.DueDate,
		ExpirationDate:    record.ExpirationDate,
		ReminderEnabled:   record.ReminderEnabled,
		ReminderDays:      record.ReminderDays,
		EscalationEnabled: record.EscalationEnabled,
		EscalationDays:    record.EscalationDays,
		EscalationAction:  escalationAction,
		CreatedAt:         record.CreatedAt,
		SentAt:            record.SentAt,
		CompletedAt:       record.CompletedAt,
		LastWarnedAt:      record.LastWarnedAt,
		Version:           record.Version,
		Chain:             chain,
	}, nil
}

func signerFromRecord(record storage.SignerRecord) (domain.Signer, error) {
	status, err := domain.ParseSignerStatus(record.Status)
	if err != nil {
		return domain.Signer{}, fmt.Errorf("signer %s: %w", record.ID, err)
	}
	return domain.Signer{
		ID:             record.ID,
		RequestID:      record.RequestID,
		Level:          record.Level,
		Order:          record.SignOrder,
		Name:           record.Name,
		Email:          record.Email,
		Role:           record.Role,
		Status:         status,
		SentAt:         record.SentAt,
		ViewedAt:       record.ViewedAt,
		SignedAt:       record.SignedAt,
		RemindersSent:  record.RemindersSent,
		LastReminderAt: record.LastReminderAt,
		SignatureIP:    record.SignatureIP,
		SignatureType:  record.SignatureType,
		Comment:        record.Comment,
		DelegatedTo:    record.DelegatedTo,
	}, nil
}

// aggregateFromRequest flattens a domain request into storage rows.
func aggregateFromRequest(request domain.SigningRequest) storage.RequestAggregate {
	aggregate := storage.RequestAggregate{
		Request: storage.RequestRecord{
			ID:                request.ID,
			Title:             request.Title,
			RequesterEmail:    request.RequesterEmail,
			DocumentRefs:      request.DocumentRefs,
			WorkflowType:      request.WorkflowType.String(),
			Status:            request.Status.String(),
			CurrentLevel:      request.Chain.CurrentLevel,
			TotalLevels:       request.Chain.TotalLevels,
			ChainStatus:       request.Chain.Status.String(),
			DueDate:           request.DueDate,
			ExpirationDate:    request.ExpirationDate,
			ReminderEnabled:   request.ReminderEnabled,
			ReminderDays:      request.ReminderDays,
			EscalationEnabled: request.EscalationEnabled,
			EscalationDays:    request.EscalationDays,
			CreatedAt:         request.CreatedAt,
			SentAt:            request.SentAt,
			CompletedAt:       request.CompletedAt,
			LastWarnedAt:      request.LastWarnedAt,
			Version:           request.Version,
		},
	}
	if request.EscalationAction != domain.EscalationActionUnspecified {
		aggregate.Request.EscalationAction = request.EscalationAction.String()
	}
	for _, level := range request.Chain.Levels {
		levelRecord := storage.LevelRecord{
			RequestID:          request.ID,
			Level:              level.Level,
			RequiredSignatures: level.RequiredSignatures,
		}
		if level.WorkflowOverride != domain.WorkflowTypeUnspecified {
			levelRecord.WorkflowOverride = level.WorkflowOverride.String()
		}
		aggregate.Levels = append(aggregate.Levels, levelRecord)
		for _, signer := range level.Signers {
			aggregate.Signers = append(aggregate.Signers, signerRecordFromSigner(signer))
		}
	}
	return aggregate
}

func signerRecordFromSigner(signer domain.Signer) storage.SignerRecord {
	return storage.SignerRecord{
		ID:             signer.ID,
		RequestID:      signer.RequestID,
		Level:          signer.Level,
		SignOrder:      signer.Order,
		Name:           signer.Name,
		Email:          signer.Email,
		Role:           signer.Role,
		Status:         signer.Status.String(),
		SentAt:         signer.SentAt,
		ViewedAt:       signer.ViewedAt,
		SignedAt:       signer.SignedAt,
		RemindersSent:  signer.RemindersSent,
		LastReminderAt: signer.LastReminderAt,
		SignatureIP:    signer.SignatureIP,
		SignatureType:  signer.SignatureType,
		Comment:        signer.Comment,
		DelegatedTo:    signer.DelegatedTo,
	}
}

func auditRecordFromEntry(entry domain.AuditEntry) (storage.AuditEntryRecord, error) {
	detailsJSON := "{}"
	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return storage.AuditEntryRecord{}, fmt.Errorf("encode audit details: %w", err)
		}
		detailsJSON = string(encoded)
	}
	return storage.AuditEntryRecord{
		ID:             entry.ID,
		RequestID:      entry.RequestID,
		SignerID:       entry.SignerID,
		SignerEmail:    entry.SignerEmail,
		Action:         string(entry.Action),
		Description:    entry.Description,
		DetailsJSON:    detailsJSON,
		IsSystemAction: entry.IsSystemAction,
		CreatedAt:      entry.CreatedAt,
	}, nil
}

type certificateSignerJSON struct {
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email"`
	Role          string     `json:"role,omitempty"`
	Level         int        `json:"level"`
	Status        string     `json:"status"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
	SignatureIP   string     `json:"signature_ip,omitempty"`
	SignatureType string     `json:"signature_type,omitempty"`
}

func certificateRecordFromCertificate(certificate domain.Certificate) (storage.CertificateRecord, error) {
	signers := make([]certificateSignerJSON, 0, len(certificate.Signers))
	for _, signer := range certificate.Signers {
		signers = append(signers, certificateSignerJSON{
			Name:          signer.Name,
			Email:         signer.Email,
			Role:          signer.Role,
			Level:         signer.Level,
			Status:        signer.Status.String(),
			SignedAt:      signer.SignedAt,
			SignatureIP:   signer.SignatureIP,
			SignatureType: signer.SignatureType,
		})
	}
	encoded, err := json.Marshal(signers)
	if err != nil {
		return storage.CertificateRecord{}, fmt.Errorf("encode certificate signers: %w", err)
	}
	return storage.CertificateRecord{
		ID:           certificate.ID,
		RequestID:    certificate.RequestID,
		Title:        certificate.Title,
		DocumentRefs: certificate.DocumentRefs,
		SignersJSON:  string(encoded),
		GeneratedAt:  certificate.GeneratedAt,
	}, nil
}
