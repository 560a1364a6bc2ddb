package handlers

import (
	"github.com/arturkryukov/artsore/staging-service/internal/api/generated"
	"github.com/arturkryukov/artsore/staging-service/internal/domain/model"
)

// ingestToAPI конвертирует запись ingest в тип API.
func ingestToAPI(rec *model.IngestRecord) generated.IngestTransfer {
	return generated.IngestTransfer{
		TransferId:      rec.TransferID,
		DigitalObjectId: rec.DigitalObjectID,
		OwnerId:         rec.OwnerID,
		GroupId:         rec.GroupID,
		AccessPointId:   rec.AccessPointID,
		Status:          generated.IngestStatus(rec.Status),
		StagingUrl:      optional(rec.StagingURL),
		StorageUrl:      optional(rec.StorageURL),
		ErrorMessage:    optional(rec.ErrorMessage),
		ExpiresAt:       rec.ExpiresAt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		PreProcessors:   processorsToAPI(rec.PreProcessors),
		PostProcessors:  processorsToAPI(rec.PostProcessors),
	}
}

// downloadToAPI конвертирует запись download в тип API.
func downloadToAPI(rec *model.DownloadRecord) generated.DownloadTransfer {
	return generated.DownloadTransfer{
		TransferId:           rec.TransferID,
		DigitalObjectId:      rec.DigitalObjectID,
		OwnerId:              rec.OwnerID,
		GroupId:              rec.GroupID,
		AccessPointId:        rec.AccessPointID,
		Status:               generated.DownloadStatus(rec.Status),
		ViewName:             rec.View(),
		StagingUrl:           optional(rec.StagingURL),
		ErrorMessage:         optional(rec.ErrorMessage),
		NotificationReceiver: optional(rec.NotificationReceiver),
		ExpiresAt:            rec.ExpiresAt,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
		Processors:           processorsToAPI(rec.Processors),
	}
}

func preparationToAPI(result model.PreparationResult) generated.PreparationResult {
	return generated.PreparationResult{
		Status:       result.Status,
		StagingUrl:   optional(result.StagingURL),
		ErrorMessage: optional(result.ErrorMessage),
	}
}

// processorsToAPI — nil для пустого списка (поле опускается в JSON).
func processorsToAPI(procs []model.StagingProcessorConfig) *[]generated.StagingProcessor {
	if len(procs) == 0 {
		return nil
	}
	out := make([]generated.StagingProcessor, 0, len(procs))
	for _, p := range procs {
		out = append(out, generated.StagingProcessor{
			Id:             p.ID,
			Name:           optional(p.Name),
			Implementation: p.Implementation,
			Priority:       p.Priority,
		})
	}
	return &out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
