package reporting

import (
	"context"
	"fmt"
	"path"

	"github.com/dvloznov/psp-ledger/internal/gcsuploader"
	"github.com/dvloznov/psp-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// ExportObjectName is the object path an export job uploads its workbook to.
func ExportObjectName(job *jobs.ExportLedgerJob) string {
	return path.Join("exports", job.CreatedAt.UTC().Format("2006/01/02"), job.JobID+".xlsx")
}

// NewExportJobHandler returns a jobs.JobHandler that renders the workbook for an
// ExportLedgerJob and uploads it to bucket. On success job.GCSURI is set.
func NewExportJobHandler(svc *Service, storage gcsuploader.StorageService, bucket string, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		export, ok := job.(*jobs.ExportLedgerJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}
		if bucket == "" {
			return fmt.Errorf("export job %s: no export bucket configured", export.JobID)
		}

		log.Info().
			Str("job_id", export.JobID).
			Str("psp", export.PSP).
			Str("start_date", export.StartDate.String()).
			Str("end_date", export.EndDate.String()).
			Msg("Processing export job")

		data, err := svc.ExportWorkbook(ctx, Query{StartDate: export.StartDate, EndDate: export.EndDate, PSP: export.PSP})
		if err != nil {
			return fmt.Errorf("export job %s: %w", export.JobID, err)
		}

		uri, err := storage.UploadBytes(ctx, bucket, ExportObjectName(export), gcsuploader.XLSXContentType, data)
		if err != nil {
			return fmt.Errorf("export job %s: %w", export.JobID, err)
		}
		export.GCSURI = uri

		log.Info().
			Str("job_id", export.JobID).
			Str("gcs_uri", uri).
			Int("bytes", len(data)).
			Msg("Export job completed")
		return nil
	}
}
