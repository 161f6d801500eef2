package notionsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/dvloznov/psp-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

// Options controls a rollover sync.
type Options struct {
	// Period is written to every page as the reported date range.
	Period string
	// Prune archives pages whose PSP is absent from the summary.
	Prune  bool
	DryRun bool
	// Now overrides the Synced At timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Result counts what a sync did (or would have done, in dry-run mode).
type Result struct {
	Created  int
	Updated  int
	Archived int
	Failed   int
}

// SyncRolloverSummary mirrors the rollover summary into a Notion database, one page
// per PSP keyed by its title. Existing pages are updated in place and missing ones
// created. Per-page failures are logged and counted; only a failure to list the
// database aborts the sync.
func SyncRolloverSummary(ctx context.Context, notionClient NotionService, notionDBID string, summary []ledger.PSPSummary, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	syncedAt := now()

	log.Info().
		Int("psp_count", len(summary)).
		Str("period", opts.Period).
		Bool("prune", opts.Prune).
		Bool("dry_run", opts.DryRun).
		Msg("Starting rollover sync to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("SyncRolloverSummary: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// PSP names are matched case-insensitively; the first page wins on duplicates.
	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		psp := strings.ToLower(strings.TrimSpace(extractPSP(page)))
		if psp == "" {
			continue
		}
		if _, dup := existing[psp]; !dup {
			existing[psp] = string(page.ID)
		}
	}

	result := &Result{}
	wanted := make(map[string]bool, len(summary))

	for _, s := range summary {
		key := strings.ToLower(strings.TrimSpace(s.PSP))
		wanted[key] = true
		pageID, found := existing[key]

		if opts.DryRun {
			if found {
				log.Info().Str("psp", s.PSP).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
				result.Updated++
			} else {
				log.Info().Str("psp", s.PSP).Msg("[DRY RUN] Would create Notion page")
				result.Created++
			}
			continue
		}

		props := SummaryToNotionProperties(s, opts.Period, syncedAt)

		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().Err(err).Str("psp", s.PSP).Str("page_id", pageID).Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			log.Debug().Str("psp", s.PSP).Str("page_id", pageID).Msg("Updated Notion page")
			result.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().Err(err).Str("psp", s.PSP).Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().Str("psp", s.PSP).Str("page_id", string(page.ID)).Msg("Created Notion page")
		result.Created++
	}

	if opts.Prune {
		for psp, pageID := range existing {
			if wanted[psp] {
				continue
			}
			if opts.DryRun {
				log.Info().Str("psp", psp).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
				result.Archived++
				continue
			}
			if err := notionClient.DeletePage(ctx, pageID); err != nil {
				log.Warn().Err(err).Str("psp", psp).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
				result.Failed++
				continue
			}
			result.Archived++
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Int("failed", result.Failed).
		Msg("Rollover sync completed")

	return result, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
