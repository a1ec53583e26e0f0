package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
)

const (
	infoSheet      = "Info"
	processedSheet = "Processed"
	addedSheet     = "Songs Added"
	notFoundSheet  = "Songs Not Found"

	processedRange = "Processed!A2:C"
)

// requiredSheets maps each tab of the logging spreadsheet to its header
// row. Any other tab is considered extraneous and removed at bootstrap.
var requiredSheets = []struct {
	name    string
	headers []string
}{
	{infoSheet, []string{"Timestamp", "Message", "Processed", "Found", "Unfound"}},
	{processedSheet, []string{"Filename", "Playlist ID", "Marker"}},
	{addedSheet, []string{"Date", "Title", "Artist"}},
	{notFoundSheet, []string{"Date", "Title", "Artist"}},
}

// OpRecorder counts spreadsheet operations by kind and result.
type OpRecorder interface {
	RecordSheetOp(op, status string)
}

// Logger records run outcomes in the logging spreadsheet. All writes
// are best-effort: a failed append or sort is logged and the run
// continues, so sheet trouble never blocks the sync itself.
type Logger struct {
	client        core.SheetsClient
	spreadsheetID string
	logger        *zap.Logger
	recorder      OpRecorder
	now           func() time.Time
}

func NewLogger(client core.SheetsClient, spreadsheetID string, logger *zap.Logger) *Logger {
	return &Logger{
		client:        client,
		spreadsheetID: spreadsheetID,
		logger:        logger,
		now:           time.Now,
	}
}

// SetRecorder attaches an operation counter. A nil recorder disables
// counting.
func (l *Logger) SetRecorder(recorder OpRecorder) {
	l.recorder = recorder
}

func (l *Logger) record(op string, err error) {
	if l.recorder == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.recorder.RecordSheetOp(op, status)
}

// EnsureSpreadsheet resolves the logging spreadsheet: the configured ID
// when set, otherwise locate-or-create by name in the Drive folder.
// Newly created spreadsheets are polled until reachable. The required
// tabs are ensured and extraneous tabs (including the default "Sheet1")
// removed.
func EnsureSpreadsheet(
	ctx context.Context,
	locator core.SpreadsheetLocator,
	client core.SheetsClient,
	cfg *core.GoogleConfig,
	logger *zap.Logger,
) (string, error) {
	spreadsheetID := cfg.SpreadsheetID

	if spreadsheetID == "" {
		id, ok, err := locator.FindSpreadsheet(ctx, cfg.HistoryFolderID, cfg.SpreadsheetName)
		if err != nil {
			return "", fmt.Errorf("failed to locate logging spreadsheet: %w", err)
		}
		if ok {
			spreadsheetID = id
		} else {
			id, err := locator.CreateSpreadsheet(ctx, cfg.HistoryFolderID, cfg.SpreadsheetName)
			if err != nil {
				return "", fmt.Errorf("failed to create logging spreadsheet: %w", err)
			}
			spreadsheetID = id
			logger.Info("Created logging spreadsheet",
				zap.String("name", cfg.SpreadsheetName),
				zap.String("spreadsheetID", spreadsheetID))

			if !client.WaitReady(ctx, spreadsheetID) {
				logger.Error("Spreadsheet did not become ready in time, continuing anyway")
			}
		}
	}

	setupTabs(ctx, client, spreadsheetID, logger)

	return spreadsheetID, nil
}

func setupTabs(ctx context.Context, client core.SheetsClient, spreadsheetID string, logger *zap.Logger) {
	required := make(map[string]bool, len(requiredSheets))
	for _, sheet := range requiredSheets {
		required[sheet.name] = true
		if err := client.EnsureSheet(ctx, spreadsheetID, sheet.name, sheet.headers); err != nil {
			logger.Error("Failed to ensure sheet tab",
				zap.String("sheet", sheet.name),
				zap.Error(err))
		}
	}

	titles, err := client.ListSheetTitles(ctx, spreadsheetID)
	if err != nil {
		logger.Error("Failed to list sheet tabs for cleanup", zap.Error(err))
		return
	}
	for _, title := range titles {
		if required[title] {
			continue
		}
		if err := client.DeleteSheet(ctx, spreadsheetID, title); err != nil {
			logger.Error("Failed to delete extraneous sheet",
				zap.String("sheet", title),
				zap.Error(err))
			continue
		}
		logger.Info("Deleted extraneous sheet", zap.String("sheet", title))
	}
}

// LogInfo appends a timestamped free-text row to the Info tab.
func (l *Logger) LogInfo(ctx context.Context, message string) {
	l.appendInfo(ctx, message, "", "", "")
}

func (l *Logger) appendInfo(ctx context.Context, message, processed, found, unfound string) {
	row := []string{l.timestamp(), message, processed, found, unfound}
	err := l.client.AppendRows(ctx, l.spreadsheetID, infoSheet+"!A1", [][]string{row})
	l.record("append", err)
	if err != nil {
		l.logger.Error("Failed to append to Info sheet", zap.Error(err))
	}
}

// LogOutcome records everything about one processed file: the Info
// summary, the added/unfound track rows, and the Processed cursor
// upsert. Every step is best-effort.
func (l *Logger) LogOutcome(ctx context.Context, outcome *core.FileOutcome) {
	l.appendInfo(ctx,
		"Processed file: "+outcome.Filename,
		fmt.Sprintf("Processed rows: %d", outcome.Processed),
		fmt.Sprintf("Found tracks: %d", len(outcome.Added)),
		fmt.Sprintf("Unfound tracks: %d", len(outcome.Unfound)))

	if rows := songRows(outcome.Date, outcome.Added); len(rows) > 0 {
		err := l.client.AppendRows(ctx, l.spreadsheetID, addedSheet+"!A1", rows)
		l.record("append", err)
		if err != nil {
			l.logger.Error("Failed to append to Songs Added", zap.Error(err))
		}
	}
	if rows := songRows(outcome.Date, outcome.Unfound); len(rows) > 0 {
		err := l.client.AppendRows(ctx, l.spreadsheetID, notFoundSheet+"!A1", rows)
		l.record("append", err)
		if err != nil {
			l.logger.Error("Failed to append to Songs Not Found", zap.Error(err))
		}
	}

	l.upsertProcessed(ctx, outcome)
}

// upsertProcessed keeps a single summary row per filename: update in
// place when the filename already has a row, append otherwise, then
// re-sort the sheet descending by the marker column.
func (l *Logger) upsertProcessed(ctx context.Context, outcome *core.FileOutcome) {
	row := []string{outcome.Filename, outcome.PlaylistID, outcome.LastMarker}

	existing, err := l.client.ReadRange(ctx, l.spreadsheetID, processedRange)
	l.record("read", err)
	if err != nil {
		l.logger.Error("Failed to read Processed sheet", zap.Error(err))
		return
	}

	rowIndex := -1
	for i, r := range existing {
		if len(r) > 0 && r[0] == outcome.Filename {
			rowIndex = i + 2 // offset for header row and 1-based addressing
			break
		}
	}

	if rowIndex > 0 {
		rangeName := fmt.Sprintf("%s!A%d:C%d", processedSheet, rowIndex, rowIndex)
		err := l.client.UpdateRange(ctx, l.spreadsheetID, rangeName, [][]string{row})
		l.record("update", err)
		if err != nil {
			l.logger.Error("Failed to update Processed row", zap.Error(err))
			return
		}
	} else {
		err := l.client.AppendRows(ctx, l.spreadsheetID, processedSheet+"!A1", [][]string{row})
		l.record("append", err)
		if err != nil {
			l.logger.Error("Failed to append Processed row", zap.Error(err))
			return
		}
	}

	err = l.client.SortSheet(ctx, l.spreadsheetID, processedSheet, 2, true)
	l.record("sort", err)
	if err != nil {
		l.logger.Error("Failed to sort Processed sheet", zap.Error(err))
	}
}

// LoadProcessedMap reads the per-file cursor rows into a map.
// Incomplete rows are skipped.
func (l *Logger) LoadProcessedMap(ctx context.Context) (map[string]string, error) {
	rows, err := l.client.ReadRange(ctx, l.spreadsheetID, processedRange)
	l.record("read", err)
	if err != nil {
		return nil, err
	}

	processed := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) >= 3 {
			processed[row[0]] = row[2]
		}
	}
	return processed, nil
}

func (l *Logger) timestamp() string {
	return l.now().Format("2006-01-02 15:04:05")
}

func songRows(date string, songs []core.Song) [][]string {
	rows := make([][]string, 0, len(songs))
	for _, song := range songs {
		rows = append(rows, []string{date, song.Title, song.Artist})
	}
	return rows
}
