// Package drive wraps the Google Drive API for history-file listing,
// download, and logging-spreadsheet lookup.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/kaianolevine/spotify-playlist-generator-dev/internal/core"
)

const (
	historySuffix   = ".m3u"
	spreadsheetMIME = "application/vnd.google-apps.spreadsheet"
)

// Client implements core.DriveClient and core.SpreadsheetLocator on top
// of the Drive v3 API.
type Client struct {
	svc      *driveapi.Service
	folderID string
	logger   *zap.Logger
}

func NewClient(ctx context.Context, credentialsFile, folderID string, logger *zap.Logger) (*Client, error) {
	svc, err := driveapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(driveapi.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Client{
		svc:      svc,
		folderID: folderID,
		logger:   logger,
	}, nil
}

// ListHistoryFiles lists the history folder, keeping only .m3u files
// (case-insensitive) sorted by name ascending so files are always
// processed in the same order.
func (c *Client) ListHistoryFiles(ctx context.Context) ([]core.HistoryFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", c.folderID)

	var files []core.HistoryFile
	pageToken := ""
	for {
		call := c.svc.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name)").
			PageSize(1000).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list folder %s: %w", c.folderID, err)
		}

		files = append(files, selectHistoryFiles(list.Files)...)

		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	sortByName(files)

	c.logger.Debug("Listed history files",
		zap.String("folderID", c.folderID),
		zap.Int("count", len(files)))

	return files, nil
}

func selectHistoryFiles(candidates []*driveapi.File) []core.HistoryFile {
	var files []core.HistoryFile
	for _, f := range candidates {
		if strings.HasSuffix(strings.ToLower(f.Name), historySuffix) {
			files = append(files, core.HistoryFile{ID: f.Id, Name: f.Name})
		}
	}
	return files
}

func sortByName(files []core.HistoryFile) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
}

// Download materializes the file's bytes at destPath.
func (c *Client) Download(ctx context.Context, fileID, destPath string) error {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return out.Close()
}

// FindSpreadsheet looks for a spreadsheet with the given name inside
// the folder.
func (c *Client) FindSpreadsheet(ctx context.Context, folderID, name string) (string, bool, error) {
	query := fmt.Sprintf(
		"'%s' in parents and trashed = false and mimeType = '%s' and name = '%s'",
		folderID, spreadsheetMIME, strings.ReplaceAll(name, "'", `\'`))

	list, err := c.svc.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, fmt.Errorf("failed to search for spreadsheet %q: %w", name, err)
	}

	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

// CreateSpreadsheet creates an empty spreadsheet inside the folder and
// returns its ID.
func (c *Client) CreateSpreadsheet(ctx context.Context, folderID, name string) (string, error) {
	file := &driveapi.File{
		Name:     name,
		MimeType: spreadsheetMIME,
		Parents:  []string{folderID},
	}

	created, err := c.svc.Files.Create(file).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet %q: %w", name, err)
	}
	return created.Id, nil
}
