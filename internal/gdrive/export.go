package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Exporter uploads saved interviews to a Drive folder. Re-exporting the same
// interview updates the file created for it earlier in this process.
type Exporter struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewExporter(ctx context.Context, credPath, folderID string) (*Exporter, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	return newExporter(ctx, folderID, option.WithCredentials(config))
}

func newExporter(ctx context.Context, folderID string, opts ...option.ClientOption) (*Exporter, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Exporter{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// ExportInterview writes data as mockvoice-interview-<id>.json.
func (e *Exporter) ExportInterview(ctx context.Context, id string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fileID, ok := e.fileIDs[id]; ok {
		_, err := e.service.Files.Update(fileID, &drive.File{}).Media(bytes.NewReader(data)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	file := &drive.File{
		Name:     FileName(id),
		MimeType: "application/json",
	}
	if e.folderID != "" {
		file.Parents = []string{e.folderID}
	}

	created, err := e.service.Files.Create(file).Media(bytes.NewReader(data)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	e.fileIDs[id] = created.Id
	return nil
}

func FileName(id string) string {
	return fmt.Sprintf("mockvoice-interview-%s.json", id)
}
