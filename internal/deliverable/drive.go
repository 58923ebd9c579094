package deliverable

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveProvisioner creates task folders in Google Drive under a parent
// folder, using a service account.
type DriveProvisioner struct {
	srv      *drive.Service
	parentID string
}

// NewDriveProvisioner builds a provisioner from a service-account JSON key
// file.
func NewDriveProvisioner(ctx context.Context, credentialsFile, parentID string) (*DriveProvisioner, error) {
	if parentID == "" {
		return nil, fmt.Errorf("drive parent folder id is required")
	}
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading drive credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parsing drive credentials: %w", err)
	}
	client := oauth2.NewClient(ctx, creds.TokenSource)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	return &DriveProvisioner{srv: srv, parentID: parentID}, nil
}

// Provision creates the folder and returns its Drive file ID.
func (p *DriveProvisioner) Provision(ctx context.Context, req FolderRequest) (string, error) {
	f, err := p.srv.Files.Create(&drive.File{
		Name:        req.Name(),
		MimeType:    folderMimeType,
		Parents:     []string{p.parentID},
		Description: req.Template.Detail,
	}).SupportsAllDrives(true).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating drive folder %q: %w", req.Name(), err)
	}
	return f.Id, nil
}
