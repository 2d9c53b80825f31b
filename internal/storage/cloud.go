package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Uploader pushes a backup artifact to a remote service and returns
// its remote location.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, path string) (string, error)
}

// NewUploader returns the uploader for a service name. Only simulated
// gdrive and dropbox uploaders exist; real cloud APIs are out of scope.
func NewUploader(service string, logger *logrus.Logger) (Uploader, error) {
	switch service {
	case "gdrive", "dropbox":
		return &simulatedUploader{service: service, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported cloud service %q (want gdrive or dropbox)", service)
	}
}

// simulatedUploader pretends to upload and returns a pseudo-URL, the
// way the service integration behaves without credentials.
type simulatedUploader struct {
	service string
	logger  *logrus.Logger
}

func (u *simulatedUploader) Name() string {
	return u.service
}

func (u *simulatedUploader) Upload(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", path, err)
	}

	remote := fmt.Sprintf("%s://backups/%s", u.service, filepath.Base(path))

	log := u.logger
	if log == nil {
		log = logrus.New()
	}

	log.WithFields(logrus.Fields{
		"service": u.service,
		"size":    humanize.IBytes(uint64(info.Size())),
		"remote":  remote,
	}).Info("simulated cloud upload")

	return remote, nil
}
