package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/tomasbasham/gcs-upload/internal/config"
	"github.com/tomasbasham/gcs-upload/internal/storage"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// clientFactory builds the storage client for a run and reports the project
// buckets are listed in.
type clientFactory func(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Client, string, error)

// newStorageClient authenticates with the configured service-account key, or
// writes to the local root when one is configured. Credentials problems are
// fatal here, before any upload is attempted.
func newStorageClient(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Client, string, error) {
	if cfg.LocalRoot != "" {
		client, err := storage.NewLocalClient(cfg.LocalRoot)
		if err != nil {
			return nil, "", err
		}
		log.WithField("root", cfg.LocalRoot).Info("Writing objects to local directory")
		return client, cfg.Project, nil
	}

	creds, err := config.LoadCredentials(cfg.Credentials)
	if err != nil {
		return nil, "", err
	}

	projectID := cfg.Project
	if projectID == "" {
		projectID = creds.ProjectID
	}

	client, err := storage.NewGCSClient(ctx,
		option.WithAuthCredentialsJSON(option.ServiceAccount, creds.JSON),
		option.WithScopes(cloudPlatformScope),
	)
	if err != nil {
		return nil, "", err
	}

	log.WithFields(logrus.Fields{
		"project":         projectID,
		"service_account": creds.ClientEmail,
	}).Info("Initialized GCS client")

	return client, projectID, nil
}
