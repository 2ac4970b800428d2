package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/tomasbasham/gcs-upload/internal/config"
	"github.com/tomasbasham/gcs-upload/internal/storage"
	"github.com/tomasbasham/gcs-upload/internal/upload"
)

// UploadOptions defines the options for the `gcs-upload` command.
type UploadOptions struct {
	config    *config.Config
	newClient clientFactory

	Bucket      string
	Source      string
	Destination string

	ConfigPath  string
	Credentials string
	Recursive   bool
	Pattern     string
	ContentType string
	Metadata    []string
	Public      bool
	NoOverwrite bool
	Concurrency int
	ListBuckets bool
	List        bool
	Prefix      string
	MaxResults  int
	Project     string
	LocalRoot   string
	Verbose     bool

	iooption.IOStreams
}

// NewUploadOptions provides an initialised UploadOptions instance.
func NewUploadOptions(streams iooption.IOStreams) *UploadOptions {
	return &UploadOptions{
		newClient: newStorageClient,
		IOStreams: streams,
	}
}

// Complete loads the config file and lets explicitly set flags and positional
// arguments override it.
func (o *UploadOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("credentials") {
		cfg.Credentials = o.Credentials
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.Concurrency
	}
	if flags.Changed("max-results") {
		cfg.MaxResults = o.MaxResults
	}
	if flags.Changed("project") {
		cfg.Project = o.Project
	}
	if flags.Changed("local-root") {
		cfg.LocalRoot = o.LocalRoot
	}
	if len(o.Metadata) > 0 {
		if cfg.Metadata == nil {
			cfg.Metadata = make(map[string]string, len(o.Metadata))
		}
		for _, kv := range o.Metadata {
			k, v, err := parseMetadata(kv)
			if err != nil {
				return err
			}
			cfg.Metadata[k] = v
		}
	}

	o.Bucket = cfg.Bucket
	if len(args) > 0 {
		o.Bucket = args[0]
	}
	if len(args) > 1 {
		o.Source = args[1]
	}
	if len(args) > 2 {
		o.Destination = args[2]
	}

	o.config = cfg
	return nil
}

// parseMetadata splits a key=value flag value on the first '=' only, so the
// value may itself contain '=' or ','.
func parseMetadata(kv string) (string, string, error) {
	parts := strings.SplitN(kv, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid metadata %q, expected key=value", kv)
	}
	return parts[0], parts[1], nil
}

func (o *UploadOptions) Validate() error {
	if err := o.config.Validate(); err != nil {
		return err
	}
	if o.ListBuckets {
		return nil
	}
	if o.Bucket == "" {
		return fmt.Errorf("bucket name is required for upload/list operations")
	}
	if o.List {
		return nil
	}
	if o.Source == "" {
		return fmt.Errorf("source path is required for upload")
	}
	return nil
}

func (o *UploadOptions) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(o.ErrOut, o.Verbose).WithField("run_id", uuid.NewString())

	client, projectID, err := o.newClient(ctx, o.config, log)
	if err != nil {
		return err
	}
	defer client.Close()

	uploader := upload.New(client, log, upload.Options{Concurrency: o.config.Concurrency})

	switch {
	case o.ListBuckets:
		return o.runListBuckets(ctx, uploader, projectID)
	case o.List:
		return o.runListBlobs(ctx, uploader)
	}

	info, err := os.Stat(o.Source)
	if (err == nil && info.IsDir()) || o.Recursive {
		return o.runUploadDirectory(ctx, uploader, log)
	}
	return o.runUploadFile(ctx, uploader)
}

func (o *UploadOptions) runUploadFile(ctx context.Context, uploader *upload.Uploader) error {
	result, err := uploader.UploadFile(ctx, &upload.Request{
		Bucket:      o.Bucket,
		Source:      o.Source,
		Destination: o.Destination,
		ContentType: o.ContentType,
		Metadata:    o.config.Metadata,
		MakePublic:  o.Public,
		Overwrite:   !o.NoOverwrite,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	switch result.Status {
	case upload.StatusSkipped:
		fmt.Fprintf(o.Out, "Skipped: %s already exists\n", storage.ResourceURI(result.Bucket, result.Destination))
	case upload.StatusSuccess:
		fmt.Fprintf(o.Out, "\nUploaded to: %s\n", result.ResourceURI)
		if result.PublicURL != "" {
			fmt.Fprintf(o.Out, "Public URL: %s\n", result.PublicURL)
		}
	}
	return nil
}

func (o *UploadOptions) runUploadDirectory(ctx context.Context, uploader *upload.Uploader, log logrus.FieldLogger) error {
	batch, err := uploader.UploadDirectory(ctx, &upload.DirectoryRequest{
		Bucket:      o.Bucket,
		Source:      o.Source,
		Prefix:      o.Destination,
		Pattern:     o.Pattern,
		Recursive:   o.Recursive,
		ContentType: o.ContentType,
		Metadata:    o.config.Metadata,
		MakePublic:  o.Public,
		Overwrite:   !o.NoOverwrite,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	summary := upload.Summarize(batch)
	fmt.Fprintf(o.Out, "\nUpload Summary:\n")
	fmt.Fprintf(o.Out, "  Successful: %d\n", summary.Successful)
	fmt.Fprintf(o.Out, "  Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(o.Out, "  Failed: %d\n", summary.Failed)

	failed := batch.Failed()
	for _, r := range failed {
		fmt.Fprintf(o.ErrOut, "  %s: %s\n", r.Source, r.Error)
		log.WithFields(logrus.Fields{
			"source":      r.Source,
			"destination": r.Destination,
			"error_kind":  r.Kind,
		}).Debugf("%+v", r.Err)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d file(s) failed to upload", len(failed), summary.Total())
	}
	return nil
}
