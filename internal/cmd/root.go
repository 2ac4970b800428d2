package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliflag "github.com/tomasbasham/cli-runtime/flag"
	"github.com/tomasbasham/cli-runtime/iooption"
	"github.com/tomasbasham/cli-runtime/printer"
	"github.com/tomasbasham/cli-runtime/templates"

	"github.com/tomasbasham/gcs-upload/internal/config"
)

var (
	rootLong = templates.LongDesc(`
		Upload files to Google Cloud Storage using service account credentials.

		A single file is uploaded under its base name unless a destination is
		given. A directory, or any source combined with --recursive, uploads
		every file matching --pattern with the destination used as a prefix.
		Files that fail to upload do not stop the rest of the directory from
		being uploaded, but the command exits non-zero.`)

	rootExamples = templates.Examples(`
		# Upload a single file
		gcs-upload my-bucket ./file.pdf

		# Upload a file with custom destination name
		gcs-upload my-bucket ./local.pdf remote/path/file.pdf

		# Upload a directory recursively
		gcs-upload my-bucket ./folder --recursive

		# Upload only PDF files
		gcs-upload my-bucket ./docs --recursive --pattern "*.pdf"

		# Upload with custom content type and metadata
		gcs-upload my-bucket ./data.json --content-type application/json -m line=7

		# List available buckets
		gcs-upload --list-buckets

		# List files in a bucket
		gcs-upload my-bucket --list --prefix docs/`)

	// Injected at build time using ldflags.
	version = ""
	commit  = ""
)

// NewRootCommand creates the `gcs-upload` command with default arguments.
func NewRootCommand() *cobra.Command {
	options := NewUploadOptions(iooption.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	})

	return NewRootCommandWithArgs(options)
}

// NewRootCommandWithArgs creates the `gcs-upload` command bound to o.
func NewRootCommandWithArgs(o *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "gcs-upload [bucket] [source] [destination] [flags]",
		Version:               versionInfo(),
		DisableFlagsInUseLine: true,
		Short:                 "Upload files to Google Cloud Storage",
		Long:                  rootLong,
		Example:               rootExamples,
		Args:                  cobra.MaximumNArgs(3),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(); err != nil {
				return err
			}
			if err := o.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()

	flags.StringVar(&o.ConfigPath, "config", "", "Path to a YAML config file")
	flags.StringVarP(&o.Credentials, "credentials", "c", config.DefaultCredentialsPath, "Path to service account JSON")
	flags.BoolVarP(&o.Recursive, "recursive", "r", false, "Upload directory contents recursively")
	flags.StringVarP(&o.Pattern, "pattern", "p", config.DefaultPattern, "Glob pattern for filtering files")
	flags.StringVarP(&o.ContentType, "content-type", "t", "", "Content type for uploaded files (auto-detected if not specified)")
	flags.StringArrayVarP(&o.Metadata, "metadata", "m", nil, "Custom metadata to attach, as key=value (repeatable)")
	flags.BoolVar(&o.Public, "public", false, "Make uploaded files publicly accessible")
	flags.BoolVar(&o.NoOverwrite, "no-overwrite", false, "Skip files that already exist in the bucket")
	flags.IntVar(&o.Concurrency, "concurrency", config.DefaultConcurrency, "Number of files to upload at once")
	flags.BoolVar(&o.ListBuckets, "list-buckets", false, "List available buckets and exit")
	flags.BoolVarP(&o.List, "list", "l", false, "List files in the specified bucket")
	flags.StringVar(&o.Prefix, "prefix", "", "Prefix filter for listing blobs")
	flags.IntVar(&o.MaxResults, "max-results", config.DefaultMaxResults, "Maximum number of blobs to list")
	flags.StringVar(&o.Project, "project", "", "Project to list buckets in (default: from credentials)")
	flags.StringVar(&o.LocalRoot, "local-root", "", "Write objects beneath this directory instead of Cloud Storage")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Enable verbose output")

	// The global normalisation function ensures that all flags specified meet
	// the desired format, warning users when their input is changed.
	printerOpts := printer.WarningPrinterOptions{Color: true}
	printer := printer.NewWarningPrinter(o.ErrOut, printerOpts)
	cmd.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc(printer))

	return cmd
}

func versionInfo() string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s (commit: %s)", version, commit)
}
