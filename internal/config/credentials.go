package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrInvalidCredentials is returned when the credentials file exists but
// cannot be read as a JSON key.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is a parsed service-account key file.
type Credentials struct {
	Path        string
	ProjectID   string
	ClientEmail string

	// JSON is the raw key file, handed unchanged to the storage client.
	JSON []byte
}

type serviceAccountKey struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// LoadCredentials reads the service-account key file at path and extracts the
// identity fields used for logging and bucket listing. The key type itself is
// checked by the storage client when the key is handed to it. A missing file
// wraps fs.ErrNotExist; a directory or malformed JSON wraps
// ErrInvalidCredentials.
func LoadCredentials(path string) (*Credentials, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("credentials file not found: %s (create a service account key or pass --credentials): %w", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("checking credentials file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("credentials path is not a file: %s: %w", path, ErrInvalidCredentials)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w: %s", path, ErrInvalidCredentials, err)
	}

	return &Credentials{
		Path:        path,
		ProjectID:   key.ProjectID,
		ClientEmail: key.ClientEmail,
		JSON:        data,
	}, nil
}
