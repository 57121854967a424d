package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default rpa data directory name (relative to home).
	DefaultDataDir = ".rpa"
	// DBFile is the template catalog database filename.
	DBFile = "rpa.db"
	// TemplatesDir is the subdirectory where template documents are kept.
	TemplatesDir = "templates"

	// DefaultListenAddress is the default address of the local automation API.
	DefaultListenAddress = "127.0.0.1:50325"
	// APIKeyEnvVar is the environment variable holding the local API key.
	APIKeyEnvVar = "RPA_API_KEY"
)

// DBPath returns the template catalog database path inside a data directory.
func DBPath(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}

// TemplatesPath returns the template documents directory inside a data directory.
func TemplatesPath(dataDir string) string {
	return filepath.Join(dataDir, TemplatesDir)
}
