package config

import (
	"fmt"
	"os"
	"strings"
)

// Config is the process configuration. It is loaded once at start-up and
// handed to constructors; nothing reads the environment after Load.
type Config struct {
	RecordStore RecordStoreConfig
	Export      ExportConfig
	Upload      UploadConfig
	RecordRuns  bool
	LogLevel    string
}

// RecordStoreConfig locates the BigQuery dataset holding payments, invoice
// transactions, candidates, agencies and export runs.
type RecordStoreConfig struct {
	Project string
	Dataset string
	// URL overrides the API endpoint (e.g. an emulator). Authentication is
	// disabled when it is set.
	URL string
}

type ExportConfig struct {
	EnableAgencyPayments bool
	OutputDir            string
	AgencyFileName       string
	SupplierFileName     string
	NotAvailableText     string
	ReferencePrefix      string
}

// UploadConfig enables copying finished files to Cloud Storage when Bucket is set.
type UploadConfig struct {
	Bucket string
	Prefix string
}

// Enabled reports whether uploads are configured.
func (c UploadConfig) Enabled() bool {
	return c.Bucket != ""
}

const (
	DefaultDataset          = "Export"
	DefaultAgencyFileName   = "Agency_BACSExport.csv"
	DefaultSupplierFileName = "Supplier_BACSExport.csv"
)

func Load() (*Config, error) {
	enableAgency, err := getBoolEnv("ENABLE_AGENCY_PAYMENTS", false)
	if err != nil {
		return nil, err
	}
	recordRuns, err := getBoolEnv("EXPORT_RECORD_RUNS", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RecordStore: RecordStoreConfig{
			Project: getEnv("RECORD_STORE_PROJECT", ""),
			Dataset: getEnv("RECORD_STORE_DATASET", DefaultDataset),
			URL:     getEnv("RECORD_STORE_URL", ""),
		},
		Export: ExportConfig{
			EnableAgencyPayments: enableAgency,
			OutputDir:            getEnv("EXPORT_OUTPUT_DIR", "."),
			AgencyFileName:       getEnv("AGENCY_EXPORT_FILE", DefaultAgencyFileName),
			SupplierFileName:     getEnv("SUPPLIER_EXPORT_FILE", DefaultSupplierFileName),
			NotAvailableText:     getEnv("EXPORT_NOT_AVAILABLE_TEXT", ""),
			ReferencePrefix:      getEnv("EXPORT_REFERENCE_PREFIX", ""),
		},
		Upload: UploadConfig{
			Bucket: getEnv("EXPORT_UPLOAD_BUCKET", ""),
			Prefix: getEnv("EXPORT_UPLOAD_PREFIX", ""),
		},
		RecordRuns: recordRuns,
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	if cfg.RecordStore.Project == "" {
		return nil, fmt.Errorf("RECORD_STORE_PROJECT is required")
	}
	for _, name := range []string{cfg.Export.AgencyFileName, cfg.Export.SupplierFileName} {
		if strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("export file name %q must not contain a path separator", name)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: %q is not a boolean", key, value)
	}
}
