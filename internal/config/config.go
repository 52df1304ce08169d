package config

import (
	"os"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	CORSOrigins string
	JWTSecret   string

	// Storage directories for document files
	UploadsDir    string
	SignedDir     string
	SignaturesDir string

	// Default signature image file name inside SignaturesDir, used when
	// the signing user has no image of their own. Empty disables the
	// fallback.
	DefaultSignature string

	// External tools
	SofficeBin    string
	PythonBin     string
	StamperScript string

	// License key for the PDF stamping library; without it the PDF
	// writer rejects every output.
	UnidocLicenseKey string

	LogDir string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		UploadsDir:       getEnv("UPLOADS_DIR", "storage/uploads"),
		SignedDir:        getEnv("SIGNED_DIR", "storage/signed"),
		SignaturesDir:    getEnv("SIGNATURES_DIR", "storage/signatures"),
		DefaultSignature: getEnv("DEFAULT_SIGNATURE", ""),

		SofficeBin:    getEnv("SOFFICE_BIN", "soffice"),
		PythonBin:     getEnv("PYTHON_BIN", "python3"),
		StamperScript: getEnv("STAMPER_SCRIPT", "scripts/stamp_word.py"),

		UnidocLicenseKey: getEnv("UNIDOC_LICENSE_KEY", ""),

		LogDir: getEnv("LOG_DIR", "logs"),
		// Debug defaults to true outside production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
