package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ClaimsConfig carries every external-service setting the claims pipeline needs.
// It is built once in main() and passed to constructors explicitly so the
// pipeline and its tests can run with swappable fakes. Nothing in workflow/ or
// jpverify/ reads these values from the environment directly.
type ClaimsConfig struct {
	// VerifyBaseURL is the verification oracle endpoint root; the client POSTs
	// to VerifyBaseURL + "/verify".
	VerifyBaseURL string

	// InternalSecret authenticates the onchain-trigger caller (X-Internal-Secret).
	InternalSecret string

	// AdminSecret authenticates admin transitions (X-Admin-Secret).
	AdminSecret string

	// VerifyAttemptTimeout bounds each individual oracle request.
	VerifyAttemptTimeout time.Duration

	// VerifyMaxAttempts is the total attempt count (first call + retries).
	VerifyMaxAttempts int

	// VerifyBackoffStep is multiplied by (attemptIndex+1) between timeout retries.
	VerifyBackoffStep time.Duration
}

// LoadClaimsConfig reads the claims pipeline settings from the environment with
// production defaults. Only main() and cmd/ tools call this.
func LoadClaimsConfig() ClaimsConfig {
	godotenv.Load()

	baseURL := strings.TrimSpace(os.Getenv("JP_VERIFY_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:9090"
	}

	return ClaimsConfig{
		VerifyBaseURL:        strings.TrimRight(baseURL, "/"),
		InternalSecret:       strings.TrimSpace(os.Getenv("INTERNAL_SHARED_SECRET")),
		AdminSecret:          strings.TrimSpace(os.Getenv("ADMIN_SHARED_SECRET")),
		VerifyAttemptTimeout: time.Duration(IntFromEnv("JP_VERIFY_TIMEOUT_SECONDS", 8)) * time.Second,
		VerifyMaxAttempts:    IntFromEnv("JP_VERIFY_MAX_ATTEMPTS", 3),
		VerifyBackoffStep:    time.Duration(IntFromEnv("JP_VERIFY_BACKOFF_MS", 150)) * time.Millisecond,
	}
}
