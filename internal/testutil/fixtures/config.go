package fixtures

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/carepulse/carepulse/internal/config"
)

// MemoryConfig is a test configuration on the in-memory store, with
// AdminPasskey as the admin passkey.
func MemoryConfig() *config.Config {
	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPasskey), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return &config.Config{
		Port:             "0",
		Env:              "test",
		StoreDriver:      config.StoreDriverMemory,
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimitRPS:     1000,
		RateLimitBurst:   1000,
		RequestTimeout:   5 * time.Second,
		AdminTokenSecret: "carepulse-test-token-secret-0123456789",
		AdminTokenTTL:    time.Hour,
		PublicBaseURL:    "http://localhost:8000",
		BucketID:         "identification",
		NotifyTimeout:    time.Second,
		Timezone:         "UTC",
		AdminPasskeyHash: hash,
	}
}
