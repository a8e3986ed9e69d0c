// package secrets loads credentials and per-deployment settings from the
// environment. A .env file next to the binary is honored when present so the
// bot can run outside of a container.
package secrets

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	DiscordToken  string
	PostgresURL   string
	TMDBAPIKey    string
	OpenAIBaseURL string
	OpenAIKey     string
	GuildID       string
	LogLevel      string
)

// Init reads the optional .env file and resolves every variable the cogs
// need. Only the Discord token and Postgres URL are mandatory.
func Init() error {
	// missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	DiscordToken = os.Getenv("DISCORD_TOKEN")
	if DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is not set")
	}

	PostgresURL = os.Getenv("POSTGRES_URL")
	if PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL is not set")
	}

	TMDBAPIKey = os.Getenv("TMDB_API_KEY")
	OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	OpenAIKey = os.Getenv("OPENAI_API_KEY")
	GuildID = os.Getenv("GUILD_ID")
	LogLevel = os.Getenv("LOG_LEVEL")

	return nil
}

// IntFromEnv returns the named variable parsed as an int, or fallback when it
// is unset or malformed.
func IntFromEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
