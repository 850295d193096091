package settings

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/bverad/workshop-cicd-app-cdk/internal"
)

var Settings *AppSettings

func NewSettings() *AppSettings {
	settings := AppSettings{
		Account:    os.Getenv("CDK_DEFAULT_ACCOUNT"),
		Region:     os.Getenv("CDK_DEFAULT_REGION"),
		ConfigPath: getEnvOrDefault("PIPELINE_CONFIG_PATH", internal.DefaultConfigPath),
		LogLevel:   strings.ToLower(getEnvOrDefault("PIPELINE_LOG_LEVEL", "info")),
	}
	if settings.Region == "" {
		settings.Region = os.Getenv("AWS_REGION")
	}
	return &settings
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

type AppSettings struct {
	Account    string
	Region     string
	ConfigPath string
	LogLevel   string
}

// HasEnvironment reports whether both account and region are known, which
// makes the synthesized stack environment-specific.
func (as *AppSettings) HasEnvironment() bool {
	return as.Account != "" && as.Region != ""
}

// ReadDotenv loads KEY=value lines from path into the process environment.
// A missing file is not an error.
func ReadDotenv(path string) error {
	re := regexp.MustCompile(`^[^0-9][A-Z0-9_]+=.+$`)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) > 0 && line[0] != '#' && re.Match(line) {
			name, value, _ := strings.Cut(string(line), "=")
			name = strings.TrimSpace(name)
			value = strings.TrimSpace(value)
			value = strings.Trim(value, `"`)
			os.Setenv(name, value)
		}
	}
	return scanner.Err()
}
