package cmd

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/onairstack/stagecast/internal/config"
	"github.com/onairstack/stagecast/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing stagecast configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  stagecast config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, .stagecast.yaml, /etc/stagecast/config.yaml)
  - Environment variables (STAGECAST_SERVER_PORT, STAGECAST_MIXER_MAX_ALLOCATIONS, etc.)
  - Command-line flags (for some options)

Environment variables use the STAGECAST_ prefix and underscores for nesting.
Example: server.port -> STAGECAST_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		// Use the mapstructure tag, then the yaml tag, then the field name
		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		default:
			if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Struct {
				items := make([]map[string]any, field.Len())
				for j := 0; j < field.Len(); j++ {
					items[j] = toMap(field.Index(j).Interface())
				}
				result[key] = items
			} else if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// Load config with defaults (no file, just defaults)
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Convert to map with human-readable values
	cfgMap := toMap(cfg)

	// Marshal to YAML
	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Print header with documentation
	fmt.Println("# stagecast Configuration File")
	fmt.Println("# ============================")
	fmt.Println("#")
	fmt.Println("# All values shown below are defaults.")
	fmt.Println("# Duration format: 30s, 5m, 1h")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   STAGECAST_SERVER_HOST, STAGECAST_SERVER_PORT")
	fmt.Println("#   STAGECAST_MIXER_MAX_ALLOCATIONS, STAGECAST_MIXER_ACQUIRE_TIMEOUT")
	fmt.Println("#   STAGECAST_LOGGING_LEVEL, STAGECAST_LOGGING_FORMAT")
	fmt.Println("#   etc.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
