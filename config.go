package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/utilitywarehouse/svn-mirror/repopool"
	"github.com/utilitywarehouse/svn-mirror/repository"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "/etc/svn-mirror/config.yaml"
	defaultRoot       = "/var/lib/svn-mirror/svn-clones"
	defaultLogFile    = "/var/log/svn-mirror/update-mirrors.log"
)

// Config is the content of the config file
type Config struct {
	// LogFile is the path of the log file, it is reopened if rotated
	LogFile string `yaml:"log_file"`

	// MetricsFile is the path of the prometheus text file written at the
	// end of a run. metrics are not written if not set
	MetricsFile string `yaml:"metrics_file"`

	repopool.Config `yaml:",inline"`
}

// loadConfig reads config file and applies flag overrides and defaults.
// missing config file is only an error if its path was explicitly given
func loadConfig(c *cli.Command) (*Config, error) {
	conf := &Config{}

	path := c.String("config")
	_, err := os.Stat(path)
	switch {
	case err == nil:
		conf, err = parseConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to parse config file err:%w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !c.IsSet("config"):
	default:
		return nil, fmt.Errorf("unable to read config file err:%w", err)
	}

	applyFlags(c, conf)
	applyDefaults(conf)

	return conf, nil
}

// applyFlags overrides config with explicitly set flags
func applyFlags(c *cli.Command, conf *Config) {
	if c.IsSet("root") {
		conf.Root = c.String("root")
	}
	if c.IsSet("log-file") {
		conf.LogFile = c.String("log-file")
	}
	if c.IsSet("metrics-file") {
		conf.MetricsFile = c.String("metrics-file")
	}
}

func applyDefaults(conf *Config) {
	if conf.Root == "" {
		conf.Root = defaultRoot
	}
	if conf.LogFile == "" {
		conf.LogFile = defaultLogFile
	}
}

func parseConfigFile(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(yamlFile); err != nil {
		return nil, err
	}

	conf := &Config{}
	if err := yaml.Unmarshal(yamlFile, conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// validateConfig checks all config sections for unexpected keys so that
// typos don't silently fall back to defaults
func validateConfig(yamlData []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(yamlData, &raw); err != nil {
		return err
	}

	// empty file
	if raw == nil {
		return nil
	}

	if key := findUnexpectedKey(raw, getAllowedKeys(Config{})); key != "" {
		return fmt.Errorf("unexpected key: .%v", key)
	}

	if defaults, ok := raw["defaults"]; ok {
		if err := validateRepoConfig(defaults, ".defaults"); err != nil {
			return err
		}
	}

	repos, ok := raw["repositories"]
	if !ok || repos == nil {
		return nil
	}

	reposList, ok := repos.([]any)
	if !ok {
		return fmt.Errorf("repositories config section is not valid")
	}

	for i, repo := range reposList {
		prefix := fmt.Sprintf(".repositories[%d]", i)
		if m, ok := repo.(map[string]any); ok && m["name"] != nil {
			prefix = fmt.Sprintf(".repositories[%v]", m["name"])
		}
		if err := validateRepoConfig(repo, prefix); err != nil {
			return err
		}
	}

	return nil
}

// validateRepoConfig checks repository config section and its sub sections
func validateRepoConfig(section any, prefix string) error {
	// section with no values
	if section == nil {
		return nil
	}

	repoMap, ok := section.(map[string]any)
	if !ok {
		return fmt.Errorf("%s config section is not valid", prefix)
	}

	if key := findUnexpectedKey(repoMap, getAllowedKeys(repository.Config{})); key != "" {
		return fmt.Errorf("unexpected key: %s.%v", prefix, key)
	}

	subSections := map[string]any{
		"commands": repository.Commands{},
		"auth":     repository.Auth{},
	}
	for name, typ := range subSections {
		sub, ok := repoMap[name]
		if !ok || sub == nil {
			continue
		}
		subMap, ok := sub.(map[string]any)
		if !ok {
			return fmt.Errorf("%s.%s config section is not valid", prefix, name)
		}
		if key := findUnexpectedKey(subMap, getAllowedKeys(typ)); key != "" {
			return fmt.Errorf("unexpected key: %s.%s.%v", prefix, name, key)
		}
	}

	return nil
}

// getAllowedKeys retrieves a list of allowed keys from the specified struct.
// keys of inlined structs are included
func getAllowedKeys(config any) []string {
	var allowedKeys []string
	val := reflect.ValueOf(config)
	typ := reflect.TypeOf(config)

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		name, opts, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if opts == "inline" {
			allowedKeys = append(allowedKeys, getAllowedKeys(val.Field(i).Interface())...)
			continue
		}
		if name != "" && name != "-" {
			allowedKeys = append(allowedKeys, name)
		}
	}
	return allowedKeys
}

func findUnexpectedKey(raw map[string]any, allowedKeys []string) string {
	for key := range raw {
		if !slices.Contains(allowedKeys, key) {
			return key
		}
	}

	return ""
}
