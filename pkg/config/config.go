package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".nvdis"
	configFile string = "config.yml"
)

// DefaultCacheSize is the number of decoded functions kept in memory when
// the config file does not say otherwise.
const DefaultCacheSize = 128

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Theme selects the color palette: "none" or "solarized".
	Theme string `yaml:"theme"`
	// Color is one of "auto", "always" or "never".
	Color string `yaml:"color"`
	// Colors overrides the palette per style with ANSI SGR parameters,
	// e.g. {opcode: "35", register: "38;2;108;113;196"}.
	Colors map[string]string `yaml:"colors"`

	// CacheSize is the number of decoded functions kept in memory.
	CacheSize *int `yaml:"cache-size,omitempty"`

	// Prompt is the prompt of 'nvdis repl'.
	Prompt string `yaml:"prompt,omitempty"`

	// Cuobjdump is the reference disassembler used by verify, optionally
	// followed by extra arguments, split by SplitCommand.
	Cuobjdump string `yaml:"cuobjdump"`
}

// GetCacheSize returns CacheSize or its default.
func (c *Config) GetCacheSize() int {
	if c.CacheSize == nil || *c.CacheSize <= 0 {
		return DefaultCacheSize
	}
	return *c.CacheSize
}

// GetCuobjdump returns the reference disassembler command line.
func (c *Config) GetCuobjdump() []string {
	argv := SplitCommand(c.Cuobjdump)
	if len(argv) == 0 {
		return []string{"cuobjdump"}
	}
	return argv
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	if _, err := os.Stat(fullConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfig(fullConfigFile); err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}

	c, err := LoadConfigFile(fullConfigFile)
	if err != nil {
		fmt.Printf("%v.", err)
		return &Config{}
	}
	return c
}

// LoadConfigFile reads the config file at path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config data")
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "unable to decode config file")
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveConfigFile(conf, fullConfigFile)
}

// SaveConfigFile writes conf to path.
func SaveConfigFile(conf *Config, path string) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create config file")
	}
	defer f.Close()
	if err := writeDefaultConfig(f); err != nil {
		return errors.Wrap(err, "unable to write default configuration")
	}
	return nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for nvdis.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Color palette used for listings: none or solarized.
# theme: solarized

# When to color the output: auto (only on a terminal), always or never.
# color: auto

# Per style color overrides, as ANSI SGR parameters. Styles are offset,
# control-active, control-inactive, predicate, opcode, register,
# special-register, immediate, constant, symbol, error and function.
colors:
  # opcode: "35"

# Prompt of 'nvdis repl'.
# prompt: "(nvdis) "

# Number of decoded functions kept in memory.
# cache-size: 128

# Reference disassembler used by 'nvdis verify --cuobjdump'.
# cuobjdump: /usr/local/cuda/bin/cuobjdump -arch sm_75
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
