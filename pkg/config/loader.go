package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "GLVPLAY"
	FileName  = "config.yaml"
)

var ErrNotFound = errors.New("config file not found")

// Locate finds the configuration file.
// The path param is either a file or a directory with config.yaml inside.
// An empty path searches the working dir, ./configs and ~/.glvplay.
func Locate(path string) (string, error) {
	var candidates []string
	if path != "" {
		if st, err := os.Stat(path); err == nil && !st.IsDir() {
			return filepath.Abs(path)
		}
		candidates = append(candidates, path)
	} else {
		candidates = append(candidates, ".", "configs")
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".glvplay"))
		}
	}
	for _, dir := range candidates {
		file := filepath.Join(dir, FileName)
		if _, err := os.Stat(file); err == nil {
			return filepath.Abs(file)
		}
	}
	return "", ErrNotFound
}

// LoadConfig loads a configuration file into the given struct.
// Reads and puts environment variables with the prefix GLVPLAY_.
// Params from the config should be in uppercase separated with _.
// Returns the path of the loaded file or an empty string
// when only the defaults and the environment were used.
func LoadConfig(config any, path string) (string, error) {
	file, err := Locate(path)
	if errors.Is(err, ErrNotFound) {
		if path != "" {
			return "", err
		}
		return "", LoadConfigEnv(config)
	}
	if err != nil {
		return "", err
	}
	err = fig.Load(config,
		fig.File(filepath.Base(file)),
		fig.Dirs(filepath.Dir(file)),
		fig.UseEnv(EnvPrefix),
	)
	return file, err
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}
