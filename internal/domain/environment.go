package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// DefaultSavePath is used when an experiment does not name one.
const DefaultSavePath = "ember_output"

// Environment is the shared read-mostly context constructed once before any
// submission and passed unchanged to every stage.
type Environment struct {
	SavePath string
	Debug    bool
}

// NewEnvironment builds an environment, applying the default save path.
func NewEnvironment(savePath string, debug bool) Environment {
	savePath = strings.TrimSpace(savePath)
	if savePath == "" {
		savePath = DefaultSavePath
	}
	return Environment{SavePath: savePath, Debug: debug}
}

// StageDir returns the output directory for one stage of a run.
func (e Environment) StageDir(runID, stage string) string {
	return filepath.Join(e.SavePath, runID, stage)
}

func (e Environment) Validate() error {
	if strings.TrimSpace(e.SavePath) == "" {
		return errors.New("save path is required")
	}
	return nil
}
