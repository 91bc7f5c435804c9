package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type programsFile struct {
	Programs map[string]Program `toml:"programs"`
}

// ProgramsPath returns the programs file path of the repository at repoPath.
func ProgramsPath(repoPath string) string {
	return filepath.Join(repoPath, DevservicesDirName, ProgramsFileName)
}

// LoadPrograms reads devservices/programs.toml. A missing file yields no programs.
func LoadPrograms(repoPath string) (map[string]Program, error) {
	path := ProgramsPath(repoPath)
	var f programsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Program{}, nil
		}
		return nil, fmt.Errorf("%w: error parsing programs file %s: %w", ErrConfigParse, path, err)
	}
	if f.Programs == nil {
		f.Programs = map[string]Program{}
	}
	for name, p := range f.Programs {
		if p.Command == "" {
			return nil, validationError("program '%s' in %s has no command", name, path)
		}
	}
	return f.Programs, nil
}
