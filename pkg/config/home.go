package config

import (
	"os"
	"path/filepath"
)

const envWorkspace = "MOBILE_E2E_WORKSPACE"

// FindWorkspace returns the directory holding the suite's config.yaml.
//
// Resolution order:
//  1. $MOBILE_E2E_WORKSPACE environment variable
//  2. The nearest directory at or above start containing config.yaml or config.yml
//  3. start itself
func FindWorkspace(start string) string {
	if env := os.Getenv(envWorkspace); env != "" {
		return env
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		for _, name := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return start
}

// EnvFiles returns the .env files read for a workspace, most specific first:
// .env.<environment> then .env. godotenv keeps the first value it sees.
func EnvFiles(workspace, environment string) []string {
	files := []string{}
	if environment != "" {
		files = append(files, filepath.Join(workspace, ".env."+environment))
	}
	return append(files, filepath.Join(workspace, ".env"))
}
