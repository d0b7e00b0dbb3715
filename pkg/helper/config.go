package helper

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the system-wide configuration directory
const ConfigDirEnv = "VITRIN_CONFIG_DIR"

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to $VITRIN_CONFIG_DIR/{filename} or /etc/vitrin/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if local := lookupLocal(filename); local != "" {
		return local
	}

	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		dir = "/etc/vitrin"
	}
	return filepath.Join(dir, filename)
}

func lookupLocal(filename string) string {
	currentDir, err := os.Getwd()
	if err != nil || currentDir == "" {
		return ""
	}

	for _, candidate := range []string{
		filepath.Join(currentDir, filename),
		filepath.Join(currentDir, "configs", filename),
	} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if absPath, err := filepath.Abs(candidate); err == nil {
			return absPath
		}
	}
	return ""
}
