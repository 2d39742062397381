package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jingwu-01/Robotaxi-backend/src/settings"

	"go.uber.org/zap"
)

// OpenDataFile opens a file inside the data directory for reading
func OpenDataFile(dataDirectory, fileName string) (*os.File, error) {
	filePath := filepath.Join(dataDirectory, fileName)
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening data file %s: %w", fileName, err)
	}
	return file, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string, logger zap.SugaredLogger) bool {
	args := settings.GetSettings()

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			if args.Debug && args.Verbose {
				logger.Infof("File does not exist: %s\n", filename)
			}
			return false // File does not exist
		}

		logger.Infof("Error checking file %s for existence: %s\n", filename, err)
		return false // Some other error occurred
	}

	return !info.IsDir() // Return true if it's not a directory
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a half-written file.
// SUMO reads the additional files we generate, so partial writes would
// abort the whole launch.
func WriteFileAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing temp file %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error renaming %s to %s: %w", tmpName, filePath, err)
	}
	return nil
}
