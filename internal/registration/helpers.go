package registration

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/qbic-pipeline/registration-pipeline/internal/pipeline"
)

func statTarget(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Join(pipeline.ErrIntervention, err)
	}
	return info, nil
}

func isValidationErr(err error) bool {
	return errors.Is(err, pipeline.ErrValidation)
}

func interventionsDir(workingDir string) string {
	return filepath.Join(workingDir, pipeline.InterventionsDirName)
}
