package audit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/paperflow/internal/contracts"
)

type stageFile struct {
	Stages []contracts.Stage `yaml:"stages"`
}

// LoadStages reads an ordered stage map from YAML:
//
//	stages:
//	  - name: s00_raw
//	    path: data_work/data_raw.parquet
func LoadStages(path string) ([]contracts.Stage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stages file: %w", err)
	}
	defer f.Close()

	var sf stageFile
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&sf); err != nil {
		return nil, fmt.Errorf("failed to decode stages file: %w", err)
	}

	if len(sf.Stages) == 0 {
		return nil, fmt.Errorf("stages file %s defines no stages", path)
	}

	if err := contracts.ValidateStages(sf.Stages); err != nil {
		return nil, fmt.Errorf("stages file %s: %w", path, err)
	}

	return sf.Stages, nil
}
