package backend

import (
	"fmt"

	"expensa/internal/config"
)

// FromAppConfig converts the application config to mirror config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := MirrorType(appConfig.MirrorBackend)
	if t == "" {
		t = MirrorNone
	}
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid mirror backend in config: %s", appConfig.MirrorBackend)
	}

	return Config{
		Type:                     t,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the mirror configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid mirror type: %s", c.Type)
	}

	if c.Type == MirrorSheets {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets mirror")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for sheets mirror")
		}
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("either GoogleServiceAccountFile or GoogleServiceAccountJSON must be provided for sheets mirror")
		}
	}

	return nil
}

// GetMirrorTypes returns all valid mirror types
func GetMirrorTypes() []MirrorType {
	return []MirrorType{MirrorNone, MirrorMemory, MirrorSheets}
}

// GetMirrorTypeStrings returns all valid mirror type strings
func GetMirrorTypeStrings() []string {
	types := GetMirrorTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
