package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	extensionPattern     = regexp.MustCompile(`^[a-z0-9]{1,8}$`)
)

// BuildExportPath returns the archive key for one exported result set:
// <tenant>/exports/date=YYYY-MM-DD/<exportID>-<name>.<ext>
func BuildExportPath(tenantID, exportID, name, ext string, at time.Time) (string, error) {
	if err := validatePathComponent(tenantID, "tenant id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(exportID, "export id"); err != nil {
		return "", err
	}
	if err := validatePathComponent(name, "export name"); err != nil {
		return "", err
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !extensionPattern.MatchString(ext) {
		return "", fmt.Errorf("invalid extension: %q", ext)
	}

	ts := at.UTC()
	return path.Join(
		tenantID,
		"exports",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.%s", exportID, name, ext),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
