package datasource

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"forager/internal/evidence"
	"forager/internal/services"
)

// reportNames are the file names looked for when a report datasource points
// at a directory.
var reportNames = []string{"report.xml", "Report.xml"}

// ResolveReport returns the report file of a report datasource. A directory
// path resolves to the report.xml inside it.
func ResolveReport(ds evidence.Datasource) (string, error) {
	if ds.Kind != evidence.DatasourceReport {
		return "", services.Wrap(services.ErrDatasource, "report", "resolve", fmt.Sprintf("datasource kind %q is not a report", ds.Kind), nil)
	}
	info, err := os.Stat(ds.Path)
	if err != nil {
		return "", services.Wrap(services.ErrDatasource, "report", "resolve", ds.Path, err)
	}
	if !info.IsDir() {
		return ds.Path, nil
	}
	for _, name := range reportNames {
		candidate := filepath.Join(ds.Path, name)
		if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrDatasource, "report", "resolve", fmt.Sprintf("no report.xml in %s", ds.Path), nil)
}

// OpenReport opens the report file of ds and returns it with its size.
func OpenReport(ds evidence.Datasource) (io.ReadCloser, int64, error) {
	path, err := ResolveReport(ds)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrDatasource, "report", "open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, services.Wrap(services.ErrDatasource, "report", "stat", path, err)
	}
	return f, info.Size(), nil
}
