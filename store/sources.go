package store

import (
	"github.com/teranos/concord/errors"
)

// DataSource is a registered producer of data the resolver can suggest for
// an intent. Registration is append-only; re-registering a source id
// supersedes earlier rows.
type DataSource struct {
	SourceID     string         `json:"source_id"`
	Description  string         `json:"description,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RegisterDataSource appends a data source registration record.
func (s *Store) RegisterDataSource(src DataSource) (int64, error) {
	if src.SourceID == "" {
		return 0, errors.Wrap(errors.ErrInvalidRequest, "data source id is required")
	}
	return s.Append(CategoryDataSource, src)
}

// DataSources returns the registered data sources, newest registration per
// source id. limit <= 0 means no limit; the limit applies after
// deduplication.
func (s *Store) DataSources(limit int) ([]DataSource, error) {
	records, err := s.QueryByCategory(CategoryDataSource, 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(records))
	var sources []DataSource
	for _, rec := range records {
		var src DataSource
		if err := rec.Decode(&src); err != nil {
			s.logger.Warnw("Skipping undecodable data source record",
				"record_id", rec.ID, "error", err)
			continue
		}
		if src.SourceID == "" || seen[src.SourceID] {
			continue
		}
		seen[src.SourceID] = true
		sources = append(sources, src)
		if limit > 0 && len(sources) == limit {
			break
		}
	}

	return sources, nil
}
