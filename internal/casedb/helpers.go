package casedb

import (
	"database/sql"
	"errors"
	"time"

	"forager/internal/evidence"
)

const itemColumns = "id, name, datasource_kind, datasource_path, created_at, run_id, run_status, run_started_at, run_finished_at, run_warnings, run_error"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*ItemInfo, error) {
	var (
		id             int64
		name           string
		dsKind         sql.NullString
		dsPath         sql.NullString
		createdRaw     sql.NullString
		runID          sql.NullString
		runStatus      sql.NullString
		runStartedRaw  sql.NullString
		runFinishedRaw sql.NullString
		runWarnings    sql.NullInt64
		runError       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&dsKind,
		&dsPath,
		&createdRaw,
		&runID,
		&runStatus,
		&runStartedRaw,
		&runFinishedRaw,
		&runWarnings,
		&runError,
	); err != nil {
		return nil, err
	}

	info := &ItemInfo{
		ID:   id,
		Name: name,
		Datasource: evidence.Datasource{
			Kind: evidence.DatasourceKind(dsKind.String),
			Path: dsPath.String,
		},
		Run: evidence.RunMarker{
			ID:       runID.String,
			Status:   evidence.RunStatus(runStatus.String),
			Warnings: int(runWarnings.Int64),
			Error:    runError.String,
		},
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		info.CreatedAt = created
	}
	if started, err := parseTimeString(runStartedRaw.String); err == nil {
		info.Run.StartedAt = started
	}
	if finished, err := parseTimeString(runFinishedRaw.String); err == nil {
		info.Run.FinishedAt = finished
	}
	return info, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
