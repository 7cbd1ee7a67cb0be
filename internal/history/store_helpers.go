package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id              string
		topic           string
		templateID      sql.NullString
		slideCount      int
		format          sql.NullString
		resolution      sql.NullString
		quality         sql.NullString
		statusStr       string
		stage           sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		artifactURL     sql.NullString
		durationSeconds sql.NullFloat64
		sizeBytes       sql.NullInt64
		provenance      sql.NullString
		narrationGaps   sql.NullInt64
		errorMessage    sql.NullString
		errorCategory   sql.NullString
		createdRaw      string
		updatedRaw      string
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&topic,
		&templateID,
		&slideCount,
		&format,
		&resolution,
		&quality,
		&statusStr,
		&stage,
		&progressPercent,
		&progressMessage,
		&artifactURL,
		&durationSeconds,
		&sizeBytes,
		&provenance,
		&narrationGaps,
		&errorMessage,
		&errorCategory,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:              id,
		Topic:           topic,
		TemplateID:      templateID.String,
		SlideCount:      slideCount,
		Format:          format.String,
		Resolution:      resolution.String,
		Quality:         quality.String,
		Status:          Status(statusStr),
		Stage:           stage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ArtifactURL:     artifactURL.String,
		DurationSeconds: durationSeconds.Float64,
		SizeBytes:       sizeBytes.Int64,
		Provenance:      provenance.String,
		NarrationGaps:   int(narrationGaps.Int64),
		ErrorMessage:    errorMessage.String,
		ErrorCategory:   errorCategory.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
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
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
