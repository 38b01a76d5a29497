package infra

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/fileforgehq/fileforge/internal/ports"
)

type fileRepo struct {
	db  *sql.DB
	ttl time.Duration
}

func NewFileRepo(db *sql.DB, ttl time.Duration) ports.FileRepo {
	return &fileRepo{db: db, ttl: ttl}
}

func (r *fileRepo) CreateUploaded(ctx context.Context, f *ports.UploadedFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploaded_files
			(id, original_name, stored_key, file_type, file_size, uploaded_at, job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.OriginalName, f.StoredKey, f.FileType, f.FileSize, f.UploadedAt, f.JobID)
	return err
}

func (r *fileRepo) CreateConverted(ctx context.Context, f *ports.ConvertedFile) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	if f.ExpiresAt.IsZero() {
		f.ExpiresAt = f.CreatedAt.Add(r.ttl)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO converted_files
			(id, job_id, output_key, output_format, original_filename,
			 file_size, created_at, expires_at, download_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
	`, f.ID, f.JobID, f.OutputKey, f.OutputFormat, f.OriginalFilename,
		f.FileSize, f.CreatedAt, f.ExpiresAt)
	return err
}

func (r *fileRepo) GetConverted(ctx context.Context, id uuid.UUID) (*ports.ConvertedFile, error) {
	var f ports.ConvertedFile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, output_key, output_format, original_filename,
		       file_size, created_at, expires_at, download_count, last_downloaded_at
		FROM converted_files
		WHERE id = $1
	`, id).Scan(
		&f.ID,
		&f.JobID,
		&f.OutputKey,
		&f.OutputFormat,
		&f.OriginalFilename,
		&f.FileSize,
		&f.CreatedAt,
		&f.ExpiresAt,
		&f.DownloadCount,
		&f.LastDownloadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) GetConvertedByJob(ctx context.Context, jobID uuid.UUID) (*ports.ConvertedFile, error) {
	var f ports.ConvertedFile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, output_key, output_format, original_filename,
		       file_size, created_at, expires_at, download_count, last_downloaded_at
		FROM converted_files
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, jobID).Scan(
		&f.ID,
		&f.JobID,
		&f.OutputKey,
		&f.OutputFormat,
		&f.OriginalFilename,
		&f.FileSize,
		&f.CreatedAt,
		&f.ExpiresAt,
		&f.DownloadCount,
		&f.LastDownloadedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) RecordDownload(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE converted_files
		SET download_count = download_count + 1, last_downloaded_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *fileRepo) ListExpired(ctx context.Context, now time.Time) ([]*ports.ConvertedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, output_key, output_format, original_filename,
		       file_size, created_at, expires_at, download_count, last_downloaded_at
		FROM converted_files
		WHERE expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*ports.ConvertedFile
	for rows.Next() {
		var f ports.ConvertedFile
		if err := rows.Scan(
			&f.ID,
			&f.JobID,
			&f.OutputKey,
			&f.OutputFormat,
			&f.OriginalFilename,
			&f.FileSize,
			&f.CreatedAt,
			&f.ExpiresAt,
			&f.DownloadCount,
			&f.LastDownloadedAt,
		); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func (r *fileRepo) DeleteConverted(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM converted_files WHERE id = $1`, id)
	return err
}
