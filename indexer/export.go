package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 500

type parquetRow struct {
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	CampaignID int64  `parquet:"name=campaign_id, type=INT64"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	Digest     string `parquet:"name=digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecordedAt string `parquet:"name=recorded_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every indexed event of campaignID (all events when
// zero) to path and returns the number of rows written.
func (ix *Indexer) ExportParquet(ctx context.Context, path string, campaignID uint64) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	var after uint64
	for {
		query := ix.db.WithContext(ctx).Model(&EventRow{}).Where("id > ?", after)
		if campaignID != 0 {
			query = query.Where("campaign_id = ?", campaignID)
		}
		var rows []EventRow
		if err := query.Order("id ASC").Limit(exportPageSize).Find(&rows).Error; err != nil {
			pw.WriteStop()
			file.Close()
			return written, fmt.Errorf("indexer: export query: %w", err)
		}
		for _, row := range rows {
			pr := &parquetRow{
				Sequence:   int64(row.Sequence),
				CampaignID: int64(row.CampaignID),
				Type:       row.Type,
				Attributes: row.Attributes,
				Digest:     row.Digest,
				RecordedAt: row.RecordedAt.UTC().Format(time.RFC3339),
			}
			if err := pw.Write(pr); err != nil {
				pw.WriteStop()
				file.Close()
				return written, fmt.Errorf("indexer: write parquet row: %w", err)
			}
			written++
			after = row.ID
		}
		if len(rows) < exportPageSize {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("indexer: finalize parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("indexer: close parquet: %w", err)
	}
	ix.logger.Info("events exported",
		slog.String("path", path),
		slog.Uint64("campaignId", campaignID),
		slog.Int("rows", written))
	return written, nil
}
