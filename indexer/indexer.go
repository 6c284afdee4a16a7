// Package indexer persists committed ledger events into a SQL store so
// campaign histories can be queried and exported after the in-memory event
// backlog has rolled over.
package indexer

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"raisemoney/core/events"
	"raisemoney/core/types"
	"raisemoney/native/campaign"
)

const (
	// DefaultListLimit caps List when the caller does not ask for a size.
	DefaultListLimit = 100
	// MaxListLimit bounds a single List call.
	MaxListLimit = 1000
	// DefaultBuffer is the subscription buffer used by Run.
	DefaultBuffer = 256
)

var errNilDB = errors.New("indexer: database not configured")

// Record is the queryable view of an indexed event.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	CampaignID uint64            `json:"campaignId,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Indexer stores bus envelopes as EventRow records.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	session string
	nowFn   func() time.Time

	mu   sync.Mutex
	last uint64
}

// Open connects to dsn. DSNs starting with postgres:// or postgresql:// use
// PostgreSQL; anything else is treated as a sqlite path or URI.
func Open(dsn string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	var dialector gorm.Dialector
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return db, nil
}

// New migrates the schema and returns an indexer writing to db.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errNilDB
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		db:      db,
		logger:  log.With(slog.String("component", "indexer")),
		session: uuid.NewString(),
		nowFn:   time.Now,
	}, nil
}

// SetNowFunc overrides the clock used to stamp recorded rows.
func (ix *Indexer) SetNowFunc(now func() time.Time) {
	if now == nil {
		ix.nowFn = time.Now
		return
	}
	ix.nowFn = now
}

// LastSequence returns the highest bus sequence recorded in this session.
func (ix *Indexer) LastSequence() uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.last
}

// Record stores a single envelope. Replayed envelopes are ignored.
func (ix *Indexer) Record(ctx context.Context, env events.Envelope) error {
	if env.Event == nil {
		return nil
	}
	row, err := ix.rowFor(env)
	if err != nil {
		return err
	}
	err = ix.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("indexer: insert: %w", err)
	}
	ix.mu.Lock()
	if env.Sequence > ix.last {
		ix.last = env.Sequence
	}
	ix.mu.Unlock()
	return nil
}

func (ix *Indexer) rowFor(env events.Envelope) (*EventRow, error) {
	attrs, err := json.Marshal(env.Event.Attributes)
	if err != nil {
		return nil, fmt.Errorf("indexer: encode attributes: %w", err)
	}
	var campaignID uint64
	if raw := env.Event.Attr(campaign.AttributeCampaignID); raw != "" {
		campaignID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("indexer: campaign id %q: %w", raw, err)
		}
	}
	return &EventRow{
		Session:    ix.session,
		Sequence:   env.Sequence,
		CampaignID: campaignID,
		Type:       env.Event.Type,
		Attributes: string(attrs),
		Digest:     digest(ix.session, env.Sequence, env.Event),
		RecordedAt: ix.nowFn().UTC(),
	}, nil
}

// digest identifies an envelope within a session. It hashes the session id,
// the sequence number and the attributes in key order.
func digest(session string, sequence uint64, evt *types.Event) string {
	var buf bytes.Buffer
	buf.WriteString(session)
	buf.WriteByte(0)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	buf.Write(seq[:])
	buf.WriteString(evt.Type)
	for _, key := range evt.SortedKeys() {
		buf.WriteByte(0)
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(evt.Attributes[key])
	}
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// Run subscribes to bus and records events until ctx is cancelled. When the
// subscription falls behind it resubscribes from the last recorded sequence
// so the bus backlog can fill the gap.
func (ix *Indexer) Run(ctx context.Context, bus *events.Bus, buffer int) error {
	if bus == nil {
		return fmt.Errorf("indexer: event bus required")
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	for {
		resubscribe, err := ix.consume(ctx, bus, buffer)
		if err != nil || !resubscribe {
			return err
		}
	}
}

func (ix *Indexer) consume(ctx context.Context, bus *events.Bus, buffer int) (bool, error) {
	cursor := ix.LastSequence()
	backlog, live, cancel := bus.Subscribe(cursor, buffer)
	defer cancel()

	expected := cursor + 1
	handle := func(env events.Envelope) error {
		if env.Sequence < expected {
			return nil
		}
		if env.Sequence > expected && cursor > 0 {
			ix.logger.Warn("event gap detected",
				slog.Uint64("expected", expected),
				slog.Uint64("received", env.Sequence))
		}
		if err := ix.Record(ctx, env); err != nil {
			return err
		}
		expected = env.Sequence + 1
		return nil
	}
	for _, env := range backlog {
		if err := handle(env); err != nil {
			return false, err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case env, ok := <-live:
			if !ok {
				return false, nil
			}
			if env.Sequence > expected {
				// Missed deliveries are still in the bus backlog.
				return true, nil
			}
			if err := handle(env); err != nil {
				return false, err
			}
		}
	}
}

// List returns the most recent events, oldest first. A zero campaignID lists
// events of every campaign and of the token ledger.
func (ix *Indexer) List(ctx context.Context, campaignID uint64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query := ix.db.WithContext(ctx).Model(&EventRow{})
	if campaignID != 0 {
		query = query.Where("campaign_id = ?", campaignID)
	}
	var rows []EventRow
	if err := query.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (row EventRow) record() (Record, error) {
	attrs := map[string]string{}
	if row.Attributes != "" {
		if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
			return Record{}, fmt.Errorf("indexer: decode attributes of row %d: %w", row.ID, err)
		}
	}
	return Record{
		Sequence:   row.Sequence,
		CampaignID: row.CampaignID,
		Type:       row.Type,
		Attributes: attrs,
		Digest:     row.Digest,
		RecordedAt: row.RecordedAt,
	}, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
