package txlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/cryptosim/internal/domain"
)

const (
	defaultJournalDir   = "./wal/ledger"
	journalSegmentLimit = 1000
	// replay needs the full history, so segments are never rotated away in practice
	journalMaxSegments = 1 << 20
	genesisKey         = "ledger_genesis"
	tradeKeyPrefix     = "ledger_trade_"
	resetKeyPrefix     = "ledger_reset_"
)

// WALStore is the durable ledger journal: a genesis record followed by one WAL record per trade or reset.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore opens (or creates) the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes event durably. The ledger only applies the event after Append succeeds.
func (s *WALStore) Append(event domain.LedgerEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	var key string
	switch event.Kind {
	case domain.LedgerEventGenesis:
		key = genesisKey
	case domain.LedgerEventTrade:
		if event.Transaction == nil {
			return fmt.Errorf("trade event without transaction")
		}
		key = fmt.Sprintf("%s%d", tradeKeyPrefix, event.Transaction.ID)
	case domain.LedgerEventReset:
		key = fmt.Sprintf("%s%d", resetKeyPrefix, event.NextID)
	default:
		return fmt.Errorf("unknown ledger event kind %q", event.Kind)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal ledger event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return errors.Wrapf(err, "write ledger event %s", key)
	}
	return nil
}

// Replay calls fn for every journaled event, oldest first.
func (s *WALStore) Replay(fn func(domain.LedgerEvent) error) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for msg := range s.wal.Iterator() {
		if !isLedgerKey(msg.Key) {
			continue
		}
		var event domain.LedgerEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return errors.Wrapf(err, "decode ledger event %s", msg.Key)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}

func isLedgerKey(key string) bool {
	return key == genesisKey || strings.HasPrefix(key, tradeKeyPrefix) || strings.HasPrefix(key, resetKeyPrefix)
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
