// Package history is the GPS History Log: a bounded FIFO of recent fixes
// plus the cached last fix used as a fallback when acquisition times out.
package history

import (
	"encoding/json"
	"sync"

	"biketrack-go/errcode"
	"biketrack-go/storage/nvs"
	"biketrack-go/types"
	"biketrack-go/x/logx"
)

const (
	Capacity = 50

	NamespaceLog = "gps-log"
	NamespaceFix = "gps-data"
	keyRing      = "ring"
	keyFix       = "fix"
)

// Log is safe for concurrent use. Entries are only ever appended whole;
// when full the oldest entry is evicted.
type Log struct {
	mu    sync.Mutex
	buf   [Capacity]types.HistoryEntry
	head  int // index of the oldest entry
	count int
	last  types.Fix

	nv  nvs.Store
	log logx.Logger
}

// New returns an empty log. nv may be nil for a RAM-only log.
func New(nv nvs.Store, log logx.Logger) *Log {
	if log == nil {
		log = logx.Nop()
	}
	return &Log{nv: nv, log: log}
}

// Add appends an entry, evicting the oldest when full, and persists.
func (l *Log) Add(e types.HistoryEntry) {
	l.mu.Lock()
	l.addLocked(e)
	snap := l.entriesLocked()
	l.mu.Unlock()
	l.persist(snap)
}

func (l *Log) addLocked(e types.HistoryEntry) {
	if l.count < Capacity {
		l.buf[(l.head+l.count)%Capacity] = e
		l.count++
		return
	}
	l.buf[l.head] = e
	l.head = (l.head + 1) % Capacity
}

// Len is the number of stored entries (never more than Capacity).
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Entries returns a copy, oldest first.
func (l *Log) Entries() []types.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entriesLocked()
}

func (l *Log) entriesLocked() []types.HistoryEntry {
	out := make([]types.HistoryEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.buf[(l.head+i)%Capacity]
	}
	return out
}

// Latest returns the newest entry.
func (l *Log) Latest() (types.HistoryEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return types.HistoryEntry{}, false
	}
	return l.buf[(l.head+l.count-1)%Capacity], true
}

// Clear empties the log (the cached fix is kept).
func (l *Log) Clear() {
	l.mu.Lock()
	l.head, l.count = 0, 0
	l.mu.Unlock()
	if l.nv != nil {
		if err := l.nv.Clear(NamespaceLog); err != nil {
			l.log.Warn("history clear not persisted", "err", err)
		}
	}
}

// SetLastFix caches a valid fix for later fallback.
func (l *Log) SetLastFix(f types.Fix) {
	if !f.Valid {
		return
	}
	l.mu.Lock()
	l.last = f
	l.mu.Unlock()
	if l.nv == nil {
		return
	}
	raw, err := json.Marshal(f)
	if err == nil {
		err = l.nv.Put(NamespaceFix, keyFix, string(raw))
	}
	if err != nil {
		l.log.Warn("cached fix not persisted", "err", err)
	}
}

// LastFix returns the cached fix; ok is false if none was ever obtained.
func (l *Log) LastFix() (types.Fix, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.last.Valid
}

// Restore reloads the ring and cached fix from flash.
func (l *Log) Restore() error {
	if l.nv == nil {
		return nil
	}
	var entries []types.HistoryEntry
	if raw, ok := l.nv.Get(NamespaceLog, keyRing); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return errcode.Wrap(errcode.CorruptState, "history.restore", err)
		}
	}
	var fix types.Fix
	if raw, ok := l.nv.Get(NamespaceFix, keyFix); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &fix); err != nil {
			return errcode.Wrap(errcode.CorruptState, "history.restore", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.head, l.count = 0, 0
	if len(entries) > Capacity {
		entries = entries[len(entries)-Capacity:]
	}
	for _, e := range entries {
		l.addLocked(e)
	}
	if fix.Valid {
		l.last = fix
	}
	return nil
}

func (l *Log) persist(snap []types.HistoryEntry) {
	if l.nv == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err == nil {
		err = l.nv.Put(NamespaceLog, keyRing, string(raw))
	}
	if err != nil {
		l.log.Warn("history not persisted", "err", err)
	}
}
