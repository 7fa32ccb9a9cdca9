package manifest

import (
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
	"github.com/Faultbox/vibble/pkg/jsonutil"
)

// Transaction is an open-ended draft of one asset or map entry. Save
// flushes the draft and keeps it open; Finalize commits and closes it.
// Concurrent transactions on the same entry are not supported.
type Transaction struct {
	store   *Store
	section string
	key     string
	draft   jsonutil.Object
	closed  bool
}

// EditSession is a short-lived draft with a single commit.
type EditSession struct {
	tx *Transaction
}

// BeginAssetTransaction opens a draft for the named asset.
func (s *Store) BeginAssetTransaction(name string, createIfMissing bool) (*Transaction, error) {
	return s.begin(SectionAssets, name, createIfMissing)
}

// BeginMapTransaction opens a draft for the map with the given id.
func (s *Store) BeginMapTransaction(id string, createIfMissing bool) (*Transaction, error) {
	return s.begin(SectionMaps, id, createIfMissing)
}

// BeginAssetEdit opens a single-commit edit of the named asset.
func (s *Store) BeginAssetEdit(name string, createIfMissing bool) (*EditSession, error) {
	tx, err := s.begin(SectionAssets, name, createIfMissing)
	if err != nil {
		return nil, err
	}
	return &EditSession{tx: tx}, nil
}

func (s *Store) begin(section, name string, create bool) (*Transaction, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	key := name
	if section == SectionAssets {
		if resolved, ok := s.Resolve(name); ok {
			key = resolved
		}
	}

	s.mu.RLock()
	entry, ok := s.view(section)[key].(map[string]any)
	var draft jsonutil.Object
	if ok {
		draft = jsonutil.CloneObject(entry)
	}
	s.mu.RUnlock()

	switch {
	case ok:
	case create:
		draft = jsonutil.Object{}
		if section == SectionAssets {
			draft["asset_name"] = key
		}
	default:
		return nil, ErrNotFound
	}
	return &Transaction{store: s, section: section, key: key, draft: draft}, nil
}

// Key returns the manifest key the draft will be written under.
func (t *Transaction) Key() string { return t.key }

// Draft returns the mutable draft entry.
func (t *Transaction) Draft() jsonutil.Object { return t.draft }

// Closed reports whether the transaction was finalized or cancelled.
func (t *Transaction) Closed() bool { return t.closed }

// Save writes the draft to the manifest and keeps the transaction open.
// It returns false when the transaction is closed or the write failed; the
// draft is preserved for retry.
func (t *Transaction) Save() bool {
	if t.closed {
		return false
	}
	return t.commit()
}

// Finalize commits the draft and closes the transaction on success.
func (t *Transaction) Finalize() bool {
	if t.closed {
		return false
	}
	if !t.commit() {
		return false
	}
	t.closed = true
	return true
}

// Cancel discards the draft.
func (t *Transaction) Cancel() {
	t.closed = true
	t.draft = nil
}

func (t *Transaction) commit() bool {
	s := t.store
	if t.section == SectionAssets {
		t.draft["asset_name"] = t.key
	}

	s.mu.Lock()
	sec := s.section(t.section)
	prev, existed := sec[t.key]
	sec[t.key] = jsonutil.CloneObject(t.draft)
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		s.mu.Lock()
		sec = s.section(t.section)
		if existed {
			sec[t.key] = prev
		} else {
			delete(sec, t.key)
		}
		s.mu.Unlock()
		logger.Error("manifest commit failed",
			zap.String("section", t.section), zap.String("key", t.key), zap.Error(err))
		return false
	}
	return true
}

// Key returns the asset name being edited.
func (e *EditSession) Key() string { return e.tx.key }

// Draft returns the mutable draft entry.
func (e *EditSession) Draft() jsonutil.Object { return e.tx.draft }

// Commit writes the draft and ends the session.
func (e *EditSession) Commit() bool { return e.tx.Finalize() }

// Cancel discards the draft.
func (e *EditSession) Cancel() { e.tx.Cancel() }
