// Package msgdb provides the embedded message store: an append-oriented,
// conversation-partitioned log on BadgerDB. Message ids are assigned from a
// single persisted counter and are strictly increasing across the whole
// store; a partition (DM pair or group) owns an index of the ids that belong
// to it, so history pagination is a contiguous prefix scan.
package msgdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key layout. Numeric components are zero-padded to fixed width so that
// lexicographic key order equals numeric mid order within a prefix.
//
//	seq                          last assigned mid (uint64 big-endian)
//	m:{mid}                      payload bytes
//	d:{lo}:{hi}:{mid}            DM partition index, (lo,hi) the sorted pair
//	g:{gid}:{mid}                group partition index
//	u:{uid}:{mid}                per-user feed index
const (
	seqKey      = "seq"
	msgPrefix   = "m:"
	dmPrefix    = "d:"
	groupPrefix = "g:"
	userPrefix  = "u:"
	midWidth    = 20
)

// ErrInvalidData marks a stored record that cannot be interpreted. Range
// reads never return it; they skip the record. It is surfaced only by direct
// accessors with no way to skip.
var ErrInvalidData = errors.New("msgdb: invalid data")

// Entry is one stored message: the store-assigned id plus the opaque payload
// exactly as given to the send call.
type Entry struct {
	Mid     int64
	Payload []byte
}

// Store owns the embedded log. All operations serialize behind one mutex:
// appends need it for unambiguous id order, and reads take it too so a
// single handle can be shared freely across request goroutines.
type Store struct {
	mu sync.Mutex
	db *badger.DB
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("msgdb: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already opened badger instance. The caller keeps ownership of
// the db lifecycle.
func New(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SendToDM appends payload to the conversation between from and to and
// returns the new mid. The pair is canonicalized, so (from,to) and (to,from)
// address the same partition. The append is atomic: on error nothing is
// visible.
func (s *Store) SendToDM(from, to int64, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := sortPair(from, to)
	var mid int64
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		mid, err = s.nextMid(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(mid), payload); err != nil {
			return err
		}
		if err := txn.Set(dmKey(lo, hi, mid), nil); err != nil {
			return err
		}
		if err := txn.Set(userKey(from, mid), nil); err != nil {
			return err
		}
		return txn.Set(userKey(to, mid), nil)
	})
	if err != nil {
		return 0, fmt.Errorf("msgdb: send dm: %w", err)
	}
	return mid, nil
}

// SendToGroup appends payload to the group's partition once and records a
// feed entry for every member passed in. The member list is the caller's
// snapshot at send time; the store does not verify it.
func (s *Store) SendToGroup(gid int64, members []int64, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mid int64
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		mid, err = s.nextMid(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey(mid), payload); err != nil {
			return err
		}
		if err := txn.Set(groupKey(gid, mid), nil); err != nil {
			return err
		}
		for _, uid := range members {
			if err := txn.Set(userKey(uid, mid), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("msgdb: send group: %w", err)
	}
	return mid, nil
}

// FetchDMMessagesBefore returns up to limit entries of the (a,b) conversation
// with mid < before, newest first. A nil before means "from the newest". The
// oldest returned mid is the next page's cursor.
func (s *Store) FetchDMMessagesBefore(a, b int64, before *int64, limit int) ([]Entry, error) {
	lo, hi := sortPair(a, b)
	prefix := []byte(fmt.Sprintf("%s%020d:%020d:", dmPrefix, lo, hi))
	return s.scanBefore(prefix, before, limit)
}

// FetchGroupMessagesBefore is FetchDMMessagesBefore scoped to a group.
func (s *Store) FetchGroupMessagesBefore(gid int64, before *int64, limit int) ([]Entry, error) {
	prefix := []byte(fmt.Sprintf("%s%020d:", groupPrefix, gid))
	return s.scanBefore(prefix, before, limit)
}

// FetchUserMessagesAfter returns up to limit entries addressed to or sent by
// uid with mid > after, oldest first. Used for catch-up after a reconnect.
func (s *Store) FetchUserMessagesAfter(uid int64, after *int64, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	prefix := []byte(fmt.Sprintf("%s%020d:", userPrefix, uid))
	seek := prefix
	if after != nil {
		if *after >= int64(^uint64(0)>>1) {
			return nil, nil
		}
		seek = appendMid(prefix, *after+1)
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			mid, err := midFromKey(it.Item().Key(), len(prefix))
			if err != nil {
				continue
			}
			payload, err := getPayload(txn, mid)
			if err != nil {
				return err
			}
			if payload == nil {
				continue
			}
			out = append(out, Entry{Mid: mid, Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("msgdb: fetch user feed: %w", err)
	}
	return out, nil
}

// Get returns the payload stored under mid, or nil when the id is unknown.
func (s *Store) Get(mid int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		payload, err = getPayload(txn, mid)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("msgdb: get %d: %w", mid, err)
	}
	return payload, nil
}

// CountDMMessagesAfter counts entries of the (a,b) conversation with
// mid > after. An empty partition or an unknown after yields 0, not an error.
func (s *Store) CountDMMessagesAfter(a, b, after int64) (int, error) {
	lo, hi := sortPair(a, b)
	prefix := []byte(fmt.Sprintf("%s%020d:%020d:", dmPrefix, lo, hi))
	return s.countAfter(prefix, after)
}

// CountGroupMessagesAfter is CountDMMessagesAfter scoped to a group.
func (s *Store) CountGroupMessagesAfter(gid, after int64) (int, error) {
	prefix := []byte(fmt.Sprintf("%s%020d:", groupPrefix, gid))
	return s.countAfter(prefix, after)
}

func (s *Store) scanBefore(prefix []byte, before *int64, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	// Reverse Seek lands on the greatest key <= target; 0xff never occurs in
	// key text, so prefix+0xff addresses the partition's top.
	seek := append(append([]byte{}, prefix...), 0xff)
	if before != nil {
		if *before <= 1 {
			return nil, nil
		}
		seek = appendMid(prefix, *before-1)
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			mid, err := midFromKey(it.Item().Key(), len(prefix))
			if err != nil {
				continue
			}
			payload, err := getPayload(txn, mid)
			if err != nil {
				return err
			}
			if payload == nil {
				continue
			}
			out = append(out, Entry{Mid: mid, Payload: payload})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("msgdb: fetch history: %w", err)
	}
	return out, nil
}

func (s *Store) countAfter(prefix []byte, after int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if after >= int64(^uint64(0)>>1) {
		return 0, nil
	}
	seek := appendMid(prefix, after+1)

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("msgdb: count after: %w", err)
	}
	return count, nil
}

// nextMid bumps the persisted counter inside txn and returns the new mid.
// The first assigned mid is 1.
func (s *Store) nextMid(txn *badger.Txn) (int64, error) {
	var last uint64
	item, err := txn.Get([]byte(seqKey))
	switch {
	case err == nil:
		err = item.Value(func(v []byte) error {
			last = bytesToUint64(v)
			return nil
		})
		if err != nil {
			return 0, err
		}
	case errors.Is(err, badger.ErrKeyNotFound):
		last = 0
	default:
		return 0, err
	}
	mid := last + 1
	if err := txn.Set([]byte(seqKey), uint64ToBytes(mid)); err != nil {
		return 0, err
	}
	return int64(mid), nil
}

// getPayload resolves an index hit to its payload bytes. A missing message
// record (e.g. after external compaction) reads as nil so range scans can
// skip it, matching the per-record skip policy for undecodable data.
func getPayload(txn *badger.Txn, mid int64) ([]byte, error) {
	item, err := txn.Get(msgKey(mid))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func sortPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func msgKey(mid int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", msgPrefix, mid))
}

func dmKey(lo, hi, mid int64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d:%020d", dmPrefix, lo, hi, mid))
}

func groupKey(gid, mid int64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", groupPrefix, gid, mid))
}

func userKey(uid, mid int64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", userPrefix, uid, mid))
}

func appendMid(prefix []byte, mid int64) []byte {
	return append(append([]byte{}, prefix...), []byte(fmt.Sprintf("%020d", mid))...)
}

// midFromKey parses the trailing fixed-width mid out of an index key.
func midFromKey(key []byte, prefixLen int) (int64, error) {
	if len(key) != prefixLen+midWidth {
		return 0, ErrInvalidData
	}
	var mid int64
	if _, err := fmt.Sscanf(string(key[prefixLen:]), "%d", &mid); err != nil {
		return 0, ErrInvalidData
	}
	return mid, nil
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func bytesToUint64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
