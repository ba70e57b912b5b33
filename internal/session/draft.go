// Package session keeps per-browser answer drafts for paginated surveys
// until the final step is submitted.
package session

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// CookieName is the browser cookie that identifies a draft session.
const CookieName = "survey_session"

// SeedField holds the shuffle seed given to a session that opened a survey
// without one in its URL. It never collides with question_<q>_<g> fields.
const SeedField = "_seed"

// Answers returns the draft without SeedField.
func Answers(draft url.Values) url.Values {
	out := url.Values{}
	for name, vals := range draft {
		if name != SeedField {
			out[name] = vals
		}
	}
	return out
}

// Key addresses one draft: a browser session answering one survey.
type Key struct {
	Session  string
	SurveyID int64
}

func (k Key) String() string {
	return k.Session + ":" + strconv.FormatInt(k.SurveyID, 10)
}

// DraftStore holds submitted step values between requests.
type DraftStore interface {
	// Load returns the draft, or empty values when there is none.
	Load(ctx context.Context, key Key) (url.Values, error)
	// Merge overwrites the given fields and returns the merged draft. A field
	// with no values is removed.
	Merge(ctx context.Context, key Key, values url.Values) (url.Values, error)
	Delete(ctx context.Context, key Key) error
}

func mergeValues(dst, src url.Values) url.Values {
	if dst == nil {
		dst = url.Values{}
	}
	for name, vals := range src {
		if len(vals) == 0 {
			delete(dst, name)
			continue
		}
		dst[name] = append([]string(nil), vals...)
	}
	return dst
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

type memoryDraft struct {
	values  url.Values
	expires time.Time
}

// MemoryDraftStore is a process-local DraftStore.
type MemoryDraftStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	drafts map[Key]*memoryDraft
}

func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{ttl: ttl, now: time.Now, drafts: map[Key]*memoryDraft{}}
}

func (s *MemoryDraftStore) Load(_ context.Context, key Key) (url.Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.live(key)
	if d == nil {
		return url.Values{}, nil
	}
	return cloneValues(d.values), nil
}

func (s *MemoryDraftStore) Merge(_ context.Context, key Key, values url.Values) (url.Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.live(key)
	if d == nil {
		d = &memoryDraft{values: url.Values{}}
		s.drafts[key] = d
	}
	d.values = mergeValues(d.values, values)
	if s.ttl > 0 {
		d.expires = s.now().Add(s.ttl)
	}
	return cloneValues(d.values), nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

// live returns the unexpired draft for key; caller holds mu.
func (s *MemoryDraftStore) live(key Key) *memoryDraft {
	d, ok := s.drafts[key]
	if !ok {
		return nil
	}
	if !d.expires.IsZero() && s.now().After(d.expires) {
		delete(s.drafts, key)
		return nil
	}
	return d
}
