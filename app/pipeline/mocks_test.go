package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/feed"
)

var (
	_ database.PostRepository    = (*mockPostRepo)(nil)
	_ database.ChannelRepository = (*mockChannelRepo)(nil)
	_ database.SourceRepository  = (*mockSourceRepo)(nil)
	_ FeedSource                 = (*mockFetcher)(nil)
	_ Composer                   = mockComposer{}
	_ ChannelPublisher           = (*mockPublisher)(nil)
)

// mockPostRepo is an in-memory PostRepository used across pipeline tests.
// channels is optional; when set, NextDue honors the active-channel filter.
type mockPostRepo struct {
	posts    []database.Post
	nextID   int
	channels *mockChannelRepo
}

func (m *mockPostRepo) GetPost(id string) (*database.Post, error) {
	for i := range m.posts {
		if m.posts[i].ID == id {
			p := m.posts[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockPostRepo) CreatePost(p database.Post) (string, error) {
	m.nextID++
	p.ID = fmt.Sprintf("post-%d", m.nextID)
	if p.Status == "" {
		p.Status = database.StatusPending
	}
	p.CreatedAt = time.Now()
	m.posts = append(m.posts, p)
	return p.ID, nil
}

func (m *mockPostRepo) ListQueue(channelID string, limit int) ([]database.Post, error) {
	var out []database.Post
	for _, p := range m.posts {
		if p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockPostRepo) LatestScheduled(channelID string) (*time.Time, error) {
	var latest *time.Time
	for _, p := range m.posts {
		if p.ChannelID != channelID {
			continue
		}
		t := p.ScheduledAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

func (m *mockPostRepo) NextDue(now time.Time) (*database.Post, error) {
	var due *database.Post
	for i := range m.posts {
		p := &m.posts[i]
		if p.Status != database.StatusPending || p.ScheduledAt.After(now) {
			continue
		}
		if m.channels != nil {
			if ch, _ := m.channels.GetChannel(p.ChannelID); ch == nil || !ch.IsActive {
				continue
			}
		}
		if due == nil || p.ScheduledAt.Before(due.ScheduledAt) {
			due = p
		}
	}
	if due == nil {
		return nil, nil
	}
	p := *due
	return &p, nil
}

func (m *mockPostRepo) UpdateStatus(id string, to database.Status, messageID string) error {
	for i := range m.posts {
		if m.posts[i].ID != id {
			continue
		}
		if !database.CanTransition(m.posts[i].Status, to) {
			return &database.ErrInvalidTransition{From: m.posts[i].Status, To: to}
		}
		m.posts[i].Status = to
		if messageID != "" {
			m.posts[i].MessageID = messageID
		}
		return nil
	}
	return fmt.Errorf("post %s not found", id)
}

func (m *mockPostRepo) UpdateContent(id, content string) error {
	for i := range m.posts {
		if m.posts[i].ID == id {
			m.posts[i].Content = content
			return nil
		}
	}
	return fmt.Errorf("post %s not found", id)
}

func (m *mockPostRepo) DeletePost(id string) error {
	for i := range m.posts {
		if m.posts[i].ID == id {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("post %s not found", id)
}

func (m *mockPostRepo) ClearPending(channelID string) (int, error) {
	kept := m.posts[:0]
	deleted := 0
	for _, p := range m.posts {
		if p.ChannelID == channelID && p.Status == database.StatusPending {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	m.posts = kept
	return deleted, nil
}

func (m *mockPostRepo) HasOrigin(channelID, originGUID string) (bool, error) {
	for _, p := range m.posts {
		if p.ChannelID == channelID && p.OriginGUID == originGUID && p.Status != database.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPostRepo) RecentOriginals(channelID string, limit int) ([]database.Post, error) {
	var out []database.Post
	for _, p := range m.posts {
		if p.ChannelID == channelID && p.Status != database.StatusRejected {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockPostRepo) GetStatusCounts() (map[database.Status]int, error) {
	counts := make(map[database.Status]int)
	for _, p := range m.posts {
		counts[p.Status]++
	}
	return counts, nil
}

// mockChannelRepo is an in-memory ChannelRepository.
type mockChannelRepo struct {
	channels map[string]database.Channel
	getCalls int
}

func newMockChannelRepo(channels ...database.Channel) *mockChannelRepo {
	m := &mockChannelRepo{channels: make(map[string]database.Channel)}
	for _, ch := range channels {
		m.channels[ch.ID] = ch
	}
	return m
}

func (m *mockChannelRepo) GetChannel(id string) (*database.Channel, error) {
	m.getCalls++
	if ch, ok := m.channels[id]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (m *mockChannelRepo) GetChannelByChatID(chatID string) (*database.Channel, error) {
	for _, ch := range m.channels {
		if ch.ChatID == chatID {
			return &ch, nil
		}
	}
	return nil, nil
}

func (m *mockChannelRepo) ListChannels() ([]database.Channel, error) {
	var out []database.Channel
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (m *mockChannelRepo) CreateChannel(ch database.Channel) (string, error) {
	m.channels[ch.ID] = ch
	return ch.ID, nil
}

func (m *mockChannelRepo) UpsertChannel(ch database.Channel) (string, bool, error) {
	_, existed := m.channels[ch.ID]
	m.channels[ch.ID] = ch
	return ch.ID, existed, nil
}

func (m *mockChannelRepo) UpdateChannelSettings(id string, upd database.ChannelUpdate) error {
	return nil
}

func (m *mockChannelRepo) DeleteChannel(id string) error {
	delete(m.channels, id)
	return nil
}

func (m *mockChannelRepo) GetChannelCount() (int, error) {
	return len(m.channels), nil
}

// mockSourceRepo is an in-memory SourceRepository.
type mockSourceRepo struct {
	sources map[string]*database.Source
}

func newMockSourceRepo(sources ...database.Source) *mockSourceRepo {
	m := &mockSourceRepo{sources: make(map[string]*database.Source)}
	for i := range sources {
		s := sources[i]
		m.sources[s.ID] = &s
	}
	return m
}

func (m *mockSourceRepo) GetSource(id string) (*database.Source, error) {
	if s, ok := m.sources[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *mockSourceRepo) ListSources(channelID string) ([]database.Source, error) {
	var out []database.Source
	for _, s := range m.sources {
		if s.ChannelID == channelID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSourceRepo) ListActiveSources() ([]database.Source, error) {
	var out []database.Source
	for _, s := range m.sources {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockSourceRepo) CreateSource(s database.Source) (string, error) {
	m.sources[s.ID] = &s
	return s.ID, nil
}

func (m *mockSourceRepo) UpsertSource(channelID, url, name string) (string, error) {
	id := channelID + "/" + url
	m.sources[id] = &database.Source{ID: id, ChannelID: channelID, URL: url, Name: name, IsActive: true}
	return id, nil
}

func (m *mockSourceRepo) AdvanceSourceMark(id, lastGUID string) error {
	if s, ok := m.sources[id]; ok {
		s.LastGUID = lastGUID
		s.FetchError = false
		return nil
	}
	return fmt.Errorf("source %s not found", id)
}

func (m *mockSourceRepo) SetSourceError(id string, failed bool) error {
	if s, ok := m.sources[id]; ok {
		s.FetchError = failed
		return nil
	}
	return fmt.Errorf("source %s not found", id)
}

func (m *mockSourceRepo) DeleteSource(id string) error {
	delete(m.sources, id)
	return nil
}

// mockFetcher serves canned entries per URL.
type mockFetcher struct {
	entries map[string][]feed.Entry
	errs    map[string]error
	calls   []string
}

func (m *mockFetcher) Fetch(ctx context.Context, url, sinceGUID string) ([]feed.Entry, error) {
	m.calls = append(m.calls, url)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	all := m.entries[url]
	var out []feed.Entry
	for _, e := range all {
		if sinceGUID != "" && e.GUID == sinceGUID {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// mockComposer echoes the entry title with a marker.
type mockComposer struct{}

func (mockComposer) Compose(ctx context.Context, entry feed.Entry, ch database.Channel) string {
	return "styled: " + entry.Title
}

// mockPublisher records publish calls and returns a configurable handle.
type mockPublisher struct {
	messageID string
	err       error
	calls     int
	lastChat  string
	lastText  string
}

func (m *mockPublisher) Publish(ctx context.Context, chatID, text string, media []string) (string, error) {
	m.calls++
	m.lastChat = chatID
	m.lastText = text
	return m.messageID, m.err
}
