// Package session 为每个浏览器会话维护独立的进度状态。
package session

import (
	"sync"
	"time"

	"progress-map/internal/services/progress"

	"github.com/google/uuid"
)

// DefaultIdleTTL 是会话空闲多久后可被清理。
const DefaultIdleTTL = 12 * time.Hour

// Session 是单个用户会话。State 自带锁，可被并发请求访问。
type Session struct {
	ID    string
	State *progress.State

	mu         sync.Mutex
	lastSeen   time.Time
	lastReport string
}

// LastReport 返回本会话最近保存或加载的报告名。
func (s *Session) LastReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

func (s *Session) SetLastReport(name string) {
	s.mu.Lock()
	s.lastReport = name
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager 按会话 ID 保存 Session。
type Manager struct {
	mu       sync.Mutex
	regions  progress.RegionValidator
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(regions progress.RegionValidator, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Manager{
		regions:  regions,
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get 返回已有会话并刷新活跃时间。已超过 TTL 的会话视为不存在并立即移除。
// 刷新在 m.mu 内完成，Sweep 不会删掉刚返回的会话。
func (m *Manager) Get(id string) (*Session, bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if s.idleSince().Before(now.Add(-m.ttl)) {
		delete(m.sessions, id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Create 新建一个空状态会话。
func (m *Manager) Create() *Session {
	s := &Session{
		ID:       uuid.NewString(),
		State:    progress.New(m.regions),
		lastSeen: m.now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// GetOrCreate 在 id 无效或已过期时创建新会话，created 表示是否新建。
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(), true
}

// Sweep 清理空闲超过 TTL 的会话，返回清理数量。
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len 返回当前会话数。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
