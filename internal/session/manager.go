package session

import (
	"errors"
	"sort"
	"sync"

	"cdpinspect/internal/cdp"
	"cdpinspect/internal/logger"
	"cdpinspect/pkg/domain"
)

// Manager 全局会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*cdp.Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[domain.SessionID]*cdp.Session),
		log:      l,
	}
}

// Add 注册已连接的会话；会话结束后自动移除
func (m *Manager) Add(s *cdp.Session) {
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.log.Info("注册检查会话", "sessionID", string(s.ID()), "addr", s.Addr())

	go func() {
		<-s.Done()
		m.mu.Lock()
		if cur, ok := m.sessions[s.ID()]; ok && cur == s {
			delete(m.sessions, s.ID())
		}
		m.mu.Unlock()
	}()
}

// Get 获取会话
func (m *Manager) Get(id domain.SessionID) (*cdp.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 关闭并销毁会话
func (m *Manager) Delete(id domain.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.log.Info("销毁检查会话", "sessionID", string(id))
	return s.Close()
}

// List 返回所有活动会话，按标识排序
func (m *Manager) List() []*cdp.Session {
	m.mu.RLock()
	list := make([]*cdp.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// CloseAll 关闭全部会话
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[domain.SessionID]*cdp.Session)
	m.mu.Unlock()

	var errs []error
	for id, s := range all {
		if err := s.Close(); err != nil {
			m.log.Err(err, "关闭会话失败", "sessionID", string(id))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
