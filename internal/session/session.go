// Package session 维护已登录客户端及其订阅。
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newplayman/sbe-data-bridge/internal/sbe"
)

// DefaultMinClientID 小于该值的 client_id 保留给内部使用
const DefaultMinClientID sbe.ClientID = 100

// ClientError 会话操作失败，Type 即回给客户端的错误码
type ClientError struct {
	Type     sbe.ClientErrorType
	ClientID sbe.ClientID
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client %d: %s", e.ClientID, e.Type)
}

// Is 按错误码比较，便于 errors.Is(err, &ClientError{Type: ...})
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type
}

// Subscription 客户端持有的一条订阅
type Subscription struct {
	Symbol   string
	DataType sbe.DataType
}

func (s Subscription) normalized() Subscription {
	s.Symbol = strings.ToUpper(s.Symbol)
	return s
}

// Session 单个客户端
type Session struct {
	ClientID   sbe.ClientID
	SessionID  uuid.UUID
	LoggedInAt time.Time

	subs map[Subscription]struct{}
}

// Table 会话表
type Table struct {
	mu          sync.RWMutex
	sessions    map[sbe.ClientID]*Session
	minClientID sbe.ClientID
	now         func() time.Time
}

// NewTable minClientID 为 0 时使用默认值
func NewTable(minClientID sbe.ClientID) *Table {
	if minClientID == 0 {
		minClientID = DefaultMinClientID
	}
	return &Table{
		sessions:    make(map[sbe.ClientID]*Session),
		minClientID: minClientID,
		now:         time.Now,
	}
}

// Login 登录；返回会话快照
func (t *Table) Login(id sbe.ClientID) (Session, error) {
	if id == sbe.NullClientID || id < t.minClientID {
		return Session{}, &ClientError{Type: sbe.ClientNotAuthorized, ClientID: id}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; ok {
		return Session{}, &ClientError{Type: sbe.ClientAlreadyLoggedIn, ClientID: id}
	}
	s := &Session{
		ClientID:   id,
		SessionID:  uuid.New(),
		LoggedInAt: t.now(),
		subs:       make(map[Subscription]struct{}),
	}
	t.sessions[id] = s
	return Session{ClientID: s.ClientID, SessionID: s.SessionID, LoggedInAt: s.LoggedInAt}, nil
}

// Logout 登出并返回该客户端持有的订阅
func (t *Table) Logout(id sbe.ClientID) ([]Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil, &ClientError{Type: sbe.ClientNotLoggedIn, ClientID: id}
	}
	delete(t.sessions, id)
	return sortedSubs(s.subs), nil
}

// Get 会话快照
func (t *Table) Get(id sbe.ClientID) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return Session{ClientID: s.ClientID, SessionID: s.SessionID, LoggedInAt: s.LoggedInAt}, true
}

// IsLoggedIn 是否已登录
func (t *Table) IsLoggedIn(id sbe.ClientID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sessions[id]
	return ok
}

// Count 已登录客户端数
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// AddSubscription 记录订阅；客户端未登录返回 ClientNotLoggedIn
func (t *Table) AddSubscription(id sbe.ClientID, sub Subscription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return &ClientError{Type: sbe.ClientNotLoggedIn, ClientID: id}
	}
	s.subs[sub.normalized()] = struct{}{}
	return nil
}

// RemoveSubscription 删除订阅，返回是否存在
func (t *Table) RemoveSubscription(id sbe.ClientID, sub Subscription) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return false
	}
	sub = sub.normalized()
	if _, ok := s.subs[sub]; !ok {
		return false
	}
	delete(s.subs, sub)
	return true
}

// Subscriptions 客户端当前订阅（按 symbol、类型排序）
func (t *Table) Subscriptions(id sbe.ClientID) []Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	if !ok {
		return nil
	}
	return sortedSubs(s.subs)
}

// HeldByOthers 是否有其他已登录客户端持有同一订阅
func (t *Table) HeldByOthers(id sbe.ClientID, sub Subscription) bool {
	sub = sub.normalized()
	t.mu.RLock()
	defer t.mu.RUnlock()
	for other, s := range t.sessions {
		if other == id {
			continue
		}
		if _, ok := s.subs[sub]; ok {
			return true
		}
	}
	return false
}

// Holders 持有该订阅的客户端（升序）
func (t *Table) Holders(sub Subscription) []sbe.ClientID {
	sub = sub.normalized()
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []sbe.ClientID
	for id, s := range t.sessions {
		if _, ok := s.subs[sub]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear 清空所有会话
func (t *Table) Clear() {
	t.mu.Lock()
	t.sessions = make(map[sbe.ClientID]*Session)
	t.mu.Unlock()
}

func sortedSubs(set map[Subscription]struct{}) []Subscription {
	out := make([]Subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].DataType < out[j].DataType
	})
	return out
}
