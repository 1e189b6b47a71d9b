// Package idempotency 事件幂等控制：每个实体维护已处理事件ID账本，所有变更都经过Apply门控。
package idempotency

import (
	"github.com/wfunc/skate-game/internal/errors"
)

// Ledger 已处理事件ID账本（按处理顺序保存）
type Ledger []string

// Has 判断事件是否已处理
func (l Ledger) Has(eventID string) bool {
	for _, id := range l {
		if id == eventID {
			return true
		}
	}
	return false
}

// Record 记录事件ID，重复记录无效果
func (l *Ledger) Record(eventID string) {
	if l.Has(eventID) {
		return
	}
	*l = append(*l, eventID)
}

// Clone 复制账本
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	copy(out, l)
	return out
}

// Entity 受幂等保护的状态记录
type Entity[T any] interface {
	// Clone 返回深拷贝，转换只在拷贝上进行
	Clone() T
	// Ledger 返回实体自身的事件账本
	Ledger() *Ledger
}

// Outcome 门控结果
type Outcome int

const (
	// Applied 事件已应用
	Applied Outcome = iota
	// AlreadyProcessed 事件此前已处理，状态未改变
	AlreadyProcessed
)

// String 返回结果名称
func (o Outcome) String() string {
	if o == AlreadyProcessed {
		return "already_processed"
	}
	return "applied"
}

// Apply 在current的拷贝上执行transition。
// 事件已在账本中时原样返回current；transition失败时丢弃拷贝并返回错误；
// 成功时把eventID记入拷贝的账本，与其余字段一起提交。
func Apply[T Entity[T]](current T, eventID string, transition func(next T) error) (T, Outcome, error) {
	if eventID == "" {
		return current, Applied, errors.New(errors.ErrInvalidParam, "event_id不能为空")
	}

	if current.Ledger().Has(eventID) {
		return current, AlreadyProcessed, nil
	}

	next := current.Clone()
	if err := transition(next); err != nil {
		return current, Applied, err
	}

	next.Ledger().Record(eventID)
	return next, Applied, nil
}
