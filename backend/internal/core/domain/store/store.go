package store

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultShardCount количество шардов по умолчанию
const DefaultShardCount = 32

// ErrAlreadyExists повторная вставка существующего ключа
var ErrAlreadyExists = errors.New("ключ уже существует")

// Key ключ хранилища: сравнимый и с хешем для выбора шарда
type Key interface {
	comparable
	Hash() uint64
}

// Cloner значение, умеющее создавать свою глубокую копию
type Cloner[V any] interface {
	Clone() V
}

type shard[K Key, V Cloner[V]] struct {
	mu    sync.RWMutex
	items map[K]V
}

// Store шардированное потокобезопасное хранилище сущностей.
//
// Операции над ключами из разных шардов не блокируют друг друга, операции над
// одним ключом линеаризуемы. Наружу всегда отдаются копии, поэтому читатель не
// может увидеть частично обновленную сущность.
type Store[K Key, V Cloner[V]] struct {
	shards []*shard[K, V]
}

// New создает хранилище с заданным числом шардов
func New[K Key, V Cloner[V]](shardCount int) *Store[K, V] {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	s := &Store[K, V]{shards: make([]*shard[K, V], shardCount)}
	for i := range s.shards {
		s.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	return s
}

func (s *Store[K, V]) shardFor(k K) *shard[K, V] {
	return s.shards[k.Hash()%uint64(len(s.shards))]
}

// Insert добавляет новую сущность. Существующий ключ не перезаписывается.
func (s *Store[K, V]) Insert(k K, v V) error {
	sh := s.shardFor(k)
	c := v.Clone()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.items[k]; exists {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, k)
	}
	sh.items[k] = c
	return nil
}

// Upsert записывает сущность, заменяя предыдущую целиком
func (s *Store[K, V]) Upsert(k K, v V) {
	sh := s.shardFor(k)
	c := v.Clone()

	sh.mu.Lock()
	sh.items[k] = c
	sh.mu.Unlock()
}

// Get возвращает копию сущности
func (s *Store[K, V]) Get(k K) (V, bool) {
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	v, ok := sh.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	return v.Clone(), true
}

// Has проверяет наличие ключа
func (s *Store[K, V]) Has(k K) bool {
	sh := s.shardFor(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.items[k]
	return ok
}

// Update атомарно изменяет сущность.
// fn получает приватную копию; она сохраняется, только если fn вернула nil.
// Возвращает (false, nil), если ключа нет.
func (s *Store[K, V]) Update(k K, fn func(v *V) error) (bool, error) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, ok := sh.items[k]
	if !ok {
		return false, nil
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return true, err
	}
	sh.items[k] = next
	return true, nil
}

// Remove удаляет сущность и возвращает ее
func (s *Store[K, V]) Remove(k K) (V, bool) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	v, ok := sh.items[k]
	if ok {
		delete(sh.items, k)
	}
	return v, ok
}

// Len общее количество сущностей
func (s *Store[K, V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}

// Keys возвращает все ключи на момент обхода
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.items {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Range обходит копии сущностей шард за шардом.
// Сущности, вставленные во время обхода, могут быть пропущены.
func (s *Store[K, V]) Range(fn func(k K, v V) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		batch := make([]entry[K, V], 0, len(sh.items))
		for k, v := range sh.items {
			batch = append(batch, entry[K, V]{key: k, value: v.Clone()})
		}
		sh.mu.RUnlock()

		for _, e := range batch {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

// UpdateAll изменяет каждую сущность на месте.
// Блокируется только один шард за раз, поэтому обход не взаимоблокируется с
// одиночными вставками и удалениями. fn не должна обращаться к этому хранилищу.
func (s *Store[K, V]) UpdateAll(fn func(k K, v *V)) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, v := range sh.items {
			fn(k, &v)
			sh.items[k] = v
			n++
		}
		sh.mu.Unlock()
	}
	return n
}

type entry[K Key, V any] struct {
	key   K
	value V
}
