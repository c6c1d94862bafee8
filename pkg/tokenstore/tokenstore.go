// Package tokenstore 用 Badger 保存登录后的会话 token，按 userID 索引。
package tokenstore

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const keyPrefix = "token:"

// ErrNotFound 没有保存的 token
var ErrNotFound = errors.New("tokenstore: token not found")

// Entry 保存的会话
type Entry struct {
	UserID  string    `json:"userID"`
	Token   string    `json:"token"`
	SavedAt time.Time `json:"savedAt"`
}

// Store Badger 封装
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Options 打开参数
type Options struct {
	Path          string
	EncryptionKey []byte // 16/24/32 字节；为空则不加密
	InMemory      bool   // 测试用
}

// Open 打开（或创建）token 库
func Open(path string) (*Store, error) {
	return OpenWithOptions(Options{Path: path})
}

// OpenWithOptions 按选项打开
func OpenWithOptions(opts Options) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("tokenstore: path is required")
	}
	bopts := badger.DefaultOptions(opts.Path).WithLogger(nil)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	if len(opts.EncryptionKey) > 0 {
		// 加密库必须开启索引缓存
		bopts = bopts.WithEncryptionKey(opts.EncryptionKey).WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrapf(err, "tokenstore: open %s", opts.Path)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close 关闭
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func key(userID string) ([]byte, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("tokenstore: userID is empty")
	}
	return []byte(keyPrefix + userID), nil
}

// Save 保存（覆盖）userID 的 token
func (s *Store) Save(userID, token string) error {
	k, err := key(userID)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("tokenstore: token is empty")
	}
	v, err := json.Marshal(Entry{UserID: strings.TrimSpace(userID), Token: token, SavedAt: s.now().UTC()})
	if err != nil {
		return errors.WithStack(err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, v)
	})
}

// Load 读取 userID 的 token；不存在时返回 ErrNotFound
func (s *Store) Load(userID string) (*Entry, error) {
	k, err := key(userID)
	if err != nil {
		return nil, err
	}
	var entry Entry
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete 删除 userID 的 token；不存在时不报错
func (s *Store) Delete(userID string) error {
	k, err := key(userID)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
}

// Users 返回所有保存了 token 的 userID
func (s *Store) Users() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return out, err
}

// ParseKey 解析十六进制的加密密钥（16/24/32 字节）；空串返回 nil
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrap(err, "tokenstore: key must be hex")
	}
	switch len(b) {
	case 16, 24, 32:
		return b, nil
	}
	return nil, errors.Errorf("tokenstore: key length must be 16, 24 or 32 bytes, got %d", len(b))
}
