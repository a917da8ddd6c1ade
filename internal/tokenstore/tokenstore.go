// Package tokenstore 在本地加密保存终端客户端的登录凭证。
package tokenstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// ErrCorrupted 文件被篡改或口令不对
var ErrCorrupted = errors.New("凭证文件无法解密")

// Credentials 保存的登录凭证
type Credentials struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store 文件格式: salt(16) | nonce(24) | secretbox 密文
type Store struct {
	fs         afero.Fs
	file       string
	passphrase []byte

	// scrypt 参数 N
	Cost int
}

// New 创建凭证存储，passphrase 用于派生加密密钥
func New(fs afero.Fs, file, passphrase string) *Store {
	return &Store{
		fs:         fs,
		file:       file,
		passphrase: []byte(passphrase),
		Cost:       1 << 15,
	}
}

// Save 加密写入凭证，覆盖旧文件
func (s *Store) Save(creds Credentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	var salt [saltSize]byte
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}
	key, err := s.deriveKey(salt[:])
	if err != nil {
		return err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plain)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain, &nonce, key)

	if err := s.fs.MkdirAll(path.Dir(s.file), 0o700); err != nil {
		return fmt.Errorf("创建凭证目录失败: %w", err)
	}
	return afero.WriteFile(s.fs, s.file, out, 0o600)
}

// Load 读取凭证，文件不存在时返回 nil, nil
func (s *Store) Load() (*Credentials, error) {
	raw, err := afero.ReadFile(s.fs, s.file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrCorrupted
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])
	key, err := s.deriveKey(raw[:saltSize])
	if err != nil {
		return nil, err
	}
	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrCorrupted
	}

	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, ErrCorrupted
	}
	return &creds, nil
}

// Clear 删除凭证文件，不存在时不报错
func (s *Store) Clear() error {
	if err := s.fs.Remove(s.file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(s.passphrase, salt, s.Cost, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("派生密钥失败: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
