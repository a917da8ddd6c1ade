// Package storage 提供按路径存取对象的存储桶（头像等）。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var (
	ErrObjectExists = errors.New("对象已存在")
	ErrInvalidPath  = errors.New("无效的对象路径")
)

// Bucket 基于文件系统的存储桶
type Bucket struct {
	fs        afero.Fs
	name      string
	publicURL string
}

// NewBucket 创建存储桶，对象存放在 fs 的 name 目录下，
// publicURL 为对外访问的根地址（如 http://host/storage）
func NewBucket(fs afero.Fs, name, publicURL string) (*Bucket, error) {
	if err := fs.MkdirAll(name, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &Bucket{
		fs:        fs,
		name:      name,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// NewOsBucket 在本地目录上创建存储桶
func NewOsBucket(dir, name, publicURL string) (*Bucket, error) {
	return NewBucket(afero.NewBasePathFs(afero.NewOsFs(), dir), name, publicURL)
}

// Name 存储桶名
func (b *Bucket) Name() string {
	return b.name
}

// Upload 写入对象；upsert 为 false 且对象已存在时返回 ErrObjectExists
func (b *Bucket) Upload(ctx context.Context, objectPath string, data []byte, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if !upsert {
		if exists, _ := afero.Exists(b.fs, full); exists {
			return ErrObjectExists
		}
	}
	if err := b.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return err
	}

	// 先写临时文件再改名，避免读到写了一半的头像
	tmp := full + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return b.fs.Rename(tmp, full)
}

// Open 读取对象
func (b *Bucket) Open(objectPath string) (afero.File, os.FileInfo, error) {
	full, err := b.resolve(objectPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := b.fs.Open(full)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}

// ReadAll 读取对象全部内容
func (b *Bucket) ReadAll(objectPath string) ([]byte, error) {
	f, _, err := b.Open(objectPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// PublicURL 对象的公开访问地址
func (b *Bucket) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", b.publicURL, b.name, strings.TrimLeft(path.Clean("/"+objectPath), "/"))
}

func (b *Bucket) resolve(objectPath string) (string, error) {
	if objectPath == "" || strings.Contains(objectPath, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean("/" + objectPath)
	if cleaned == "/" || strings.HasSuffix(cleaned, ".tmp") {
		return "", ErrInvalidPath
	}
	return path.Join(b.name, cleaned), nil
}
