package site

import (
	"bytes"
	"embed"
	"fmt"
	"github.com/kingland/kingland-website/internal/utils"
	"github.com/kingland/kingland-website/internal/watch"
	"github.com/kingland/kingland-website/log"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
)

const indexFile = "index.html"

//go:embed public
var publicFS embed.FS

type Asset struct {
	Body        []byte
	ContentType string
	Etag        string
}

// Content is an immutable snapshot of the site's pages.
type Content struct {
	Index    Asset
	Favicons map[FaviconType]Asset
}

// ContentSource hands out the current content snapshot.
type ContentSource interface {
	Current() *Content
}

type Source struct {
	current atomic.Pointer[Content]
	watcher *watch.FileWatcher
	log     log.Logger
}

func LoadContent(fsys fs.FS) (*Content, error) {
	index, err := fs.ReadFile(fsys, indexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", indexFile, err)
	}
	index = bytes.TrimSpace(index)
	c := &Content{
		Index:    newAsset(index, "text/html; charset=utf-8"),
		Favicons: make(map[FaviconType]Asset, len(faviconTypes)),
	}
	for _, f := range faviconTypes {
		data, err := fs.ReadFile(fsys, f.FileName())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.FileName(), err)
		}
		c.Favicons[f] = newAsset(data, "image/png")
	}
	return c, nil
}

func NewEmbeddedSource(log log.Logger) (*Source, error) {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		return nil, err
	}
	content, err := LoadContent(sub)
	if err != nil {
		return nil, err
	}
	s := &Source{log: log.WithPrefix("content")}
	s.current.Store(content)
	return s, nil
}

// NewDirSource loads the content from dir and reloads it whenever one of its files changes.
func NewDirSource(dir string, log log.Logger) (*Source, error) {
	contentLog := log.WithPrefix("content")
	content, err := LoadContent(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	paths := []string{filepath.Join(dir, indexFile)}
	for _, f := range faviconTypes {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(f.FileName())))
	}
	watcher, err := watch.NewFileWatcher(paths, contentLog)
	if err != nil {
		return nil, err
	}
	s := &Source{log: contentLog, watcher: watcher}
	s.current.Store(content)
	contentLog.Reportf("serving content from %s", dir)
	go s.reload(dir)
	return s, nil
}

func (s *Source) Current() *Content {
	return s.current.Load()
}

func (s *Source) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Source) reload(dir string) {
	for {
		select {
		case <-s.watcher.Modified():
			content, err := LoadContent(os.DirFS(dir))
			if err != nil {
				s.log.Errorf("failed to reload content, keeping the previous one: %s", err)
				continue
			}
			s.current.Store(content)
			s.log.Reportf("content reloaded")
		case <-s.watcher.Closed():
			return
		}
	}
}

func newAsset(body []byte, contentType string) Asset {
	return Asset{Body: body, ContentType: contentType, Etag: utils.GenerateEtag(body)}
}
