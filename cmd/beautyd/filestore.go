package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/paneda/beauty-sub000"
)

const (
	rollingHashPrime   = 31
	rollingHashModulus = 1_000_000_009
	etagChunkSize      = 1024
)

// docRootSink is a FileSink backed by a directory on disk. Reads serve
// whatever is in docRoot, with ETag/If-None-Match support; writes land in a
// uuid-named staging file first and are renamed into place only once the
// upload completes, so a reader never observes a half-written file.
type docRootSink struct {
	docRoot string

	mu    sync.Mutex
	etags map[string]string

	openRead  map[string]*os.File
	openWrite map[string]*openWrite
}

type openWrite struct {
	tmp      *os.File
	tmpPath  string
	finalPath string
}

// newDocRootSink returns a sink rooted at docRoot, computing ETags for every
// regular file already present.
func newDocRootSink(docRoot string) (*docRootSink, error) {
	s := &docRootSink{
		docRoot:   docRoot,
		etags:     make(map[string]string),
		openRead:  make(map[string]*os.File),
		openWrite: make(map[string]*openWrite),
	}
	entries, err := os.ReadDir(docRoot)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		full := filepath.Join(docRoot, e.Name())
		tag, err := etagForFile(full)
		if err == nil {
			s.etags[full] = tag
		}
	}
	return s, nil
}

func relativePath(p string) string {
	return strings.TrimPrefix(p, "/")
}

func sendJSONError(reply *beauty.Reply, status beauty.Status, message string) {
	body := fmt.Sprintf(`{"error":%q}`, message)
	*reply.Content = append((*reply.Content)[:0], body...)
	reply.SendWithContentType(status, "application/json")
}

// OpenFileForRead implements beauty.FileSink.
func (s *docRootSink) OpenFileForRead(id string, req *beauty.Request, reply *beauty.Reply) int {
	reply.FilePath = relativePath(reply.FilePath)
	if reply.FilePath == "index.html" {
		reply.AddHeader("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	}

	full := filepath.Join(s.docRoot, reply.FilePath)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		sendJSONError(reply, beauty.StatusNotFound, "could not read file: "+reply.FilePath)
		return 0
	}

	s.mu.Lock()
	currentETag := s.etags[full]
	s.mu.Unlock()

	if requestETag := req.HeaderValue("If-None-Match"); requestETag != "" && currentETag != "" && requestETag == currentETag {
		reply.AddHeader("ETag", currentETag)
		reply.Send(beauty.StatusNotModified)
		return 0
	}

	f, err := os.Open(full)
	if err != nil {
		sendJSONError(reply, beauty.StatusInternalServerError, "could not open file: "+reply.FilePath)
		return 0
	}

	s.mu.Lock()
	s.openRead[id] = f
	s.mu.Unlock()

	if currentETag != "" {
		reply.AddHeader("ETag", currentETag)
	}
	return int(info.Size())
}

// ReadFile implements beauty.FileSink.
func (s *docRootSink) ReadFile(id string, req *beauty.Request, buf []byte) int {
	s.mu.Lock()
	f := s.openRead[id]
	s.mu.Unlock()
	if f == nil {
		return 0
	}
	n, _ := f.Read(buf)
	return n
}

// CloseReadFile implements beauty.FileSink.
func (s *docRootSink) CloseReadFile(id string) {
	s.mu.Lock()
	f := s.openRead[id]
	delete(s.openRead, id)
	s.mu.Unlock()
	if f != nil {
		_ = f.Close()
	}
}

// OpenFileForWrite implements beauty.FileSink.
func (s *docRootSink) OpenFileForWrite(id string, req *beauty.Request, reply *beauty.Reply) {
	finalPath := filepath.Join(s.docRoot, relativePath(reply.FilePath))
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		sendJSONError(reply, beauty.StatusInternalServerError, "could not create directory: "+filepath.Dir(finalPath))
		return
	}

	tmpPath := filepath.Join(s.docRoot, ".upload-"+uuid.NewString())
	tmp, err := os.Create(tmpPath)
	if err != nil {
		sendJSONError(reply, beauty.StatusInternalServerError, "could not open file for writing: "+reply.FilePath)
		return
	}

	s.mu.Lock()
	s.openWrite[id] = &openWrite{tmp: tmp, tmpPath: tmpPath, finalPath: finalPath}
	s.mu.Unlock()
}

// WriteFile implements beauty.FileSink.
func (s *docRootSink) WriteFile(id string, req *beauty.Request, reply *beauty.Reply, buf []byte, lastData bool) {
	s.mu.Lock()
	w := s.openWrite[id]
	s.mu.Unlock()
	if w == nil {
		return
	}

	if _, err := w.tmp.Write(buf); err != nil {
		sendJSONError(reply, beauty.StatusInternalServerError, "write failed: "+err.Error())
		return
	}
	if !lastData {
		return
	}

	_ = w.tmp.Close()
	s.mu.Lock()
	delete(s.openWrite, id)
	s.mu.Unlock()

	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		sendJSONError(reply, beauty.StatusInternalServerError, "could not finalize upload: "+err.Error())
		return
	}

	if tag, err := etagForFile(w.finalPath); err == nil {
		s.mu.Lock()
		s.etags[w.finalPath] = tag
		s.mu.Unlock()
	}

	reply.Send(beauty.StatusCreated)
}

// etagForFile derives an ETag from a polynomial rolling hash over the
// file's bytes, read in fixed-size chunks so memory use stays flat
// regardless of file size.
func etagForFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var hash uint64
	var pow uint64 = 1
	buf := make([]byte, etagChunkSize)
	for {
		n, err := f.Read(buf)
		for i := 0; i < n; i++ {
			hash = (hash + uint64(buf[i]+1)*pow) % rollingHashModulus
			pow = (pow * rollingHashPrime) % rollingHashModulus
		}
		if err != nil {
			break
		}
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%x", hash)), nil
}
